package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"guildcorp.gg/internal/game"
)

const guildCols = `id, session_id, name, gold, share_price, guild_exp, exp_spent,
	training_pct, dungeon_reward_pct, recruit_cost_pct, facility_cost_pct,
	extra_actions, last_interest_week, created_at`

func (t *Tx) InsertGuild(g *game.Guild) error {
	res, err := t.tx.Exec(
		`INSERT INTO guilds(session_id, name, gold, share_price, guild_exp, exp_spent,
			training_pct, dungeon_reward_pct, recruit_cost_pct, facility_cost_pct,
			extra_actions, last_interest_week, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.SessionID, g.Name, g.Gold, g.SharePrice, g.GuildExp, g.ExpSpent,
		g.TrainingEfficiencyPct, g.DungeonRewardPct, g.RecruitCostReductionPct,
		g.FacilityCostReductionPct, g.ExtraActions, g.LastInterestWeek, dbTime(g.CreatedAt),
	)
	if err != nil {
		return err
	}
	g.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) GuildByID(id int64) (*game.Guild, error) {
	return scanGuild(t.tx.QueryRow(`SELECT `+guildCols+` FROM guilds WHERE id = ?`, id))
}

// GuildBySession returns the single player guild of a session.
func (t *Tx) GuildBySession(sessionID int64) (*game.Guild, error) {
	return scanGuild(t.tx.QueryRow(`SELECT `+guildCols+` FROM guilds WHERE session_id = ? LIMIT 1`, sessionID))
}

func (t *Tx) UpdateGuild(g *game.Guild) error {
	_, err := t.tx.Exec(
		`UPDATE guilds SET gold = ?, share_price = ?, guild_exp = ?, exp_spent = ?,
			training_pct = ?, dungeon_reward_pct = ?, recruit_cost_pct = ?,
			facility_cost_pct = ?, extra_actions = ?, last_interest_week = ?
		 WHERE id = ?`,
		g.Gold, g.SharePrice, g.GuildExp, g.ExpSpent,
		g.TrainingEfficiencyPct, g.DungeonRewardPct, g.RecruitCostReductionPct,
		g.FacilityCostReductionPct, g.ExtraActions, g.LastInterestWeek, g.ID,
	)
	return err
}

func scanGuild(row *sql.Row) (*game.Guild, error) {
	var g game.Guild
	var created string
	err := row.Scan(&g.ID, &g.SessionID, &g.Name, &g.Gold, &g.SharePrice,
		&g.GuildExp, &g.ExpSpent, &g.TrainingEfficiencyPct, &g.DungeonRewardPct,
		&g.RecruitCostReductionPct, &g.FacilityCostReductionPct, &g.ExtraActions,
		&g.LastInterestWeek, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guild", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = parseTime(created)
	return &g, nil
}

func (t *Tx) InsertAdventurer(a *game.Adventurer) error {
	res, err := t.tx.Exec(
		`INSERT INTO adventurers(guild_id, name, level, strength, dexterity, health) VALUES(?,?,?,?,?,?)`,
		a.GuildID, a.Name, a.Level, a.Strength, a.Dexterity, a.Health,
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) AdventurersByGuild(guildID int64) ([]game.Adventurer, error) {
	rows, err := t.tx.Query(
		`SELECT id, guild_id, name, level, strength, dexterity, health
		 FROM adventurers WHERE guild_id = ? ORDER BY id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdventurers(rows)
}

// AdventurersByIDs loads a party roster. Missing ids are an error so a stale
// party reference surfaces instead of silently shrinking the party.
func (t *Tx) AdventurersByIDs(ids []int64) ([]game.Adventurer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	ph := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		ph[i] = "?"
	}
	rows, err := t.tx.Query(
		`SELECT id, guild_id, name, level, strength, dexterity, health
		 FROM adventurers WHERE id IN (`+strings.Join(ph, ",")+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanAdventurers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("%w: adventurer roster (%d of %d)", game.ErrNotFound, len(out), len(ids))
	}
	return out, nil
}

func (t *Tx) UpdateAdventurer(a *game.Adventurer) error {
	_, err := t.tx.Exec(
		`UPDATE adventurers SET name = ?, level = ?, strength = ?, dexterity = ?, health = ? WHERE id = ?`,
		a.Name, a.Level, a.Strength, a.Dexterity, a.Health, a.ID,
	)
	return err
}

func scanAdventurers(rows *sql.Rows) ([]game.Adventurer, error) {
	var out []game.Adventurer
	for rows.Next() {
		var a game.Adventurer
		if err := rows.Scan(&a.ID, &a.GuildID, &a.Name, &a.Level, &a.Strength, &a.Dexterity, &a.Health); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
