package store

import (
	"database/sql"
	"errors"
	"fmt"

	"guildcorp.gg/internal/game"
)

const runCols = `id, dungeon_id, guild_id, contract_id, current_room, furthest_room,
	status, loot_gold, loot_exp, rooms_cleared, enemies_defeated, mining_ops,
	boss_defeated, today_time_used, time_limit_per_day, last_reset_date,
	completion_bonus_earned, failure_penalty_paid, started_at, completed_at`

func (t *Tx) InsertRun(r *game.Run) error {
	res, err := t.tx.Exec(
		`INSERT INTO runs(dungeon_id, guild_id, contract_id, current_room, furthest_room,
			status, loot_gold, loot_exp, rooms_cleared, enemies_defeated, mining_ops,
			boss_defeated, today_time_used, time_limit_per_day, last_reset_date,
			completion_bonus_earned, failure_penalty_paid, started_at, completed_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.DungeonID, r.GuildID, r.ContractID, r.CurrentRoom, r.FurthestRoom,
		string(r.Status), r.TotalLoot.Gold, r.TotalLoot.Exp, r.RoomsCleared,
		r.EnemiesDefeated, r.MiningOps, b2i(r.BossDefeated), r.TodayTimeUsed,
		r.TimeLimitPerDay, r.LastResetDate, r.CompletionBonusEarned,
		r.FailurePenaltyPaid, dbTime(r.StartedAt), dbTime(r.CompletedAt),
	)
	if err != nil {
		return err
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return t.replaceParty(r)
}

func (t *Tx) RunByID(id int64) (*game.Run, error) {
	r, err := scanRun(t.tx.QueryRow(`SELECT `+runCols+` FROM runs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if r.Party, err = t.partyForRun(r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// RunByContract finds the run created from an awarded contract.
func (t *Tx) RunByContract(contractID int64) (*game.Run, error) {
	r, err := scanRun(t.tx.QueryRow(`SELECT `+runCols+` FROM runs WHERE contract_id = ?`, contractID))
	if err != nil {
		return nil, err
	}
	if r.Party, err = t.partyForRun(r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// RunsByStatus lists runs for the background sweeps. Parties are not loaded;
// sweeps only touch counters and status.
func (t *Tx) RunsByStatus(statuses ...game.RunStatus) ([]*game.Run, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	q := `SELECT ` + runCols + ` FROM runs WHERE status IN (`
	args := make([]any, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			q += ","
		}
		q += "?"
		args[i] = string(s)
	}
	q += `) ORDER BY id`

	rows, err := t.tx.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Run
	for rows.Next() {
		r, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunsByDungeon lists every run attached to a dungeon.
func (t *Tx) RunsByDungeon(dungeonID int64) ([]*game.Run, error) {
	rows, err := t.tx.Query(`SELECT `+runCols+` FROM runs WHERE dungeon_id = ? ORDER BY id`, dungeonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Run
	for rows.Next() {
		r, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *Tx) UpdateRun(r *game.Run) error {
	_, err := t.tx.Exec(
		`UPDATE runs SET current_room = ?, furthest_room = ?, status = ?,
			loot_gold = ?, loot_exp = ?, rooms_cleared = ?, enemies_defeated = ?,
			mining_ops = ?, boss_defeated = ?, today_time_used = ?,
			time_limit_per_day = ?, last_reset_date = ?,
			completion_bonus_earned = ?, failure_penalty_paid = ?, completed_at = ?
		 WHERE id = ?`,
		r.CurrentRoom, r.FurthestRoom, string(r.Status),
		r.TotalLoot.Gold, r.TotalLoot.Exp, r.RoomsCleared, r.EnemiesDefeated,
		r.MiningOps, b2i(r.BossDefeated), r.TodayTimeUsed,
		r.TimeLimitPerDay, r.LastResetDate,
		r.CompletionBonusEarned, r.FailurePenaltyPaid, dbTime(r.CompletedAt), r.ID,
	)
	if err != nil {
		return err
	}
	return t.replaceParty(r)
}

func (t *Tx) replaceParty(r *game.Run) error {
	if _, err := t.tx.Exec(`DELETE FROM run_party WHERE run_id = ?`, r.ID); err != nil {
		return err
	}
	for _, id := range r.Party {
		if _, err := t.tx.Exec(`INSERT INTO run_party(run_id, adventurer_id) VALUES(?,?)`, r.ID, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) partyForRun(runID int64) ([]int64, error) {
	rows, err := t.tx.Query(`SELECT adventurer_id FROM run_party WHERE run_id = ? ORDER BY adventurer_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *Tx) UpsertRoomProgress(p *game.RoomProgress) error {
	if p.ID == 0 {
		res, err := t.tx.Exec(
			`INSERT INTO room_progress(run_id, room_id, state, loot_gold, loot_exp,
				mining_pct, first_entered_at, cleared_at)
			 VALUES(?,?,?,?,?,?,?,?)`,
			p.RunID, p.RoomID, string(p.State), p.LootCollected.Gold, p.LootCollected.Exp,
			p.MiningPct, dbTime(p.FirstEnteredAt), dbTime(p.ClearedAt),
		)
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		return err
	}
	_, err := t.tx.Exec(
		`UPDATE room_progress SET state = ?, loot_gold = ?, loot_exp = ?,
			mining_pct = ?, cleared_at = ?
		 WHERE id = ?`,
		string(p.State), p.LootCollected.Gold, p.LootCollected.Exp,
		p.MiningPct, dbTime(p.ClearedAt), p.ID,
	)
	return err
}

// RoomProgress returns the run's record for one room, or nil when the room
// has never been entered.
func (t *Tx) RoomProgress(runID, roomID int64) (*game.RoomProgress, error) {
	rows, err := t.tx.Query(
		`SELECT id, run_id, room_id, state, loot_gold, loot_exp, mining_pct,
			first_entered_at, cleared_at
		 FROM room_progress WHERE run_id = ? AND room_id = ?`, runID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanProgress(rows)
}

func (t *Tx) ProgressByRun(runID int64) ([]*game.RoomProgress, error) {
	rows, err := t.tx.Query(
		`SELECT id, run_id, room_id, state, loot_gold, loot_exp, mining_pct,
			first_entered_at, cleared_at
		 FROM room_progress WHERE run_id = ? ORDER BY room_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.RoomProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProgress(rows *sql.Rows) (*game.RoomProgress, error) {
	var p game.RoomProgress
	var state, entered, cleared string
	err := rows.Scan(&p.ID, &p.RunID, &p.RoomID, &state, &p.LootCollected.Gold,
		&p.LootCollected.Exp, &p.MiningPct, &entered, &cleared)
	if err != nil {
		return nil, err
	}
	p.State = game.RoomState(state)
	p.FirstEnteredAt = parseTime(entered)
	p.ClearedAt = parseTime(cleared)
	return &p, nil
}

func scanRun(row *sql.Row) (*game.Run, error) {
	var r game.Run
	var status, lastReset, started, completed string
	var boss int
	err := row.Scan(&r.ID, &r.DungeonID, &r.GuildID, &r.ContractID, &r.CurrentRoom,
		&r.FurthestRoom, &status, &r.TotalLoot.Gold, &r.TotalLoot.Exp,
		&r.RoomsCleared, &r.EnemiesDefeated, &r.MiningOps, &boss,
		&r.TodayTimeUsed, &r.TimeLimitPerDay, &lastReset,
		&r.CompletionBonusEarned, &r.FailurePenaltyPaid, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	fillRun(&r, status, lastReset, started, completed, boss)
	return &r, nil
}

func scanRunRows(rows *sql.Rows) (*game.Run, error) {
	var r game.Run
	var status, lastReset, started, completed string
	var boss int
	err := rows.Scan(&r.ID, &r.DungeonID, &r.GuildID, &r.ContractID, &r.CurrentRoom,
		&r.FurthestRoom, &status, &r.TotalLoot.Gold, &r.TotalLoot.Exp,
		&r.RoomsCleared, &r.EnemiesDefeated, &r.MiningOps, &boss,
		&r.TodayTimeUsed, &r.TimeLimitPerDay, &lastReset,
		&r.CompletionBonusEarned, &r.FailurePenaltyPaid, &started, &completed)
	if err != nil {
		return nil, err
	}
	fillRun(&r, status, lastReset, started, completed, boss)
	return &r, nil
}

func fillRun(r *game.Run, status, lastReset, started, completed string, boss int) {
	r.Status = game.RunStatus(status)
	r.LastResetDate = lastReset
	r.StartedAt = parseTime(started)
	r.CompletedAt = parseTime(completed)
	r.BossDefeated = boss != 0
}
