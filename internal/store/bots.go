package store

import (
	"database/sql"
	"errors"
	"fmt"

	"guildcorp.gg/internal/game"
)

const botCols = `id, session_id, name, ceo_name, gold, share_price, exp_bank,
	personality, behavior, risk_tolerance, performance_score,
	consecutive_successes, dungeons_completed, created_at`

func (t *Tx) InsertBotGuild(b *game.BotGuild) error {
	res, err := t.tx.Exec(
		`INSERT INTO bot_guilds(session_id, name, ceo_name, gold, share_price, exp_bank,
			personality, behavior, risk_tolerance, performance_score,
			consecutive_successes, dungeons_completed, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.SessionID, b.Name, b.CEOName, b.Gold, b.SharePrice, b.ExpBank,
		string(b.Personality), string(b.Behavior), b.RiskTolerance, b.PerformanceScore,
		b.ConsecutiveSuccesses, b.DungeonsCompleted, dbTime(b.CreatedAt),
	)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) BotGuildByID(id int64) (*game.BotGuild, error) {
	return scanBot(t.tx.QueryRow(`SELECT `+botCols+` FROM bot_guilds WHERE id = ?`, id))
}

func (t *Tx) BotGuildsBySession(sessionID int64) ([]*game.BotGuild, error) {
	rows, err := t.tx.Query(`SELECT `+botCols+` FROM bot_guilds WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.BotGuild
	for rows.Next() {
		b, err := scanBotRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *Tx) UpdateBotGuild(b *game.BotGuild) error {
	_, err := t.tx.Exec(
		`UPDATE bot_guilds SET gold = ?, share_price = ?, exp_bank = ?,
			behavior = ?, performance_score = ?, consecutive_successes = ?,
			dungeons_completed = ?
		 WHERE id = ?`,
		b.Gold, b.SharePrice, b.ExpBank,
		string(b.Behavior), b.PerformanceScore, b.ConsecutiveSuccesses,
		b.DungeonsCompleted, b.ID,
	)
	return err
}

func (t *Tx) InsertActivity(a *game.MarketActivity) error {
	res, err := t.tx.Exec(
		`INSERT INTO market_activities(session_id, bot_id, type, game_day, title, body,
			gold_delta, share_delta_pct, successful, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		a.SessionID, a.BotID, string(a.Type), a.GameDay, a.Title, a.Body,
		a.GoldDelta, a.ShareDeltaPct, b2i(a.Successful), dbTime(a.CreatedAt),
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

// RecentActivities returns the newest feed entries for a session, newest
// first.
func (t *Tx) RecentActivities(sessionID int64, limit int) ([]*game.MarketActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.tx.Query(
		`SELECT id, session_id, bot_id, type, game_day, title, body,
			gold_delta, share_delta_pct, successful, created_at
		 FROM market_activities WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.MarketActivity
	for rows.Next() {
		var a game.MarketActivity
		var typ, created string
		var successful int
		err := rows.Scan(&a.ID, &a.SessionID, &a.BotID, &typ, &a.GameDay, &a.Title,
			&a.Body, &a.GoldDelta, &a.ShareDeltaPct, &successful, &created)
		if err != nil {
			return nil, err
		}
		a.Type = game.ActivityType(typ)
		a.Successful = successful != 0
		a.CreatedAt = parseTime(created)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func scanBot(row *sql.Row) (*game.BotGuild, error) {
	var b game.BotGuild
	var personality, behavior, created string
	err := row.Scan(&b.ID, &b.SessionID, &b.Name, &b.CEOName, &b.Gold, &b.SharePrice,
		&b.ExpBank, &personality, &behavior, &b.RiskTolerance, &b.PerformanceScore,
		&b.ConsecutiveSuccesses, &b.DungeonsCompleted, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bot guild", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Personality = game.PersonalityType(personality)
	b.Behavior = game.BehaviorState(behavior)
	b.CreatedAt = parseTime(created)
	return &b, nil
}

func scanBotRows(rows *sql.Rows) (*game.BotGuild, error) {
	var b game.BotGuild
	var personality, behavior, created string
	err := rows.Scan(&b.ID, &b.SessionID, &b.Name, &b.CEOName, &b.Gold, &b.SharePrice,
		&b.ExpBank, &personality, &behavior, &b.RiskTolerance, &b.PerformanceScore,
		&b.ConsecutiveSuccesses, &b.DungeonsCompleted, &created)
	if err != nil {
		return nil, err
	}
	b.Personality = game.PersonalityType(personality)
	b.Behavior = game.BehaviorState(behavior)
	b.CreatedAt = parseTime(created)
	return &b, nil
}
