package store

import (
	"database/sql"
	"errors"
	"fmt"

	"guildcorp.gg/internal/game"
)

const miningCols = `id, run_id, room_progress_id, guild_id, miners, duration_hours,
	hours_done, pct, target_iron, target_gems, target_crystals,
	extracted_iron, extracted_gems, extracted_crystals,
	active, completed, started_at, last_update, estimated_completion`

func (t *Tx) InsertMiningOp(m *game.MiningOperation) error {
	res, err := t.tx.Exec(
		`INSERT INTO mining_ops(run_id, room_progress_id, guild_id, miners, duration_hours,
			hours_done, pct, target_iron, target_gems, target_crystals,
			extracted_iron, extracted_gems, extracted_crystals,
			active, completed, started_at, last_update, estimated_completion)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.RunID, m.RoomProgressID, m.GuildID, m.Miners, m.DurationHours,
		m.HoursDone, m.Pct, m.Target.IronOre, m.Target.PreciousGems, m.Target.MagicalCrystals,
		m.Extracted.IronOre, m.Extracted.PreciousGems, m.Extracted.MagicalCrystals,
		b2i(m.Active), b2i(m.Completed), dbTime(m.StartedAt), dbTime(m.LastUpdate),
		dbTime(m.EstimatedCompletion),
	)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) MiningOpByID(id int64) (*game.MiningOperation, error) {
	return scanMining(t.tx.QueryRow(`SELECT `+miningCols+` FROM mining_ops WHERE id = ?`, id))
}

// ActiveMiningOps lists every live extraction job across all sessions; the
// mining tick walks this set.
func (t *Tx) ActiveMiningOps() ([]*game.MiningOperation, error) {
	rows, err := t.tx.Query(`SELECT ` + miningCols + ` FROM mining_ops WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.MiningOperation
	for rows.Next() {
		m, err := scanMiningRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *Tx) MiningOpsByRun(runID int64) ([]*game.MiningOperation, error) {
	rows, err := t.tx.Query(`SELECT `+miningCols+` FROM mining_ops WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.MiningOperation
	for rows.Next() {
		m, err := scanMiningRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *Tx) UpdateMiningOp(m *game.MiningOperation) error {
	_, err := t.tx.Exec(
		`UPDATE mining_ops SET hours_done = ?, pct = ?,
			extracted_iron = ?, extracted_gems = ?, extracted_crystals = ?,
			active = ?, completed = ?, last_update = ?
		 WHERE id = ?`,
		m.HoursDone, m.Pct,
		m.Extracted.IronOre, m.Extracted.PreciousGems, m.Extracted.MagicalCrystals,
		b2i(m.Active), b2i(m.Completed), dbTime(m.LastUpdate), m.ID,
	)
	return err
}

func scanMining(row *sql.Row) (*game.MiningOperation, error) {
	var m game.MiningOperation
	var active, completed int
	var started, updated, estimated string
	err := row.Scan(&m.ID, &m.RunID, &m.RoomProgressID, &m.GuildID, &m.Miners,
		&m.DurationHours, &m.HoursDone, &m.Pct,
		&m.Target.IronOre, &m.Target.PreciousGems, &m.Target.MagicalCrystals,
		&m.Extracted.IronOre, &m.Extracted.PreciousGems, &m.Extracted.MagicalCrystals,
		&active, &completed, &started, &updated, &estimated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: mining op", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	fillMining(&m, active, completed, started, updated, estimated)
	return &m, nil
}

func scanMiningRows(rows *sql.Rows) (*game.MiningOperation, error) {
	var m game.MiningOperation
	var active, completed int
	var started, updated, estimated string
	err := rows.Scan(&m.ID, &m.RunID, &m.RoomProgressID, &m.GuildID, &m.Miners,
		&m.DurationHours, &m.HoursDone, &m.Pct,
		&m.Target.IronOre, &m.Target.PreciousGems, &m.Target.MagicalCrystals,
		&m.Extracted.IronOre, &m.Extracted.PreciousGems, &m.Extracted.MagicalCrystals,
		&active, &completed, &started, &updated, &estimated)
	if err != nil {
		return nil, err
	}
	fillMining(&m, active, completed, started, updated, estimated)
	return &m, nil
}

func fillMining(m *game.MiningOperation, active, completed int, started, updated, estimated string) {
	m.Active = active != 0
	m.Completed = completed != 0
	m.StartedAt = parseTime(started)
	m.LastUpdate = parseTime(updated)
	m.EstimatedCompletion = parseTime(estimated)
}
