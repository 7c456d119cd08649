package store

import (
	"database/sql"
	"errors"
	"fmt"

	"guildcorp.gg/internal/game"
)

func (t *Tx) InsertSession(s *game.Session) error {
	res, err := t.tx.Exec(
		`INSERT INTO sessions(public_id, player_id, week, active, created_at) VALUES(?,?,?,?,?)`,
		s.PublicID, s.PlayerID, s.Week, b2i(s.Active), dbTime(s.CreatedAt),
	)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) SessionByID(id int64) (*game.Session, error) {
	return t.scanSession(t.tx.QueryRow(
		`SELECT id, public_id, player_id, week, active, created_at FROM sessions WHERE id = ?`, id))
}

func (t *Tx) SessionByPublicID(publicID string) (*game.Session, error) {
	return t.scanSession(t.tx.QueryRow(
		`SELECT id, public_id, player_id, week, active, created_at FROM sessions WHERE public_id = ?`, publicID))
}

// ActiveSessions lists every session the background ticks should visit.
func (t *Tx) ActiveSessions() ([]*game.Session, error) {
	rows, err := t.tx.Query(
		`SELECT id, public_id, player_id, week, active, created_at FROM sessions WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Session
	for rows.Next() {
		s, err := t.scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *Tx) UpdateSession(s *game.Session) error {
	_, err := t.tx.Exec(
		`UPDATE sessions SET week = ?, active = ? WHERE id = ?`,
		s.Week, b2i(s.Active), s.ID,
	)
	return err
}

func (t *Tx) scanSession(row *sql.Row) (*game.Session, error) {
	var s game.Session
	var active int
	var created string
	err := row.Scan(&s.ID, &s.PublicID, &s.PlayerID, &s.Week, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.Active = active != 0
	s.CreatedAt = parseTime(created)
	return &s, nil
}

func (t *Tx) scanSessionRows(rows *sql.Rows) (*game.Session, error) {
	var s game.Session
	var active int
	var created string
	if err := rows.Scan(&s.ID, &s.PublicID, &s.PlayerID, &s.Week, &active, &created); err != nil {
		return nil, err
	}
	s.Active = active != 0
	s.CreatedAt = parseTime(created)
	return &s, nil
}
