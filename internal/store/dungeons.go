package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildcorp.gg/internal/game"
)

const dungeonCols = `id, session_id, name, location, rank, total_rooms, boss_room,
	max_contracts, base_loot_value, completion_bonus, failure_penalty,
	bidding_closes_at, closes_at, status, completed, completed_by_guild, discovered_at`

// InsertDungeon stores a dungeon and its rooms in one shot; room ids and the
// dungeon id are written back into the arguments.
func (t *Tx) InsertDungeon(d *game.Dungeon, rooms []*game.DungeonRoom) error {
	res, err := t.tx.Exec(
		`INSERT INTO dungeons(session_id, name, location, rank, total_rooms, boss_room,
			max_contracts, base_loot_value, completion_bonus, failure_penalty,
			bidding_closes_at, closes_at, status, completed, completed_by_guild, discovered_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.SessionID, d.Name, d.Location, string(d.Rank), d.TotalRooms, d.BossRoom,
		d.MaxContracts, d.BaseLootValue, d.CompletionBonus, d.FailurePenalty,
		dbTime(d.BiddingClosesAt), dbTime(d.ClosesAt), string(d.Status),
		b2i(d.Completed), d.CompletedByGuild, dbTime(d.DiscoveredAt),
	)
	if err != nil {
		return err
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, r := range rooms {
		r.DungeonID = d.ID
		res, err := t.tx.Exec(
			`INSERT INTO dungeon_rooms(dungeon_id, number, name, boss_room, difficulty,
				enemy_kind, enemy_level, enemy_count, enemy_boss,
				loot_gold, loot_exp, iron_ore, precious_gems, magical_crystals, mining_duration_hours)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.DungeonID, r.Number, r.Name, b2i(r.BossRoom), r.Difficulty,
			r.Enemies.Kind, r.Enemies.Level, r.Enemies.Count, b2i(r.Enemies.Boss),
			r.Loot.Gold, r.Loot.Exp, r.Mining.IronOre, r.Mining.PreciousGems,
			r.Mining.MagicalCrystals, r.MiningDurationHours,
		)
		if err != nil {
			return err
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) DungeonByID(id int64) (*game.Dungeon, error) {
	return scanDungeon(t.tx.QueryRow(`SELECT `+dungeonCols+` FROM dungeons WHERE id = ?`, id))
}

// DungeonsBySession lists a session's dungeons, optionally filtered by status.
func (t *Tx) DungeonsBySession(sessionID int64, status game.DungeonStatus) ([]*game.Dungeon, error) {
	q := `SELECT ` + dungeonCols + ` FROM dungeons WHERE session_id = ?`
	args := []any{sessionID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id`

	rows, err := t.tx.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDungeonRows(rows)
}

// BiddingExpired finds dungeons still in BIDDING whose window has passed.
func (t *Tx) BiddingExpired(now time.Time) ([]*game.Dungeon, error) {
	rows, err := t.tx.Query(
		`SELECT `+dungeonCols+` FROM dungeons WHERE status = ? AND bidding_closes_at <= ? ORDER BY id`,
		string(game.DungeonBidding), dbTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDungeonRows(rows)
}

// ActiveExpired finds dungeons past their seven-day window, due to collapse.
func (t *Tx) ActiveExpired(now time.Time) ([]*game.Dungeon, error) {
	rows, err := t.tx.Query(
		`SELECT `+dungeonCols+` FROM dungeons WHERE status = ? AND closes_at <= ? ORDER BY id`,
		string(game.DungeonActive), dbTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDungeonRows(rows)
}

func (t *Tx) UpdateDungeon(d *game.Dungeon) error {
	_, err := t.tx.Exec(
		`UPDATE dungeons SET status = ?, completed = ?, completed_by_guild = ?,
			bidding_closes_at = ?, closes_at = ?
		 WHERE id = ?`,
		string(d.Status), b2i(d.Completed), d.CompletedByGuild,
		dbTime(d.BiddingClosesAt), dbTime(d.ClosesAt), d.ID,
	)
	return err
}

func (t *Tx) RoomsByDungeon(dungeonID int64) ([]*game.DungeonRoom, error) {
	rows, err := t.tx.Query(
		`SELECT id, dungeon_id, number, name, boss_room, difficulty,
			enemy_kind, enemy_level, enemy_count, enemy_boss,
			loot_gold, loot_exp, iron_ore, precious_gems, magical_crystals, mining_duration_hours
		 FROM dungeon_rooms WHERE dungeon_id = ? ORDER BY number`, dungeonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.DungeonRoom
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *Tx) RoomByNumber(dungeonID int64, number int) (*game.DungeonRoom, error) {
	rows, err := t.tx.Query(
		`SELECT id, dungeon_id, number, name, boss_room, difficulty,
			enemy_kind, enemy_level, enemy_count, enemy_boss,
			loot_gold, loot_exp, iron_ore, precious_gems, magical_crystals, mining_duration_hours
		 FROM dungeon_rooms WHERE dungeon_id = ? AND number = ?`, dungeonID, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: room %d", game.ErrNotFound, number)
	}
	return scanRoom(rows)
}

func scanRoom(rows *sql.Rows) (*game.DungeonRoom, error) {
	var r game.DungeonRoom
	var boss, enemyBoss int
	err := rows.Scan(&r.ID, &r.DungeonID, &r.Number, &r.Name, &boss, &r.Difficulty,
		&r.Enemies.Kind, &r.Enemies.Level, &r.Enemies.Count, &enemyBoss,
		&r.Loot.Gold, &r.Loot.Exp, &r.Mining.IronOre, &r.Mining.PreciousGems,
		&r.Mining.MagicalCrystals, &r.MiningDurationHours)
	if err != nil {
		return nil, err
	}
	r.BossRoom = boss != 0
	r.Enemies.Boss = enemyBoss != 0
	return &r, nil
}

func scanDungeon(row *sql.Row) (*game.Dungeon, error) {
	var d game.Dungeon
	var rank, status, bidClose, closesAt, discovered string
	var completed int
	err := row.Scan(&d.ID, &d.SessionID, &d.Name, &d.Location, &rank, &d.TotalRooms,
		&d.BossRoom, &d.MaxContracts, &d.BaseLootValue, &d.CompletionBonus,
		&d.FailurePenalty, &bidClose, &closesAt, &status, &completed,
		&d.CompletedByGuild, &discovered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dungeon", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	fillDungeon(&d, rank, status, bidClose, closesAt, discovered, completed)
	return &d, nil
}

func scanDungeonRows(rows *sql.Rows) ([]*game.Dungeon, error) {
	var out []*game.Dungeon
	for rows.Next() {
		var d game.Dungeon
		var rank, status, bidClose, closesAt, discovered string
		var completed int
		err := rows.Scan(&d.ID, &d.SessionID, &d.Name, &d.Location, &rank, &d.TotalRooms,
			&d.BossRoom, &d.MaxContracts, &d.BaseLootValue, &d.CompletionBonus,
			&d.FailurePenalty, &bidClose, &closesAt, &status, &completed,
			&d.CompletedByGuild, &discovered)
		if err != nil {
			return nil, err
		}
		fillDungeon(&d, rank, status, bidClose, closesAt, discovered, completed)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func fillDungeon(d *game.Dungeon, rank, status, bidClose, closesAt, discovered string, completed int) {
	d.Rank = game.Rank(rank)
	d.Status = game.DungeonStatus(status)
	d.BiddingClosesAt = parseTime(bidClose)
	d.ClosesAt = parseTime(closesAt)
	d.DiscoveredAt = parseTime(discovered)
	d.Completed = completed != 0
}
