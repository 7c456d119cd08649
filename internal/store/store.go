// Package store is the system of record. A single SQLite connection
// serializes every mutation; services express each operation as one
// Update transaction so concurrent ticks and requests never interleave
// partial writes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Tx wraps one transaction. Entity accessors hang off it so a service
// callback can only touch the database through the transaction.
type Tx struct {
	tx *sql.Tx
}

// Update runs fn inside a write transaction, committing on nil and rolling
// back on error or panic.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	txx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = txx.Rollback() }()

	if err := fn(&Tx{tx: txx}); err != nil {
		return err
	}
	return txx.Commit()
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	txx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = txx.Rollback() }()
	return fn(&Tx{tx: txx})
}

func initPragmas(db *sql.DB) error {
	// WAL plus NORMAL sync; busy_timeout covers the rare second connection
	// during tests.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT NOT NULL UNIQUE,
			player_id INTEGER NOT NULL,
			week INTEGER NOT NULL DEFAULT 1,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS guilds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			name TEXT NOT NULL,
			gold INTEGER NOT NULL,
			share_price REAL NOT NULL,
			guild_exp INTEGER NOT NULL DEFAULT 0,
			exp_spent INTEGER NOT NULL DEFAULT 0,
			training_pct INTEGER NOT NULL DEFAULT 0,
			dungeon_reward_pct INTEGER NOT NULL DEFAULT 0,
			recruit_cost_pct INTEGER NOT NULL DEFAULT 0,
			facility_cost_pct INTEGER NOT NULL DEFAULT 0,
			extra_actions INTEGER NOT NULL DEFAULT 0,
			last_interest_week INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_guilds_session ON guilds(session_id);`,
		`CREATE TABLE IF NOT EXISTS adventurers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id INTEGER NOT NULL REFERENCES guilds(id),
			name TEXT NOT NULL,
			level INTEGER NOT NULL DEFAULT 1,
			strength INTEGER NOT NULL DEFAULT 10,
			dexterity INTEGER NOT NULL DEFAULT 10,
			health INTEGER NOT NULL DEFAULT 100
		);`,
		`CREATE INDEX IF NOT EXISTS idx_adventurers_guild ON adventurers(guild_id);`,
		`CREATE TABLE IF NOT EXISTS dungeons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			name TEXT NOT NULL,
			location TEXT NOT NULL,
			rank TEXT NOT NULL,
			total_rooms INTEGER NOT NULL,
			boss_room INTEGER NOT NULL,
			max_contracts INTEGER NOT NULL DEFAULT 1,
			base_loot_value INTEGER NOT NULL,
			completion_bonus INTEGER NOT NULL,
			failure_penalty INTEGER NOT NULL,
			bidding_closes_at TEXT NOT NULL,
			closes_at TEXT NOT NULL,
			status TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_by_guild INTEGER NOT NULL DEFAULT 0,
			discovered_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dungeons_session_status ON dungeons(session_id, status);`,
		`CREATE TABLE IF NOT EXISTS dungeon_rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dungeon_id INTEGER NOT NULL REFERENCES dungeons(id),
			number INTEGER NOT NULL,
			name TEXT NOT NULL,
			boss_room INTEGER NOT NULL DEFAULT 0,
			difficulty INTEGER NOT NULL,
			enemy_kind TEXT NOT NULL,
			enemy_level INTEGER NOT NULL,
			enemy_count INTEGER NOT NULL,
			enemy_boss INTEGER NOT NULL DEFAULT 0,
			loot_gold INTEGER NOT NULL,
			loot_exp INTEGER NOT NULL,
			iron_ore INTEGER NOT NULL,
			precious_gems INTEGER NOT NULL,
			magical_crystals INTEGER NOT NULL,
			mining_duration_hours INTEGER NOT NULL,
			UNIQUE (dungeon_id, number)
		);`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dungeon_id INTEGER NOT NULL REFERENCES dungeons(id),
			guild_id INTEGER NOT NULL,
			bot_owned INTEGER NOT NULL DEFAULT 0,
			bid_amount INTEGER NOT NULL,
			submitted_at TEXT NOT NULL,
			status TEXT NOT NULL,
			awarded_at TEXT NOT NULL DEFAULT '',
			access_expires_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_dungeon_status ON contracts(dungeon_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_guild ON contracts(guild_id);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dungeon_id INTEGER NOT NULL REFERENCES dungeons(id),
			guild_id INTEGER NOT NULL,
			contract_id INTEGER NOT NULL REFERENCES contracts(id),
			current_room INTEGER NOT NULL DEFAULT 0,
			furthest_room INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			loot_gold INTEGER NOT NULL DEFAULT 0,
			loot_exp INTEGER NOT NULL DEFAULT 0,
			rooms_cleared INTEGER NOT NULL DEFAULT 0,
			enemies_defeated INTEGER NOT NULL DEFAULT 0,
			mining_ops INTEGER NOT NULL DEFAULT 0,
			boss_defeated INTEGER NOT NULL DEFAULT 0,
			today_time_used INTEGER NOT NULL DEFAULT 0,
			time_limit_per_day INTEGER NOT NULL,
			last_reset_date TEXT NOT NULL DEFAULT '',
			completion_bonus_earned INTEGER NOT NULL DEFAULT 0,
			failure_penalty_paid INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_dungeon ON runs(dungeon_id);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);`,
		`CREATE TABLE IF NOT EXISTS run_party (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			adventurer_id INTEGER NOT NULL REFERENCES adventurers(id),
			PRIMARY KEY (run_id, adventurer_id)
		);`,
		`CREATE TABLE IF NOT EXISTS room_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			room_id INTEGER NOT NULL REFERENCES dungeon_rooms(id),
			state TEXT NOT NULL,
			loot_gold INTEGER NOT NULL DEFAULT 0,
			loot_exp INTEGER NOT NULL DEFAULT 0,
			mining_pct REAL NOT NULL DEFAULT 0,
			first_entered_at TEXT NOT NULL,
			cleared_at TEXT NOT NULL DEFAULT '',
			UNIQUE (run_id, room_id)
		);`,
		`CREATE TABLE IF NOT EXISTS mining_ops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			room_progress_id INTEGER NOT NULL REFERENCES room_progress(id),
			guild_id INTEGER NOT NULL,
			miners INTEGER NOT NULL DEFAULT 1,
			duration_hours INTEGER NOT NULL,
			hours_done REAL NOT NULL DEFAULT 0,
			pct REAL NOT NULL DEFAULT 0,
			target_iron INTEGER NOT NULL,
			target_gems INTEGER NOT NULL,
			target_crystals INTEGER NOT NULL,
			extracted_iron INTEGER NOT NULL DEFAULT 0,
			extracted_gems INTEGER NOT NULL DEFAULT 0,
			extracted_crystals INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			completed INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			last_update TEXT NOT NULL,
			estimated_completion TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mining_active ON mining_ops(active);`,
		`CREATE TABLE IF NOT EXISTS bot_guilds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			name TEXT NOT NULL,
			ceo_name TEXT NOT NULL,
			gold INTEGER NOT NULL,
			share_price REAL NOT NULL,
			exp_bank INTEGER NOT NULL DEFAULT 0,
			personality TEXT NOT NULL,
			behavior TEXT NOT NULL,
			risk_tolerance REAL NOT NULL,
			performance_score REAL NOT NULL DEFAULT 50,
			consecutive_successes INTEGER NOT NULL DEFAULT 0,
			dungeons_completed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bots_session ON bot_guilds(session_id);`,
		`CREATE TABLE IF NOT EXISTS market_activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			bot_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			game_day INTEGER NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			gold_delta INTEGER NOT NULL DEFAULT 0,
			share_delta_pct REAL NOT NULL DEFAULT 0,
			successful INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_session ON market_activities(session_id, id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// dbTime encodes a timestamp as RFC 3339 nano UTC; zero times become the
// empty string so optional columns stay queryable.
func dbTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
