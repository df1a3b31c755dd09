package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/botdeck/botdeck/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		profile_pic TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		is_blocked INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		experience INTEGER NOT NULL DEFAULT 0,
		last_active INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		is_group INTEGER NOT NULL DEFAULT 0,
		participant_count INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		is_muted INTEGER NOT NULL DEFAULT 0,
		last_message TEXT NOT NULL DEFAULT '',
		last_message_time INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'general',
		usage TEXT NOT NULL DEFAULT '',
		cooldown INTEGER NOT NULL DEFAULT 5,
		is_enabled INTEGER NOT NULL DEFAULT 1,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS bot_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		app_state TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		is_connected INTEGER NOT NULL DEFAULT 0,
		last_connected INTEGER NOT NULL DEFAULT 0,
		connection_health INTEGER NOT NULL DEFAULT 100
	)`,
	`INSERT OR IGNORE INTO session (id) VALUES (1)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_type ON activity_logs(type)`,
	`CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		messages_received INTEGER NOT NULL DEFAULT 0,
		messages_sent INTEGER NOT NULL DEFAULT 0,
		commands_executed INTEGER NOT NULL DEFAULT 0,
		start_time INTEGER NOT NULL DEFAULT 0
	)`,
	`INSERT OR IGNORE INTO stats (id) VALUES (1)`,
}

// Data owns the SQLite handle shared by all repositories
type Data struct {
	db *sql.DB
}

// NewData opens (creating if needed) the database at dbPath and applies the schema
func NewData(dbPath string) (*Data, error) {
	if dbPath != MemoryDSN {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection so a :memory: database is shared by all repositories
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Data{db: db}, nil
}

// Close closes the database
func (d *Data) Close() error {
	return d.db.Close()
}

// Ping checks the database is reachable
func (d *Data) Ping() error {
	return d.db.Ping()
}

// NewStore creates all repositories over d
func NewStore(d *Data) *repo.Store {
	return &repo.Store{
		Users:    &userRepo{db: d.db},
		Threads:  &threadRepo{db: d.db},
		Commands: &commandRepo{db: d.db},
		Config:   &configRepo{db: d.db},
		Session:  &sessionRepo{db: d.db},
		Logs:     &logRepo{db: d.db},
		Stats:    &statsRepo{db: d.db},
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
