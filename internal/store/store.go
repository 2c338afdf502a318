// Package store persists Nexus state in SQLite: channel logs, department
// KPI scores, missions, and per-channel settings. One store instance is
// shared by the whole process; sqlite serializes writes through a single
// connection.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"nexus/internal/logging"
)

// Store manages the Nexus database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the Nexus store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer connection; WAL readers do not block it.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("opened database at %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	-- Append-only channel history
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		msg TEXT NOT NULL,
		type TEXT NOT NULL,
		image_url TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_channel ON logs(channel_id, id);

	-- Department reputation
	CREATE TABLE IF NOT EXISTS kpi_scores (
		dept TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		streak INTEGER NOT NULL,
		last_eval DATETIME NOT NULL
	);

	-- Missions; at most one active row per channel
	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		goal TEXT NOT NULL,
		tasks_json TEXT NOT NULL,
		step INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_missions_channel ON missions(channel_id, status);

	-- Per-channel settings (credential bundles)
	CREATE TABLE IF NOT EXISTS channel_settings (
		channel_id TEXT PRIMARY KEY,
		service TEXT NOT NULL DEFAULT '',
		login TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
