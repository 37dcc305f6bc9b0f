// Package storage provides SQLite-backed persistence for scraped records,
// volume tables and scrape runs.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// dateLayout is the storage form of snapshot and volume dates.
const dateLayout = "2006-01-02"

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/tickerpulse/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "tickerpulse", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			snapshot_date TEXT NOT NULL,
			kind          TEXT NOT NULL,
			record_id     TEXT NOT NULL,
			post_id       TEXT NOT NULL,
			source        TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			text          TEXT,
			tickers       TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (snapshot_date, kind, record_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at)`,
		`CREATE TABLE IF NOT EXISTS volumes (
			date   TEXT NOT NULL,
			ticker TEXT NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (date, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS scrape_runs (
			id            TEXT PRIMARY KEY,
			snapshot_date TEXT NOT NULL,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL DEFAULT 0,
			records       INTEGER NOT NULL DEFAULT 0,
			sources       TEXT NOT NULL DEFAULT '[]',
			error         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
