// Package store persists users, sessions, hand history and statistics in
// SQLite. All game-data queries are scoped by user id; asking for another
// user's row yields ErrNotFound.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound means the row does not exist or belongs to another user
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a uniqueness constraint was violated
	ErrAlreadyExists = errors.New("already exists")
)

// Store wraps the SQLite handle
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			llm_provider  TEXT NOT NULL DEFAULT '',
			llm_api_key   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			small_blind   INTEGER NOT NULL,
			big_blind     INTEGER NOT NULL,
			initial_stack INTEGER NOT NULL,
			total_hands   INTEGER NOT NULL DEFAULT 0,
			total_profit  INTEGER NOT NULL DEFAULT 0,
			started_at    TIMESTAMP NOT NULL,
			ended_at      TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id              TEXT PRIMARY KEY,
			session_id      TEXT NOT NULL REFERENCES sessions(id),
			user_id         TEXT NOT NULL REFERENCES users(id),
			round_number    INTEGER NOT NULL,
			hero_hole_cards TEXT NOT NULL DEFAULT '[]',
			community_cards TEXT NOT NULL DEFAULT '[]',
			street_history  TEXT NOT NULL DEFAULT '{}',
			winners         TEXT NOT NULL DEFAULT '[]',
			hero_profit     INTEGER NOT NULL DEFAULT 0,
			pot_size        INTEGER NOT NULL DEFAULT 0,
			vpip            INTEGER NOT NULL DEFAULT 0,
			review          TEXT,
			created_at      TIMESTAMP NOT NULL,
			UNIQUE(session_id, round_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, round_number)`,
		`CREATE TABLE IF NOT EXISTS user_statistics (
			user_id      TEXT PRIMARY KEY REFERENCES users(id),
			hands_played INTEGER NOT NULL DEFAULT 0,
			hands_won    INTEGER NOT NULL DEFAULT 0,
			total_profit INTEGER NOT NULL DEFAULT 0,
			vpip_hands   INTEGER NOT NULL DEFAULT 0,
			updated_at   TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
