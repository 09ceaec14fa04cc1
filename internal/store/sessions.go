package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one sitting at the table: a run of consecutive hands with
// fixed stakes. TotalHands and TotalProfit accumulate as rounds are saved.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	SmallBlind   int        `json:"small_blind"`
	BigBlind     int        `json:"big_blind"`
	InitialStack int        `json:"initial_stack"`
	TotalHands   int        `json:"total_hands"`
	TotalProfit  int        `json:"total_profit"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// CreateSession opens a new session for the user
func (s *Store) CreateSession(userID string, smallBlind, bigBlind, initialStack int) (*Session, error) {
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		SmallBlind:   smallBlind,
		BigBlind:     bigBlind,
		InitialStack: initialStack,
		StartedAt:    now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, user_id, small_blind, big_blind, initial_stack, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.SmallBlind, sess.BigBlind, sess.InitialStack, sess.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// GetSession fetches one of the user's sessions
func (s *Store) GetSession(userID, sessionID string) (*Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT id, user_id, small_blind, big_blind, initial_stack, total_hands, total_profit, started_at, ended_at
		 FROM sessions WHERE id = ? AND user_id = ?`, sessionID, userID))
}

// ListSessions returns a page of the user's sessions, newest first
func (s *Store) ListSessions(userID string, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, small_blind, big_blind, initial_stack, total_hands, total_profit, started_at, ended_at
		 FROM sessions WHERE user_id = ? ORDER BY started_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// EndSession stamps ended_at. Ending an already-ended session is a no-op.
func (s *Store) EndSession(userID, sessionID string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ? AND user_id = ?`,
		now(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime
	err := row.Scan(&sess.ID, &sess.UserID, &sess.SmallBlind, &sess.BigBlind, &sess.InitialStack,
		&sess.TotalHands, &sess.TotalProfit, &sess.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return &sess, nil
}
