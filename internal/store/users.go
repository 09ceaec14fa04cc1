package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account row. LLMAPIKey is the user-tier key consulted when a
// session supplies none of its own.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	LLMProvider  string
	LLMAPIKey    string
	CreatedAt    time.Time
}

// CreateUser inserts a new account. Returns ErrAlreadyExists when the
// username or email is taken.
func (s *Store) CreateUser(username, email, passwordHash string, isAdmin bool) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO users (id, username, email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUser fetches an account by id
func (s *Store) GetUser(id string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, password_hash, is_admin, llm_provider, llm_api_key, created_at FROM users WHERE id = ?`, id))
}

// GetUserByUsername fetches an account by username
func (s *Store) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, password_hash, is_admin, llm_provider, llm_api_key, created_at FROM users WHERE username = ?`, username))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.LLMProvider, &u.LLMAPIKey, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// SetUserLLMKey stores the user-tier LLM credentials
func (s *Store) SetUserLLMKey(userID, provider, apiKey string) error {
	res, err := s.db.Exec(`UPDATE users SET llm_provider = ?, llm_api_key = ? WHERE id = ?`, provider, apiKey, userID)
	if err != nil {
		return fmt.Errorf("setting llm key: %w", err)
	}
	return requireRow(res)
}

// ClearUserLLMKey removes the user-tier LLM credentials
func (s *Store) ClearUserLLMKey(userID string) error {
	res, err := s.db.Exec(`UPDATE users SET llm_provider = '', llm_api_key = '' WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clearing llm key: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
