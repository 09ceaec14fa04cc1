package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
)

// Round is one persisted hand of a session
type Round struct {
	ID             string                                  `json:"id"`
	SessionID      string                                  `json:"session_id"`
	UserID         string                                  `json:"user_id"`
	RoundNumber    int                                     `json:"round_number"`
	HeroHoleCards  []deck.Card                             `json:"hero_hole_cards"`
	CommunityCards []deck.Card                             `json:"community_cards"`
	StreetHistory  map[engine.Street][]engine.ActionRecord `json:"street_history"`
	Winners        []engine.Winner                         `json:"winners"`
	HeroProfit     int                                     `json:"hero_profit"`
	PotSize        int                                     `json:"pot_size"`
	VPIP           bool                                    `json:"vpip"` // hero voluntarily put chips in preflop
	Review         json.RawMessage                         `json:"review,omitempty"`
	CreatedAt      time.Time                               `json:"created_at"`
}

// CreateRound saves a finished hand. The round number is assigned from the
// session's existing rounds inside a transaction, and the session totals
// roll forward in the same transaction.
func (s *Store) CreateRound(r *Round) (*Round, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Ownership check doubles as a session existence check.
	var owner string
	err = tx.QueryRow(`SELECT user_id FROM sessions WHERE id = ?`, r.SessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != r.UserID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking session: %w", err)
	}

	if r.RoundNumber <= 0 {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM rounds WHERE session_id = ?`, r.SessionID).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting rounds: %w", err)
		}
		r.RoundNumber = count + 1
	}

	r.ID = uuid.NewString()
	r.CreatedAt = now()

	hole, _ := json.Marshal(r.HeroHoleCards)
	board, _ := json.Marshal(r.CommunityCards)
	history, _ := json.Marshal(r.StreetHistory)
	winners, _ := json.Marshal(r.Winners)

	_, err = tx.Exec(
		`INSERT INTO rounds (id, session_id, user_id, round_number, hero_hole_cards, community_cards,
		 street_history, winners, hero_profit, pot_size, vpip, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.UserID, r.RoundNumber, string(hole), string(board),
		string(history), string(winners), r.HeroProfit, r.PotSize, r.VPIP, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting round: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE sessions SET total_hands = total_hands + 1, total_profit = total_profit + ? WHERE id = ?`,
		r.HeroProfit, r.SessionID)
	if err != nil {
		return nil, fmt.Errorf("updating session totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing round: %w", err)
	}
	return r, nil
}

// GetRound fetches one of the user's rounds
func (s *Store) GetRound(userID, roundID string) (*Round, error) {
	return scanRound(s.db.QueryRow(
		`SELECT id, session_id, user_id, round_number, hero_hole_cards, community_cards,
		 street_history, winners, hero_profit, pot_size, vpip, review, created_at
		 FROM rounds WHERE id = ? AND user_id = ?`, roundID, userID))
}

// GetSessionRounds lists a session's rounds in play order
func (s *Store) GetSessionRounds(userID, sessionID string) ([]*Round, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, user_id, round_number, hero_hole_cards, community_cards,
		 street_history, winners, hero_profit, pot_size, vpip, review, created_at
		 FROM rounds WHERE session_id = ? AND user_id = ? ORDER BY round_number`, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// UpdateRoundReview attaches a review to one of the user's rounds
func (s *Store) UpdateRoundReview(userID, roundID string, review json.RawMessage) error {
	res, err := s.db.Exec(`UPDATE rounds SET review = ? WHERE id = ? AND user_id = ?`,
		string(review), roundID, userID)
	if err != nil {
		return fmt.Errorf("updating round review: %w", err)
	}
	return requireRow(res)
}

func scanRound(row rowScanner) (*Round, error) {
	var r Round
	var hole, board, history, winners string
	var review sql.NullString

	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.RoundNumber, &hole, &board,
		&history, &winners, &r.HeroProfit, &r.PotSize, &r.VPIP, &review, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning round: %w", err)
	}

	if err := json.Unmarshal([]byte(hole), &r.HeroHoleCards); err != nil {
		return nil, fmt.Errorf("decoding hole cards: %w", err)
	}
	if err := json.Unmarshal([]byte(board), &r.CommunityCards); err != nil {
		return nil, fmt.Errorf("decoding community cards: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &r.StreetHistory); err != nil {
		return nil, fmt.Errorf("decoding street history: %w", err)
	}
	if err := json.Unmarshal([]byte(winners), &r.Winners); err != nil {
		return nil, fmt.Errorf("decoding winners: %w", err)
	}
	if review.Valid && review.String != "" {
		r.Review = json.RawMessage(review.String)
	}
	return &r, nil
}
