package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Statistics is the per-user rolling aggregate. WinRate is the share of
// hands the user finished with a profit; VPIP the share of hands where
// chips went in voluntarily preflop.
type Statistics struct {
	UserID      string    `json:"user_id"`
	HandsPlayed int       `json:"hands_played"`
	HandsWon    int       `json:"hands_won"`
	TotalProfit int       `json:"total_profit"`
	VPIPHands   int       `json:"vpip_hands"`
	WinRate     float64   `json:"win_rate"`
	VPIP        float64   `json:"vpip"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (st *Statistics) derive() {
	if st.HandsPlayed > 0 {
		st.WinRate = float64(st.HandsWon) / float64(st.HandsPlayed) * 100
		st.VPIP = float64(st.VPIPHands) / float64(st.HandsPlayed) * 100
	}
}

// GetOrCreateStats fetches the user's aggregate, creating an empty row on
// first use.
func (s *Store) GetOrCreateStats(userID string) (*Statistics, error) {
	st, err := s.getStats(userID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.Exec(
			`INSERT OR IGNORE INTO user_statistics (user_id, updated_at) VALUES (?, ?)`, userID, now())
		if err != nil {
			return nil, fmt.Errorf("creating statistics: %w", err)
		}
		return s.getStats(userID)
	}
	return st, err
}

func (s *Store) getStats(userID string) (*Statistics, error) {
	var st Statistics
	err := s.db.QueryRow(
		`SELECT user_id, hands_played, hands_won, total_profit, vpip_hands, updated_at
		 FROM user_statistics WHERE user_id = ?`, userID).
		Scan(&st.UserID, &st.HandsPlayed, &st.HandsWon, &st.TotalProfit, &st.VPIPHands, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning statistics: %w", err)
	}
	st.derive()
	return &st, nil
}

// AddHandResult rolls one finished hand into the aggregate
func (s *Store) AddHandResult(userID string, profit int, vpip bool) error {
	if _, err := s.GetOrCreateStats(userID); err != nil {
		return err
	}

	won := 0
	if profit > 0 {
		won = 1
	}
	v := 0
	if vpip {
		v = 1
	}
	_, err := s.db.Exec(
		`UPDATE user_statistics SET hands_played = hands_played + 1, hands_won = hands_won + ?,
		 total_profit = total_profit + ?, vpip_hands = vpip_hands + ?, updated_at = ? WHERE user_id = ?`,
		won, profit, v, now(), userID)
	if err != nil {
		return fmt.Errorf("updating statistics: %w", err)
	}
	return nil
}

// RecomputeStats rebuilds the aggregate from the rounds table. The rolling
// totals are a cache; this is the ground truth.
func (s *Store) RecomputeStats(userID string) (*Statistics, error) {
	var st Statistics
	st.UserID = userID
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN hero_profit > 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(hero_profit), 0),
		        COALESCE(SUM(vpip), 0)
		 FROM rounds WHERE user_id = ?`, userID).
		Scan(&st.HandsPlayed, &st.HandsWon, &st.TotalProfit, &st.VPIPHands)
	if err != nil {
		return nil, fmt.Errorf("recomputing statistics: %w", err)
	}

	st.UpdatedAt = now()
	_, err = s.db.Exec(
		`INSERT INTO user_statistics (user_id, hands_played, hands_won, total_profit, vpip_hands, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET hands_played = excluded.hands_played,
		   hands_won = excluded.hands_won, total_profit = excluded.total_profit,
		   vpip_hands = excluded.vpip_hands, updated_at = excluded.updated_at`,
		st.UserID, st.HandsPlayed, st.HandsWon, st.TotalProfit, st.VPIPHands, st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving recomputed statistics: %w", err)
	}

	st.derive()
	return &st, nil
}
