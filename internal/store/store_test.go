package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = s.CreateUser("alice", "alice2@example.com", "other-hash", false)
	assert.ErrorIs(t, err, ErrAlreadyExists, "duplicate username")

	_, err = s.CreateUser("alice2", "alice@example.com", "other-hash", false)
	assert.ErrorIs(t, err, ErrAlreadyExists, "duplicate email")

	got, err := s.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.False(t, got.IsAdmin)

	_, err = s.GetUserByUsername("bob")
	assert.ErrorIs(t, err, ErrNotFound)

	byID, err := s.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUserLLMKey(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	require.NoError(t, s.SetUserLLMKey(u.ID, "deepseek", "sk-test"))

	got, err := s.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", got.LLMProvider)
	assert.Equal(t, "sk-test", got.LLMAPIKey)

	require.NoError(t, s.ClearUserLLMKey(u.ID))
	got, err = s.GetUser(u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.LLMAPIKey)

	assert.ErrorIs(t, s.SetUserLLMKey("missing", "openai", "k"), ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	sess, err := s.CreateSession(u.ID, 10, 20, 1000)
	require.NoError(t, err)
	assert.Nil(t, sess.EndedAt)

	got, err := s.GetSession(u.ID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.BigBlind)
	assert.Zero(t, got.TotalHands)

	require.NoError(t, s.EndSession(u.ID, sess.ID))
	got, err = s.GetSession(u.ID, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	firstEnd := *got.EndedAt

	// Ending again keeps the original timestamp.
	require.NoError(t, s.EndSession(u.ID, sess.ID))
	got, err = s.GetSession(u.ID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, firstEnd, *got.EndedAt)
}

func TestSessionOwnershipScoping(t *testing.T) {
	s := testStore(t)

	alice, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "bob@example.com", "hash", false)
	require.NoError(t, err)

	sess, err := s.CreateSession(alice.ID, 10, 20, 1000)
	require.NoError(t, err)

	_, err = s.GetSession(bob.ID, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.EndSession(bob.ID, sess.ID), ErrNotFound)

	sessions, err := s.ListSessions(bob.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestListSessionsPagination(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.CreateSession(u.ID, 10, 20, 1000)
		require.NoError(t, err)
	}

	page, err := s.ListSessions(u.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)

	next, err := s.ListSessions(u.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.NotEqual(t, page[0].ID, next[0].ID)
	assert.NotEqual(t, page[1].ID, next[1].ID)

	tail, err := s.ListSessions(u.ID, 10, 4)
	require.NoError(t, err)
	assert.Len(t, tail, 1)
}

func TestRoundNumbersAssignedSequentially(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	sess, err := s.CreateSession(u.ID, 10, 20, 1000)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		r, err := s.CreateRound(&Round{
			SessionID:     sess.ID,
			UserID:        u.ID,
			HeroHoleCards: deck.MustParseCards("AsKd"),
			HeroProfit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, i, r.RoundNumber)
	}

	got, err := s.GetSession(u.ID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalHands)
	assert.Equal(t, 30, got.TotalProfit)
}

func TestRoundRoundTrip(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	sess, err := s.CreateSession(u.ID, 10, 20, 1000)
	require.NoError(t, err)

	r, err := s.CreateRound(&Round{
		SessionID:      sess.ID,
		UserID:         u.ID,
		HeroHoleCards:  deck.MustParseCards("AsKd"),
		CommunityCards: deck.MustParseCards("2c7hJd"),
		StreetHistory: map[engine.Street][]engine.ActionRecord{
			engine.StreetPreflop: {{Name: "Alice", Action: engine.ActionRaise, Amount: 60}},
		},
		Winners:    []engine.Winner{{SeatID: "human", Name: "Alice", Amount: 120}},
		HeroProfit: 60,
		PotSize:    120,
		VPIP:       true,
	})
	require.NoError(t, err)

	got, err := s.GetRound(u.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, deck.MustParseCards("AsKd"), got.HeroHoleCards)
	assert.Equal(t, deck.MustParseCards("2c7hJd"), got.CommunityCards)
	assert.Len(t, got.StreetHistory[engine.StreetPreflop], 1)
	assert.Equal(t, 120, got.Winners[0].Amount)
	assert.True(t, got.VPIP)
	assert.Nil(t, got.Review)

	rounds, err := s.GetSessionRounds(u.ID, sess.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
}

func TestRoundOwnershipScoping(t *testing.T) {
	s := testStore(t)

	alice, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "bob@example.com", "hash", false)
	require.NoError(t, err)

	sess, err := s.CreateSession(alice.ID, 10, 20, 1000)
	require.NoError(t, err)

	// Bob cannot write into Alice's session.
	_, err = s.CreateRound(&Round{SessionID: sess.ID, UserID: bob.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := s.CreateRound(&Round{SessionID: sess.ID, UserID: alice.ID})
	require.NoError(t, err)

	_, err = s.GetRound(bob.ID, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateRoundReview(bob.ID, r.ID, json.RawMessage(`{}`)), ErrNotFound)
}

func TestRoundReview(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	sess, err := s.CreateSession(u.ID, 10, 20, 1000)
	require.NoError(t, err)
	r, err := s.CreateRound(&Round{SessionID: sess.ID, UserID: u.ID})
	require.NoError(t, err)

	review := json.RawMessage(`{"overall":"well played"}`)
	require.NoError(t, s.UpdateRoundReview(u.ID, r.ID, review))

	got, err := s.GetRound(u.ID, r.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(review), string(got.Review))
}

func TestStatistics(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	st, err := s.GetOrCreateStats(u.ID)
	require.NoError(t, err)
	assert.Zero(t, st.HandsPlayed)

	require.NoError(t, s.AddHandResult(u.ID, 50, true))
	require.NoError(t, s.AddHandResult(u.ID, -20, false))
	require.NoError(t, s.AddHandResult(u.ID, 0, true))
	require.NoError(t, s.AddHandResult(u.ID, 30, true))

	st, err = s.GetOrCreateStats(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.HandsPlayed)
	assert.Equal(t, 2, st.HandsWon, "only profitable hands count as wins")
	assert.Equal(t, 60, st.TotalProfit)
	assert.InDelta(t, 50.0, st.WinRate, 1e-9)
	assert.InDelta(t, 75.0, st.VPIP, 1e-9)
}

func TestRecomputeStats(t *testing.T) {
	s := testStore(t)

	u, err := s.CreateUser("alice", "alice@example.com", "hash", false)
	require.NoError(t, err)
	sess, err := s.CreateSession(u.ID, 10, 20, 1000)
	require.NoError(t, err)

	for _, r := range []Round{
		{HeroProfit: 100, VPIP: true},
		{HeroProfit: -40, VPIP: true},
		{HeroProfit: 0, VPIP: false},
	} {
		r.SessionID = sess.ID
		r.UserID = u.ID
		_, err := s.CreateRound(&r)
		require.NoError(t, err)
	}

	st, err := s.RecomputeStats(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.HandsPlayed)
	assert.Equal(t, 1, st.HandsWon)
	assert.Equal(t, 60, st.TotalProfit)
	assert.Equal(t, 2, st.VPIPHands)
	assert.InDelta(t, 100.0/3.0, st.WinRate, 1e-6)
}
