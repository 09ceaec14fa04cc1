package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Server.DatabasePath = ":memory:"
	cfg.Server.JWTSecret = "test-secret"
	cfg.Server.AllowedOrigins = []string{"https://example.com"}

	s, err := New(cfg, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func registerUser(t *testing.T, handler http.Handler, username string) (string, string) {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": username, "email": username + "@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	decodeBody(t, rec, &resp)
	return resp.User.ID, resp.Token
}

func TestMissingJWTSecretFailsStartup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DatabasePath = ":memory:"

	_, err := New(cfg, log.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOLDEM_JWT_SECRET")
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "alice", "email": "alice@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created authResponse
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "alice", created.User.Username)
	assert.Equal(t, "alice@example.com", created.User.Email)
	assert.False(t, created.User.IsAdmin)

	// duplicate username
	rec = doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "alice", "email": "alice2@example.com", "password": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// duplicate email
	rec = doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "alice2", "email": "alice@example.com", "password": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// login
	rec = doJSON(t, handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "alice", "password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)

	var logged authResponse
	decodeBody(t, rec, &logged)
	assert.NotEmpty(t, logged.Token)
	assert.Equal(t, created.User.ID, logged.User.ID)

	// wrong password
	rec = doJSON(t, handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "", "email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "alice", "password": "hunter2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "email is required")
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")

	rec := doJSON(t, handler, http.MethodGet, "/api/auth/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me userInfo
	decodeBody(t, rec, &me)
	assert.Equal(t, aliceID, me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.False(t, me.IsAdmin)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/game/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/sessions", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionEndpointsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")
	_, bobToken := registerUser(t, handler, "bob")

	sess, err := s.store.CreateSession(aliceID, 10, 20, 1000)
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodGet, "/api/game/sessions", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []*store.Session
	decodeBody(t, rec, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.ID, sessions[0].ID)

	// bob sees an empty list and cannot fetch alice's session by id
	rec = doJSON(t, handler, http.MethodGet, "/api/game/sessions", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobSessions []*store.Session
	decodeBody(t, rec, &bobSessions)
	assert.Empty(t, bobSessions)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/sessions/"+sess.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/sessions/"+sess.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// ending twice is fine
	rec = doJSON(t, handler, http.MethodPost, "/api/game/sessions/"+sess.ID+"/end", aliceToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/api/game/sessions/"+sess.ID+"/end", aliceToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSessionEndpoint(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	_, aliceToken := registerUser(t, handler, "alice")

	rec := doJSON(t, handler, http.MethodPost, "/api/game/sessions", aliceToken,
		map[string]int{"small_blind": 25, "big_blind": 50, "initial_stack": 2000})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess store.Session
	decodeBody(t, rec, &sess)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 25, sess.SmallBlind)
	assert.Equal(t, 50, sess.BigBlind)
	assert.Equal(t, 2000, sess.InitialStack)

	// Unset fields fall back to the configured table defaults.
	rec = doJSON(t, handler, http.MethodPost, "/api/game/sessions", aliceToken, map[string]int{})
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeBody(t, rec, &sess)
	assert.Equal(t, s.cfg.Game.SmallBlind, sess.SmallBlind)
	assert.Equal(t, s.cfg.Game.BigBlind, sess.BigBlind)
}

func TestListSessionsPaging(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")
	for i := 0; i < 3; i++ {
		_, err := s.store.CreateSession(aliceID, 10, 20, 1000)
		require.NoError(t, err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/game/sessions?limit=2", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []*store.Session
	decodeBody(t, rec, &page)
	assert.Len(t, page, 2)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/sessions?limit=2&offset=2", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &page)
	assert.Len(t, page, 1)
}

func TestCreateRoundEndpoint(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")
	_, bobToken := registerUser(t, handler, "bob")

	sess, err := s.store.CreateSession(aliceID, 10, 20, 1000)
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/api/game/sessions/"+sess.ID+"/rounds", aliceToken,
		map[string]interface{}{"hero_profit": 40, "pot_size": 80, "vpip": true})
	require.Equal(t, http.StatusCreated, rec.Code)

	var round store.Round
	decodeBody(t, rec, &round)
	assert.NotEmpty(t, round.ID)
	assert.Equal(t, 1, round.RoundNumber)
	assert.Equal(t, 40, round.HeroProfit)

	// A round under someone else's session does not exist for bob.
	rec = doJSON(t, handler, http.MethodPost, "/api/game/sessions/"+sess.ID+"/rounds", bobToken,
		map[string]interface{}{"hero_profit": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got, err := s.store.GetSession(aliceID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalHands)
}

func TestRoundEndpoints(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")
	_, bobToken := registerUser(t, handler, "bob")

	sess, err := s.store.CreateSession(aliceID, 10, 20, 1000)
	require.NoError(t, err)

	round, err := s.store.CreateRound(&store.Round{
		SessionID:  sess.ID,
		UserID:     aliceID,
		HeroProfit: 40,
		PotSize:    80,
		VPIP:       true,
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodGet, "/api/game/sessions/"+sess.ID+"/rounds", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rounds []*store.Round
	decodeBody(t, rec, &rounds)
	require.Len(t, rounds, 1)
	assert.Equal(t, 1, rounds[0].RoundNumber)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/rounds/"+round.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/rounds/"+round.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// attach a review
	rec = doJSON(t, handler, http.MethodPut, "/api/game/rounds/"+round.ID+"/review", aliceToken,
		map[string]interface{}{"overall": "well played", "rating": 8})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/rounds/"+round.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched store.Round
	decodeBody(t, rec, &fetched)
	assert.Contains(t, string(fetched.Review), "well played")
}

func TestStatisticsEndpoint(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")

	rec := doJSON(t, handler, http.MethodGet, "/api/game/statistics", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Statistics
	decodeBody(t, rec, &stats)
	assert.Zero(t, stats.HandsPlayed)

	sess, err := s.store.CreateSession(aliceID, 10, 20, 1000)
	require.NoError(t, err)
	_, err = s.store.CreateRound(&store.Round{SessionID: sess.ID, UserID: aliceID, HeroProfit: 60, VPIP: true})
	require.NoError(t, err)
	_, err = s.store.CreateRound(&store.Round{SessionID: sess.ID, UserID: aliceID, HeroProfit: -20})
	require.NoError(t, err)

	rec = doJSON(t, handler, http.MethodGet, "/api/game/statistics?recompute=true", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &stats)
	assert.Equal(t, 2, stats.HandsPlayed)
	assert.Equal(t, 1, stats.HandsWon)
	assert.Equal(t, 40, stats.TotalProfit)
	assert.InDelta(t, 50.0, stats.WinRate, 0.001)
	assert.InDelta(t, 50.0, stats.VPIP, 0.001)
}

func TestLLMKeyEndpoints(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	aliceID, aliceToken := registerUser(t, handler, "alice")

	rec := doJSON(t, handler, http.MethodPut, "/api/auth/llm-key", aliceToken,
		map[string]string{"provider": "deepseek", "api_key": "sk-test"})
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := s.store.GetUser(aliceID)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", user.LLMAPIKey)
	assert.Equal(t, "deepseek", user.LLMProvider)

	// empty key rejected
	rec = doJSON(t, handler, http.MethodPut, "/api/auth/llm-key", aliceToken,
		map[string]string{"provider": "deepseek", "api_key": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/auth/llm-key", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err = s.store.GetUser(aliceID)
	require.NoError(t, err)
	assert.Empty(t, user.LLMAPIKey)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// unlisted origin gets no CORS headers
	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
