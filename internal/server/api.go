package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/holdem-arena/internal/auth"
	"github.com/lox/holdem-arena/internal/store"
)

// requireAuth verifies the Bearer token and stashes the claims
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func (s *Server) claims(r *http.Request) *auth.Claims {
	return auth.ClaimsFromContext(r.Context())
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

type userInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func newUserInfo(user *store.User) userInfo {
	return userInfo{ID: user.ID, Username: user.Username, Email: user.Email, IsAdmin: user.IsAdmin}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, token, err := s.auth.Register(req.Username, req.Email, req.Password)
	if errors.Is(err, store.ErrAlreadyExists) {
		s.writeError(w, http.StatusConflict, "username or email is taken")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: newUserInfo(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, token, err := s.auth.Authenticate(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.writeJSON(w, http.StatusOK, authResponse{Token: token, User: newUserInfo(user)})
}

// handleMe returns the authenticated user's profile
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(s.claims(r).Subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newUserInfo(user))
}

type llmKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

func (s *Server) handleSetLLMKey(w http.ResponseWriter, r *http.Request) {
	var req llmKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.APIKey == "" {
		s.writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	if err := s.auth.SetLLMKey(s.claims(r).Subject, req.Provider, req.APIKey); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleClearLLMKey(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.ClearLLMKey(s.claims(r).Subject); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type createSessionRequest struct {
	SmallBlind   int `json:"small_blind"`
	BigBlind     int `json:"big_blind"`
	InitialStack int `json:"initial_stack"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SmallBlind <= 0 {
		req.SmallBlind = s.cfg.Game.SmallBlind
	}
	if req.BigBlind <= 0 {
		req.BigBlind = s.cfg.Game.BigBlind
	}
	if req.InitialStack <= 0 {
		req.InitialStack = s.cfg.Game.InitialStack
	}

	sess, err := s.store.CreateSession(s.claims(r).Subject, req.SmallBlind, req.BigBlind, req.InitialStack)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	sessions, err := s.store.ListSessions(s.claims(r).Subject, limit, offset)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(s.claims(r).Subject, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.EndSession(s.claims(r).Subject, r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var round store.Round
	if err := json.NewDecoder(r.Body).Decode(&round); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed round body")
		return
	}
	round.SessionID = r.PathValue("id")
	round.UserID = s.claims(r).Subject

	created, err := s.store.CreateRound(&round)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleSessionRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.store.GetSessionRounds(s.claims(r).Subject, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if rounds == nil {
		rounds = []*store.Round{}
	}
	s.writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.store.GetRound(s.claims(r).Subject, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleSaveReview(w http.ResponseWriter, r *http.Request) {
	var review json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed review body")
		return
	}

	if err := s.store.UpdateRoundReview(s.claims(r).Subject, r.PathValue("id"), review); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	userID := s.claims(r).Subject

	if r.URL.Query().Get("recompute") == "true" {
		stats, err := s.store.RecomputeStats(userID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.store.GetOrCreateStats(userID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("store error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
