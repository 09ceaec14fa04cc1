// Package server wires the HTTP surface together: the REST API for auth
// and game history, the game WebSocket, and the middleware around both.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/auth"
	"github.com/lox/holdem-arena/internal/hub"
	"github.com/lox/holdem-arena/internal/llm"
	"github.com/lox/holdem-arena/internal/protocol"
	"github.com/lox/holdem-arena/internal/review"
	"github.com/lox/holdem-arena/internal/session"
	"github.com/lox/holdem-arena/internal/store"
)

// Server is the assembled application
type Server struct {
	cfg      *Config
	logger   *log.Logger
	store    *store.Store
	auth     *auth.Service
	registry *session.Registry
	hub      *hub.Hub
	http     *http.Server
}

// New builds the server from config. Call Close when done with it.
func New(cfg *Config, logger *log.Logger) (*Server, error) {
	st, err := store.Open(cfg.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if cfg.Server.JWTSecret == "" {
		st.Close()
		return nil, fmt.Errorf("a JWT secret is required (config jwt_secret or HOLDEM_JWT_SECRET)")
	}

	authSvc := auth.New(st, cfg.Server.JWTSecret, 0)
	envLLM := llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
	}
	defaults := session.Config{
		SmallBlind:   cfg.Game.SmallBlind,
		BigBlind:     cfg.Game.BigBlind,
		InitialStack: cfg.Game.InitialStack,
		MaxRounds:    cfg.Game.MaxRounds,
		NumBots:      cfg.Game.NumBots,
		Difficulty:   ai.Difficulty(cfg.Game.Difficulty),
	}

	var h *hub.Hub
	registry := session.NewRegistry(session.Deps{
		Store:  st,
		Logger: logger,
		EnvLLM: envLLM,
		Sink: func(userID string, msg *protocol.Message) {
			h.SendToUser(userID, msg)
		},
	})
	h = hub.New(authSvc, st, registry, review.New(logger), envLLM, defaults, logger)

	s := &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		store:    st,
		auth:     authSvc,
		registry: registry,
		hub:      h,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.requireAuth(s.handleMe))
	mux.Handle("PUT /api/auth/llm-key", s.requireAuth(s.handleSetLLMKey))
	mux.Handle("DELETE /api/auth/llm-key", s.requireAuth(s.handleClearLLMKey))

	mux.Handle("POST /api/game/sessions", s.requireAuth(s.handleCreateSession))
	mux.Handle("GET /api/game/sessions", s.requireAuth(s.handleListSessions))
	mux.Handle("GET /api/game/sessions/{id}", s.requireAuth(s.handleGetSession))
	mux.Handle("POST /api/game/sessions/{id}/rounds", s.requireAuth(s.handleCreateRound))
	mux.Handle("GET /api/game/sessions/{id}/rounds", s.requireAuth(s.handleSessionRounds))
	mux.Handle("POST /api/game/sessions/{id}/end", s.requireAuth(s.handleEndSession))
	mux.Handle("GET /api/game/rounds/{id}", s.requireAuth(s.handleGetRound))
	mux.Handle("PUT /api/game/rounds/{id}/review", s.requireAuth(s.handleSaveReview))
	mux.Handle("GET /api/game/statistics", s.requireAuth(s.handleStatistics))

	mux.HandleFunc("GET /ws/game", s.hub.HandleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Run serves until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		s.registry.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
		return s.store.Close()
	}
}

// Handler exposes the routed handler for tests
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.routes())
}

// Close releases resources without serving (for tests and failed startups)
func (s *Server) Close() error {
	s.registry.StopAll()
	return s.store.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.Server.AllowedOrigins))
	for _, origin := range s.cfg.Server.AllowedOrigins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
