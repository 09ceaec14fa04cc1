// Package hub owns the WebSocket side of the server: it authenticates
// upgrades, fans session frames out to however many tabs a user has open,
// and dispatches inbound messages to the user's game runtime.
package hub

import (
	"context"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/auth"
	"github.com/lox/holdem-arena/internal/llm"
	"github.com/lox/holdem-arena/internal/protocol"
	"github.com/lox/holdem-arena/internal/review"
	"github.com/lox/holdem-arena/internal/session"
	"github.com/lox/holdem-arena/internal/store"
)

// Close codes for failed upgrades
const (
	CloseMissingToken = 4001
	CloseInvalidToken = 4003
)

// reviewWorkers bounds concurrent hand reviews; each one is a slow LLM call
const reviewWorkers = 4

// Hub routes frames between connections and session runtimes
type Hub struct {
	auth     *auth.Service
	store    *store.Store
	registry *session.Registry
	reviews  *review.Service
	envLLM   llm.Config
	defaults session.Config
	logger   *log.Logger
	upgrader websocket.Upgrader

	reviewSem *semaphore.Weighted

	mu    sync.RWMutex
	conns map[string]map[*Connection]bool // user id → connections
}

// New creates the hub. defaults fills the table settings a new_game
// message leaves unset.
func New(authSvc *auth.Service, st *store.Store, registry *session.Registry, reviews *review.Service, envLLM llm.Config, defaults session.Config, logger *log.Logger) *Hub {
	return &Hub{
		auth:     authSvc,
		store:    st,
		registry: registry,
		reviews:  reviews,
		envLLM:   envLLM,
		defaults: defaults,
		logger:   logger.WithPrefix("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		reviewSem: semaphore.NewWeighted(reviewWorkers),
		conns:     make(map[string]map[*Connection]bool),
	}
}

// SendToUser fans a frame out to every connection the user has open.
// Dead connections are skipped; delivery is best effort.
func (h *Hub) SendToUser(userID string, msg *protocol.Message) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Send(msg)
	}
}

// Broadcast sends a server-wide notice to every connected user
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.mu.RLock()
	var conns []*Connection
	for _, set := range h.conns {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Send(msg)
	}
}

// HandleWebSocket upgrades /ws/game requests. The token travels as a query
// parameter because browsers cannot set headers on WebSocket dials.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "err", err)
		return
	}

	if token == "" {
		h.closeWith(conn, CloseMissingToken, "missing token")
		return
	}
	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		h.closeWith(conn, CloseInvalidToken, "invalid token")
		return
	}

	c := newConnection(conn, claims.Subject, claims.Username, claims.IsAdmin, h.logger)
	c.onMessage = h.dispatch
	c.onClose = h.deregister

	h.mu.Lock()
	if h.conns[c.userID] == nil {
		h.conns[c.userID] = make(map[*Connection]bool)
	}
	h.conns[c.userID][c] = true
	h.mu.Unlock()

	c.start()
	h.logger.Info("client connected", "user", c.username)

	h.welcome(c)
}

func (h *Hub) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}

// deregister drops the connection from the fan-out maps. The user's game
// worker keeps running; a reconnect picks it back up.
func (h *Hub) deregister(c *Connection) {
	h.mu.Lock()
	if set, ok := h.conns[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
	h.mu.Unlock()
	h.logger.Info("client disconnected", "user", c.username)
}

// welcome greets a fresh connection, then resolves the session state: a
// live worker resumes with a replay of its pending frames, anything else
// starts a new game at the server's default table settings.
func (h *Hub) welcome(c *Connection) {
	_ = c.Send(protocol.MustMessage(protocol.TypeSystem, protocol.SystemData{
		Content: "Welcome to the table, " + c.username + ".",
		IsAdmin: c.isAdmin,
	}))

	if !h.hasAnyLLMKey(c.userID) {
		_ = c.Send(protocol.MustMessage(protocol.TypeNeedsAPIKey, protocol.NeedsAPIKeyData{
			Content: "No LLM API key is configured. Bots will use their built-in strategy until you add one.",
		}))
	}

	rt := h.registry.GetOrCreate(c.userID, c.username)
	outcome, err := rt.Start(h.defaults, false)
	if err != nil {
		h.sendError(c, "start_failed", err.Error())
		return
	}
	if outcome == session.OutcomeResumed {
		go rt.Replay(func(msg *protocol.Message) { _ = c.Send(msg) })
	}
}

// hasAnyLLMKey checks the user and environment tiers. The session tier
// only exists once a game is configured.
func (h *Hub) hasAnyLLMKey(userID string) bool {
	if h.envLLM.APIKey != "" {
		return true
	}
	if h.store != nil {
		if user, err := h.store.GetUser(userID); err == nil && user.LLMAPIKey != "" {
			return true
		}
	}
	return false
}

// dispatch routes one inbound frame
func (h *Hub) dispatch(c *Connection, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypePing:
		_ = c.Send(protocol.MustMessage(protocol.TypePong, nil))

	case protocol.TypePlayerAction:
		var data protocol.PlayerActionData
		if err := msg.Decode(&data); err != nil {
			h.sendError(c, "bad_request", "malformed player_action")
			return
		}
		if rt := h.registry.Get(c.userID); rt != nil {
			rt.HandlePlayerAction(data)
		}

	case protocol.TypeStartNextRound:
		if rt := h.registry.Get(c.userID); rt != nil {
			rt.SignalNextRound()
		}

	case protocol.TypeAICopilotSetting:
		var data protocol.CopilotSettingData
		if err := msg.Decode(&data); err != nil {
			h.sendError(c, "bad_request", "malformed ai_copilot_setting")
			return
		}
		rt := h.registry.GetOrCreate(c.userID, c.username)
		rt.SetCopilot(data.Enabled)

	case protocol.TypeNewGame:
		var data protocol.NewGameData
		if err := msg.Decode(&data); err != nil {
			h.sendError(c, "bad_request", "malformed new_game")
			return
		}
		h.startGame(c, data)

	case protocol.TypeReviewRequest:
		var data protocol.ReviewRequestData
		if err := msg.Decode(&data); err != nil {
			h.sendError(c, "bad_request", "malformed review_request")
			return
		}
		h.handleReview(c, data)

	case protocol.TypeDebugMode:
		if !c.isAdmin {
			h.sendError(c, "forbidden", "debug mode requires admin")
			return
		}
		var data protocol.DebugModeData
		if err := msg.Decode(&data); err != nil {
			h.sendError(c, "bad_request", "malformed debug_mode")
			return
		}
		rt := h.registry.GetOrCreate(c.userID, c.username)
		rt.SetDebug(data.Enabled, data.FilterBots)
		_ = c.Send(protocol.MustMessage(protocol.TypeDebugModeUpdated, protocol.DebugModeUpdatedData{
			Enabled:    data.Enabled,
			FilterBots: data.FilterBots,
		}))

	default:
		h.sendError(c, "unknown_type", "unsupported message type "+string(msg.Type))
	}
}

// startGame applies the state-decision rules: a running game resumes with
// a replay unless the player explicitly asked for a new one, which forces
// a restart.
func (h *Hub) startGame(c *Connection, data protocol.NewGameData) {
	rt := h.registry.GetOrCreate(c.userID, c.username)

	cfg := h.defaults
	if data.SmallBlind > 0 {
		cfg.SmallBlind = data.SmallBlind
	}
	if data.BigBlind > 0 {
		cfg.BigBlind = data.BigBlind
	}
	if data.InitialStack > 0 {
		cfg.InitialStack = data.InitialStack
	}
	if data.MaxRounds > 0 {
		cfg.MaxRounds = data.MaxRounds
	}
	if data.NumBots > 0 {
		cfg.NumBots = data.NumBots
	}
	if len(data.Personas) > 0 {
		cfg.Personas = data.Personas
	}
	if data.Difficulty != "" {
		cfg.Difficulty = ai.Difficulty(data.Difficulty)
	}
	cfg.LLM = llm.Config{
		Provider: data.LLMProvider,
		APIKey:   data.LLMAPIKey,
		Model:    data.LLMModel,
	}

	outcome, err := rt.Start(cfg, rt.IsRunning())
	if err != nil {
		h.sendError(c, "start_failed", err.Error())
		return
	}

	h.logger.Info("game start handled", "user", c.username, "outcome", outcome)
	if outcome == session.OutcomeResumed {
		go rt.Replay(func(msg *protocol.Message) { _ = c.Send(msg) })
	}
}

// handleReview runs the hand review on a bounded worker pool so a burst of
// requests cannot pile up goroutines behind slow LLM calls.
func (h *Hub) handleReview(c *Connection, data protocol.ReviewRequestData) {
	if !h.reviewSem.TryAcquire(1) {
		h.sendError(c, "busy", "too many reviews in flight, try again shortly")
		return
	}

	go func() {
		defer h.reviewSem.Release(1)

		client, tier := h.resolveReviewClient(c.userID)
		result := h.reviews.Review(context.Background(), client, tier, data)
		_ = c.Send(protocol.MustMessage(protocol.TypeReviewResult, result))

		// A saved round keeps its review for the history endpoints.
		if result.Error == "" && data.RoundID != "" && h.store != nil {
			if err := h.store.UpdateRoundReview(c.userID, data.RoundID, result.Review); err != nil {
				h.logger.Warn("saving review", "err", err)
			}
		}
	}()
}

// resolveReviewClient picks credentials the same way the game worker does:
// user tier first (reviews have no session config), then environment.
func (h *Hub) resolveReviewClient(userID string) (llm.Client, string) {
	if h.store != nil {
		if user, err := h.store.GetUser(userID); err == nil && user.LLMAPIKey != "" {
			if client, err := llm.New(llm.Config{Provider: user.LLMProvider, APIKey: user.LLMAPIKey}); err == nil {
				return client, "user"
			}
		}
	}
	if h.envLLM.APIKey != "" {
		if client, err := llm.New(h.envLLM); err == nil {
			return client, "environment"
		}
	}
	return nil, ""
}

func (h *Hub) sendError(c *Connection, code, message string) {
	_ = c.Send(protocol.MustMessage(protocol.TypeError, protocol.ErrorData{
		Code:    code,
		Message: message,
	}))
}
