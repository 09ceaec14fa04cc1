// Package session runs one game per user: a worker goroutine drives the
// engine while a forwarder relays seat events to whatever connections the
// hub currently holds. The runtime also remembers the frames a freshly
// reconnected client needs to redraw the table.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/engine"
	"github.com/lox/holdem-arena/internal/llm"
	"github.com/lox/holdem-arena/internal/protocol"
	"github.com/lox/holdem-arena/internal/seat"
	"github.com/lox/holdem-arena/internal/store"
)

// StartOutcome reports what Start did with the worker
type StartOutcome string

const (
	// OutcomeResumed means a live worker was kept and pending state replays
	OutcomeResumed StartOutcome = "resumed"
	// OutcomeRestarted means a live worker was torn down and a new one started
	OutcomeRestarted StartOutcome = "restarted"
	// OutcomeStarted means a fresh worker started
	OutcomeStarted StartOutcome = "started"
	// OutcomeFailed means no worker is running
	OutcomeFailed StartOutcome = "failed"
)

// restartJoinTimeout bounds how long a force-restart waits for the old
// worker to unwind.
const restartJoinTimeout = 2 * time.Second

// replayDelay separates the replayed round_start from the frame that
// follows it so clients render in order.
const replayDelay = 100 * time.Millisecond

// Config describes one game the user wants to play
type Config struct {
	SmallBlind   int
	BigBlind     int
	InitialStack int
	MaxRounds    int
	NumBots      int
	Personas     []string // optional persona codes, random when empty
	Difficulty   ai.Difficulty
	LLM          llm.Config // session-tier credentials
	Seed         int64      // 0 means time-seeded
}

// Deps are the runtime's external collaborators
type Deps struct {
	Store  *store.Store
	Clock  quartz.Clock
	Logger *log.Logger
	EnvLLM llm.Config // environment-tier credentials
	// Sink receives every outbound frame for the user
	Sink func(userID string, msg *protocol.Message)
}

// pendingState holds the frames a reconnecting client needs. round_start
// always replays first; exactly one of actionRequest or roundResult may
// follow it.
type pendingState struct {
	roundStart    *protocol.Message
	actionRequest *protocol.Message
	roundResult   *protocol.Message
}

// Runtime is one user's game worker and its channels
type Runtime struct {
	userID   string
	username string
	deps     Deps
	logger   *log.Logger

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	out         chan *protocol.Message
	in          chan protocol.PlayerActionData
	next        chan struct{}
	human       *seat.Human
	pending     pendingState
	copilot     bool
	debugOn     bool
	debugFilter map[string]bool
	sessionID   string // persisted session row for the current game
	keyTier     string // which credential tier the worker resolved
}

// NewRuntime creates the runtime for a user. No worker starts until Start.
func NewRuntime(userID, username string, deps Deps) *Runtime {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	return &Runtime{
		userID:   userID,
		username: username,
		deps:     deps,
		logger:   deps.Logger.WithPrefix("session").With("user", username),
	}
}

// IsRunning reports whether a worker is currently driving a game
func (r *Runtime) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SessionID returns the persisted session row id for the current game
func (r *Runtime) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// KeyTier names the credential tier the running worker resolved:
// "session", "user", "environment" or "" when no key was found.
func (r *Runtime) KeyTier() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keyTier
}

// Start launches a worker for cfg. A live worker is kept (OutcomeResumed)
// unless force is set, in which case it is torn down and replaced
// (OutcomeRestarted).
func (r *Runtime) Start(cfg Config, force bool) (StartOutcome, error) {
	r.mu.Lock()
	if r.running {
		if !force {
			r.mu.Unlock()
			return OutcomeResumed, nil
		}
		cancel, done := r.cancel, r.done
		r.mu.Unlock()

		cancel()
		if !r.waitDone(done, restartJoinTimeout) {
			r.logger.Error("old worker did not stop in time")
			return OutcomeFailed, fmt.Errorf("previous game did not stop")
		}
		if err := r.launch(cfg); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeRestarted, nil
	}
	r.mu.Unlock()

	if err := r.launch(cfg); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeStarted, nil
}

// waitDone waits for the worker to exit, bounded by the clock
func (r *Runtime) waitDone(done chan struct{}, timeout time.Duration) bool {
	if done == nil {
		return true
	}
	expired := make(chan struct{})
	timer := r.deps.Clock.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-expired:
		return false
	}
}

func (r *Runtime) launch(cfg Config) error {
	if cfg.NumBots <= 0 {
		cfg.NumBots = 3
	}

	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("game already running")
	}

	r.cancel = cancel
	r.done = make(chan struct{})
	r.out = make(chan *protocol.Message, 256)
	r.in = make(chan protocol.PlayerActionData, 1)
	r.next = make(chan struct{}, 1)
	r.pending = pendingState{}
	r.running = true
	r.sessionID = ""
	done, out := r.done, r.out
	r.mu.Unlock()

	go r.forward(ctx, out)
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("game worker panicked", "panic", p, "stack", string(debug.Stack()))
			}
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			// Release the forwarder; it drains out before returning.
			cancel()
		}()
		r.runGame(ctx, cfg)
	}()
	return nil
}

// Stop tears the worker down and waits briefly for it to unwind
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.waitDone(done, restartJoinTimeout)
}

// resolveClient picks the LLM credentials by tier: the session config wins,
// then the user's stored key, then the server environment.
func (r *Runtime) resolveClient(cfg Config) (llm.Client, string) {
	if cfg.LLM.APIKey != "" {
		if client, err := llm.New(cfg.LLM); err == nil {
			return client, "session"
		}
		r.logger.Warn("session LLM config rejected, trying next tier")
	}

	if r.deps.Store != nil {
		if user, err := r.deps.Store.GetUser(r.userID); err == nil && user.LLMAPIKey != "" {
			if client, err := llm.New(llm.Config{Provider: user.LLMProvider, APIKey: user.LLMAPIKey}); err == nil {
				return client, "user"
			}
			r.logger.Warn("user LLM config rejected, trying next tier")
		}
	}

	if r.deps.EnvLLM.APIKey != "" {
		if client, err := llm.New(r.deps.EnvLLM); err == nil {
			return client, "environment"
		}
	}

	return nil, ""
}

var botNames = []string{"Viktor", "Luna", "Marcus", "Sofia", "Dmitri", "Elena", "Raj", "Mei"}

func (r *Runtime) runGame(ctx context.Context, cfg Config) {
	seed := cfg.Seed
	if seed == 0 {
		seed = r.deps.Clock.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	client, tier := r.resolveClient(cfg)
	kernel := ai.NewKernel(client, cfg.Difficulty, rng, r.logger)
	reveal := seat.NewReveal()

	engineCfg := engine.Config{
		SmallBlind:   cfg.SmallBlind,
		BigBlind:     cfg.BigBlind,
		InitialStack: cfg.InitialStack,
		MaxRounds:    cfg.MaxRounds,
	}
	if engineCfg.SmallBlind <= 0 {
		engineCfg.SmallBlind = engine.DefaultConfig().SmallBlind
	}
	if engineCfg.BigBlind <= 0 {
		engineCfg.BigBlind = engineCfg.SmallBlind * 2
	}
	if engineCfg.InitialStack <= 0 {
		engineCfg.InitialStack = engine.DefaultConfig().InitialStack
	}

	var sessionID string
	if r.deps.Store != nil {
		sess, err := r.deps.Store.CreateSession(r.userID, engineCfg.SmallBlind, engineCfg.BigBlind, engineCfg.InitialStack)
		if err != nil {
			r.logger.Error("creating session row", "err", err)
		} else {
			sessionID = sess.ID
		}
	}

	r.mu.Lock()
	r.sessionID = sessionID
	r.keyTier = tier
	copilot := r.copilot
	out, in, next := r.out, r.in, r.next
	r.mu.Unlock()

	human := seat.NewHuman(ctx, r.userID, r.username, out, in, next, kernel, reveal, r.logger)
	human.SetCopilot(copilot)

	r.mu.Lock()
	r.human = human
	r.mu.Unlock()

	game := engine.New(engineCfg, rng, r.logger)
	game.AddSeat(human)

	for i := 0; i < cfg.NumBots; i++ {
		persona := ai.RandomPersona(rng)
		if i < len(cfg.Personas) {
			if p, ok := ai.PersonaByCode(cfg.Personas[i]); ok {
				persona = p
			}
		}
		name := botNames[i%len(botNames)]
		botID := fmt.Sprintf("bot-%d", i+1)
		bot := seat.NewBot(ctx, botID, name, persona, kernel, reveal, r.debugTap(out, ctx), r.logger)
		game.AddSeat(bot)
	}

	r.logger.Info("game starting", "bots", cfg.NumBots, "key_tier", tier, "seed", seed)

	err := game.Run(ctx)
	switch {
	case err == nil:
		r.publish(ctx, out, protocol.MustMessage(protocol.TypeSystem, protocol.SystemData{
			Content: "Game over. Start a new game to keep playing.",
		}))
	case ctx.Err() != nil:
		// Stopped deliberately; nothing to announce.
	default:
		r.logger.Error("game ended with error", "err", err)
		r.publish(ctx, out, protocol.MustMessage(protocol.TypeError, protocol.ErrorData{
			Code:    "game_error",
			Message: err.Error(),
		}))
	}

	if sessionID != "" && r.deps.Store != nil {
		if err := r.deps.Store.EndSession(r.userID, sessionID); err != nil {
			r.logger.Error("ending session row", "err", err)
		}
	}
}

func (r *Runtime) publish(ctx context.Context, out chan *protocol.Message, msg *protocol.Message) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

// debugTap builds the bot decision tap honoring the debug settings
func (r *Runtime) debugTap(out chan *protocol.Message, ctx context.Context) seat.DebugTap {
	return func(d protocol.DebugLogData) {
		r.mu.Lock()
		enabled := r.debugOn
		filtered := len(r.debugFilter) > 0 && !r.debugFilter[d.Bot]
		r.mu.Unlock()
		if !enabled || filtered {
			return
		}
		r.publish(ctx, out, protocol.MustMessage(protocol.TypeDebugLog, d))
	}
}

// forward relays worker frames to the hub sink, maintaining the pending
// frames a reconnect needs and persisting finished hands.
func (r *Runtime) forward(ctx context.Context, out chan *protocol.Message) {
	for {
		select {
		case msg := <-out:
			r.track(msg)
			if r.deps.Sink != nil {
				r.deps.Sink(r.userID, msg)
			}
		case <-ctx.Done():
			// Drain what the worker managed to queue before stopping.
			for {
				select {
				case msg := <-out:
					r.track(msg)
					if r.deps.Sink != nil {
						r.deps.Sink(r.userID, msg)
					}
				default:
					return
				}
			}
		}
	}
}

func (r *Runtime) track(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoundStart:
		r.mu.Lock()
		r.pending = pendingState{roundStart: msg}
		r.mu.Unlock()
	case protocol.TypeActionRequest:
		r.mu.Lock()
		r.pending.actionRequest = msg
		r.pending.roundResult = nil
		r.mu.Unlock()
	case protocol.TypeRoundResult:
		r.mu.Lock()
		r.pending.actionRequest = nil
		r.pending.roundResult = msg
		r.mu.Unlock()
		r.persistRound(msg)
	}
}

// persistRound writes the finished hand and rolls the user statistics
func (r *Runtime) persistRound(msg *protocol.Message) {
	r.mu.Lock()
	sessionID := r.sessionID
	r.mu.Unlock()
	if r.deps.Store == nil || sessionID == "" {
		return
	}

	var data protocol.RoundResultData
	if err := msg.Decode(&data); err != nil {
		r.logger.Error("decoding round result", "err", err)
		return
	}

	profit := heroProfit(r.userID, data.RoundResult)
	vpip := heroVPIP(r.userID, data.RoundResult)

	round := &store.Round{
		SessionID:      sessionID,
		UserID:         r.userID,
		RoundNumber:    data.RoundNumber,
		HeroHoleCards:  data.RevealedCards[r.userID],
		CommunityCards: data.State.Board,
		StreetHistory:  data.StreetHistory,
		Winners:        data.Winners,
		HeroProfit:     profit,
		PotSize:        potWon(data.Winners),
		VPIP:           vpip,
	}
	if _, err := r.deps.Store.CreateRound(round); err != nil {
		r.logger.Error("persisting round", "err", err)
		return
	}
	if err := r.deps.Store.AddHandResult(r.userID, profit, vpip); err != nil {
		r.logger.Error("updating statistics", "err", err)
	}
}

// heroProfit is the hero's stack change over the hand
func heroProfit(heroID string, result engine.RoundResult) int {
	initial, ok := result.InitialStacks[heroID]
	if !ok {
		return 0
	}
	for _, s := range result.State.Seats {
		if s.ID == heroID {
			return s.Stack - initial
		}
	}
	return 0
}

// heroVPIP reports whether the hero voluntarily put chips in preflop
func heroVPIP(heroID string, result engine.RoundResult) bool {
	for _, rec := range result.StreetHistory[engine.StreetPreflop] {
		if rec.SeatID != heroID {
			continue
		}
		if rec.Action == engine.ActionRaise || (rec.Action == engine.ActionCall && rec.Amount > 0) {
			return true
		}
	}
	return false
}

func potWon(winners []engine.Winner) int {
	total := 0
	for _, w := range winners {
		total += w.Amount
	}
	return total
}

// HandlePlayerAction hands the player's move to the blocked seat. Actions
// arriving when no request is outstanding are dropped.
func (r *Runtime) HandlePlayerAction(data protocol.PlayerActionData) {
	r.mu.Lock()
	waiting := r.pending.actionRequest != nil
	in := r.in
	if waiting {
		r.pending.actionRequest = nil
	}
	r.mu.Unlock()

	if !waiting || in == nil {
		r.logger.Debug("dropping action with no outstanding request", "action", data.Action)
		return
	}

	select {
	case in <- data:
	default:
		r.logger.Debug("seat not ready for action, dropping", "action", data.Action)
	}
}

// SignalNextRound releases the seat holding the finished hand open
func (r *Runtime) SignalNextRound() {
	r.mu.Lock()
	r.pending.roundResult = nil
	next := r.next
	r.mu.Unlock()

	if next == nil {
		return
	}
	select {
	case next <- struct{}{}:
	default:
	}
}

// SetCopilot toggles advice for the human seat, now and for future workers
func (r *Runtime) SetCopilot(enabled bool) {
	r.mu.Lock()
	r.copilot = enabled
	human := r.human
	r.mu.Unlock()

	if human != nil {
		human.SetCopilot(enabled)
	}
}

// SetDebug configures the bot decision tap. filter narrows output to the
// named bots; empty means all bots.
func (r *Runtime) SetDebug(enabled bool, filter []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugOn = enabled
	r.debugFilter = make(map[string]bool, len(filter))
	for _, name := range filter {
		r.debugFilter[name] = true
	}
}

// Replay sends the frames a fresh connection needs to redraw the current
// table: the round_start, then after a short delay whichever of
// action_request or round_result is outstanding.
func (r *Runtime) Replay(send func(*protocol.Message)) {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()

	if pending.roundStart == nil {
		return
	}
	send(pending.roundStart)

	follow := pending.actionRequest
	if follow == nil {
		follow = pending.roundResult
	}
	if follow == nil {
		return
	}

	delivered := make(chan struct{})
	timer := r.deps.Clock.AfterFunc(replayDelay, func() {
		send(follow)
		close(delivered)
	})
	defer timer.Stop()
	<-delivered
}
