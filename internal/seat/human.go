package seat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
	"github.com/lox/holdem-arena/internal/protocol"
)

// Human bridges a connected player onto the engine. Game events are
// published to out; actions arrive on in. When the hand ends the seat
// waits for a next-round signal before letting the engine continue.
type Human struct {
	id     string
	name   string
	out    chan<- *protocol.Message
	in     <-chan protocol.PlayerActionData
	next   <-chan struct{}
	ctx    context.Context
	logger *log.Logger

	advisor *ai.Kernel
	copilot atomic.Bool
	reveal  *Reveal
	history []engine.ActionRecord
}

// NewHuman creates the human seat. ctx is the session worker's context;
// when it ends, blocked callbacks release and the seat plays dead.
func NewHuman(ctx context.Context, id, name string, out chan<- *protocol.Message, in <-chan protocol.PlayerActionData, next <-chan struct{}, advisor *ai.Kernel, reveal *Reveal, logger *log.Logger) *Human {
	return &Human{
		id:      id,
		name:    name,
		out:     out,
		in:      in,
		next:    next,
		ctx:     ctx,
		advisor: advisor,
		reveal:  reveal,
		logger:  logger.WithPrefix("human").With("name", name),
	}
}

// ID implements engine.Seat
func (h *Human) ID() string { return h.id }

// Name implements engine.Seat
func (h *Human) Name() string { return h.name }

// SetCopilot toggles advice on action requests. Safe to call from any
// goroutine; takes effect on the next request.
func (h *Human) SetCopilot(enabled bool) {
	h.copilot.Store(enabled)
}

// CopilotEnabled reports the current copilot setting
func (h *Human) CopilotEnabled() bool {
	return h.copilot.Load()
}

func (h *Human) publish(msg *protocol.Message) {
	select {
	case h.out <- msg:
	case <-h.ctx.Done():
	}
}

// GameStart implements engine.Seat
func (h *Human) GameStart(cfg engine.Config, seats []engine.SeatState) {
	h.publish(protocol.MustMessage(protocol.TypeGameStart, protocol.GameStartData{
		SmallBlind:   cfg.SmallBlind,
		BigBlind:     cfg.BigBlind,
		InitialStack: cfg.InitialStack,
		Seats:        seats,
	}))
}

// RoundStart implements engine.Seat
func (h *Human) RoundStart(roundNumber int, hole []deck.Card, state engine.PublicState) {
	h.history = h.history[:0]
	if h.reveal != nil {
		h.reveal.Set(h.id, hole)
	}
	h.publish(protocol.MustMessage(protocol.TypeRoundStart, protocol.RoundStartData{
		RoundNumber:   roundNumber,
		HeroHoleCards: hole,
		Seats:         state.Seats,
		DealerButton:  state.DealerButton,
	}))
}

// StreetStart implements engine.Seat
func (h *Human) StreetStart(state engine.PublicState) {
	h.publish(protocol.MustMessage(protocol.TypeStreetStart, protocol.StreetStartData{
		Street: string(state.Street),
		Board:  state.Board,
		State:  state,
	}))
}

// GameUpdate implements engine.Seat
func (h *Human) GameUpdate(rec engine.ActionRecord, state engine.PublicState) {
	h.history = append(h.history, rec)
	h.publish(protocol.MustMessage(protocol.TypeGameUpdate, protocol.GameUpdateData{
		Action: rec,
		State:  state,
	}))
}

// DeclareAction implements engine.Seat. It publishes the request and blocks
// until the player answers or the session ends.
func (h *Human) DeclareAction(req engine.ActionRequest) (engine.Action, error) {
	data := protocol.ActionRequestData{
		HeroHoleCards: req.Hole,
		Legal:         req.Legal,
		State:         req.State,
		CallAmount:    req.Legal.CallAmount,
	}
	if h.copilot.Load() && h.advisor != nil {
		advice := h.advisor.Advise(h.ctx, req, h.history)
		data.AIAdvice = &protocol.AIAdvice{
			Action:    advice.Action,
			Amount:    advice.Amount,
			Reasoning: advice.Reasoning,
			Equity:    advice.Equity,
			PotOdds:   advice.PotOdds,
			EVCall:    advice.EVCall,
		}
	}
	h.publish(protocol.MustMessage(protocol.TypeActionRequest, data))

	select {
	case action := <-h.in:
		// A human's fold always stands, even when checking is free.
		if action.Action == "fold" {
			return engine.Action{Type: engine.ActionFold}, nil
		}
		return ai.Validate(action.Action, action.Amount, req.Legal), nil
	case <-h.ctx.Done():
		return engine.Action{}, fmt.Errorf("session ended: %w", h.ctx.Err())
	}
}

// RoundResult implements engine.Seat. After publishing the result it holds
// the game until the player asks for the next hand.
func (h *Human) RoundResult(result engine.RoundResult) {
	data := protocol.RoundResultData{RoundResult: result}
	if h.reveal != nil {
		data.RevealedCards = h.reveal.Snapshot()
	}
	h.publish(protocol.MustMessage(protocol.TypeRoundResult, data))

	select {
	case <-h.next:
		h.logger.Debug("next round requested", "round", result.RoundNumber)
	case <-h.ctx.Done():
	}
}
