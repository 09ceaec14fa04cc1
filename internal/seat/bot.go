package seat

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
	"github.com/lox/holdem-arena/internal/protocol"
)

// DebugTap receives the bot's raw model exchange for each decision when
// debug mode is on. Nil taps are ignored.
type DebugTap func(protocol.DebugLogData)

// Bot is an LLM-driven seat. The engine calls it from the game goroutine;
// every decision goes through the kernel and comes back legal.
type Bot struct {
	id      string
	name    string
	persona ai.Persona
	kernel  *ai.Kernel
	reveal  *Reveal
	debug   DebugTap
	logger  *log.Logger

	ctx     context.Context
	history []engine.ActionRecord
}

// NewBot creates a bot seat. ctx bounds every model call the bot makes.
func NewBot(ctx context.Context, id, name string, persona ai.Persona, kernel *ai.Kernel, reveal *Reveal, debug DebugTap, logger *log.Logger) *Bot {
	return &Bot{
		id:      id,
		name:    name,
		persona: persona,
		kernel:  kernel,
		reveal:  reveal,
		debug:   debug,
		logger:  logger.WithPrefix("bot").With("name", name, "persona", persona.Code),
		ctx:     ctx,
	}
}

// ID implements engine.Seat
func (b *Bot) ID() string { return b.id }

// Name implements engine.Seat
func (b *Bot) Name() string { return b.name }

// Persona returns the bot's playing style
func (b *Bot) Persona() ai.Persona { return b.persona }

// GameStart implements engine.Seat
func (b *Bot) GameStart(cfg engine.Config, seats []engine.SeatState) {}

// RoundStart implements engine.Seat
func (b *Bot) RoundStart(roundNumber int, hole []deck.Card, state engine.PublicState) {
	b.history = b.history[:0]
	if b.reveal != nil {
		b.reveal.Set(b.id, hole)
	}
}

// StreetStart implements engine.Seat
func (b *Bot) StreetStart(state engine.PublicState) {}

// GameUpdate implements engine.Seat
func (b *Bot) GameUpdate(rec engine.ActionRecord, state engine.PublicState) {
	b.history = append(b.history, rec)
}

// DeclareAction implements engine.Seat
func (b *Bot) DeclareAction(req engine.ActionRequest) (engine.Action, error) {
	d := b.kernel.Decide(b.ctx, b.persona, req, b.history)

	b.logger.Debug("decided", "street", req.State.Street, "action", d.Action.Type, "amount", d.Action.Amount, "fallback", d.Fallback)

	if b.debug != nil {
		b.debug(protocol.DebugLogData{
			Bot:      b.name,
			Persona:  b.persona.Code,
			Prompt:   d.Prompt,
			Response: d.Response,
			Action:   string(d.Action.Type),
			Amount:   d.Action.Amount,
			Fallback: d.Fallback,
		})
	}

	return d.Action, nil
}

// RoundResult implements engine.Seat
func (b *Bot) RoundResult(result engine.RoundResult) {}
