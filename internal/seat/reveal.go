// Package seat adapts bots and the connected human onto the engine's
// callback protocol.
package seat

import (
	"sync"

	"github.com/lox/holdem-arena/internal/deck"
)

// Reveal collects each seat's hole cards for the current hand so the
// round result can show them. Bots write on every RoundStart; the human
// seat reads a snapshot when the hand ends.
type Reveal struct {
	mu    sync.Mutex
	cards map[string][]deck.Card
}

// NewReveal creates an empty reveal map
func NewReveal() *Reveal {
	return &Reveal{cards: make(map[string][]deck.Card)}
}

// Set records a seat's hole cards for the current hand
func (r *Reveal) Set(seatID string, hole []deck.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[seatID] = append([]deck.Card(nil), hole...)
}

// Snapshot returns a copy of the recorded hole cards
func (r *Reveal) Snapshot() map[string][]deck.Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]deck.Card, len(r.cards))
	for id, hole := range r.cards {
		out[id] = append([]deck.Card(nil), hole...)
	}
	return out
}
