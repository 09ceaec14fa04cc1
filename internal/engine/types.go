package engine

import (
	"github.com/lox/holdem-arena/internal/deck"
)

// Street is a betting round within a hand
type Street string

const (
	StreetPreflop Street = "preflop"
	StreetFlop    Street = "flop"
	StreetTurn    Street = "turn"
	StreetRiver   Street = "river"
)

// ActionType is one of the three canonical poker actions. Check is
// represented as call with amount 0.
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
)

// Action is a seat's declared move. For raises, Amount is the total bet the
// player is raising TO on this street.
type Action struct {
	Type   ActionType `json:"action"`
	Amount int        `json:"amount"`
}

// LegalActions describes what the acting seat may do. MaxRaise <= 0 means
// raising is unavailable (the seat can only call all-in or fold).
type LegalActions struct {
	CallAmount int `json:"call_amount"` // chips needed to call; 0 means check is free
	MinRaise   int `json:"min_raise"`   // minimum total-to raise amount
	MaxRaise   int `json:"max_raise"`   // maximum total-to raise amount (all-in)
}

// CanCheck reports whether calling is free
func (la LegalActions) CanCheck() bool {
	return la.CallAmount == 0
}

// CanRaise reports whether a raise is available
func (la LegalActions) CanRaise() bool {
	return la.MaxRaise > 0
}

// SeatState is the public view of one seat
type SeatState struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Stack   int    `json:"stack"`
	Bet     int    `json:"bet"` // committed this street
	Folded  bool   `json:"folded"`
	AllIn   bool   `json:"all_in"`
	IsHuman bool   `json:"is_human"`
}

// PublicState is the board view shared with every seat
type PublicState struct {
	RoundNumber  int         `json:"round_number"`
	Street       Street      `json:"street"`
	Board        []deck.Card `json:"community_cards"`
	Pot          int         `json:"pot"`
	CurrentBet   int         `json:"current_bet"`
	SmallBlind   int         `json:"small_blind"`
	BigBlind     int         `json:"big_blind"`
	DealerButton int         `json:"dealer_button"`
	Seats        []SeatState `json:"seats"`
}

// ActionRecord is one completed action in the hand history
type ActionRecord struct {
	SeatID string     `json:"seat_id"`
	Name   string     `json:"name"`
	Street Street     `json:"street"`
	Action ActionType `json:"action"`
	Amount int        `json:"amount"`
}

// ActionRequest is handed to a seat when it must act
type ActionRequest struct {
	SeatID string
	Hole   []deck.Card
	Legal  LegalActions
	State  PublicState
}

// Winner records one seat's share of the pots
type Winner struct {
	SeatID string `json:"seat_id"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
	Hand   string `json:"hand,omitempty"`
}

// HandInfo describes a showdown hand
type HandInfo struct {
	SeatID      string      `json:"seat_id"`
	Name        string      `json:"name"`
	Hole        []deck.Card `json:"hole_cards"`
	Hand        string      `json:"hand"`
	Description string      `json:"description"`
}

// RoundResult is the terminal event of one hand
type RoundResult struct {
	RoundNumber   int                       `json:"round_number"`
	Winners       []Winner                  `json:"winners"`
	HandInfo      []HandInfo                `json:"hand_info"`
	State         PublicState               `json:"state"`
	InitialStacks map[string]int            `json:"initial_stacks"`
	StreetHistory map[Street][]ActionRecord `json:"street_history"`
	PlayerActions []ActionRecord            `json:"player_actions"`
}

// Seat is the callback protocol every participant implements. The engine
// calls these from its own goroutine; DeclareAction may block for as long as
// the seat needs (an LLM round trip, a human at the keyboard).
type Seat interface {
	ID() string
	Name() string
	GameStart(cfg Config, seats []SeatState)
	RoundStart(roundNumber int, hole []deck.Card, state PublicState)
	StreetStart(state PublicState)
	GameUpdate(rec ActionRecord, state PublicState)
	DeclareAction(req ActionRequest) (Action, error)
	RoundResult(result RoundResult)
}

// Config controls one game of consecutive hands
type Config struct {
	SmallBlind   int `json:"small_blind"`
	BigBlind     int `json:"big_blind"`
	InitialStack int `json:"initial_stack"`
	MaxRounds    int `json:"max_rounds"`
}

// DefaultConfig returns the table stakes used when a session supplies none
func DefaultConfig() Config {
	return Config{
		SmallBlind:   10,
		BigBlind:     20,
		InitialStack: 1000,
		MaxRounds:    100,
	}
}
