package protocol

import (
	"encoding/json"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
)

// Client → Server payloads

type PlayerActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

type CopilotSettingData struct {
	Enabled bool `json:"enabled"`
}

type DebugModeData struct {
	Enabled    bool     `json:"enabled"`
	FilterBots []string `json:"filter_bots,omitempty"`
}

// NewGameData configures the game a new_game message starts. LLMProvider
// and LLMAPIKey are session-tier credentials that outrank the user's stored
// key and the server environment.
type NewGameData struct {
	SmallBlind   int      `json:"small_blind,omitempty"`
	BigBlind     int      `json:"big_blind,omitempty"`
	InitialStack int      `json:"initial_stack,omitempty"`
	MaxRounds    int      `json:"max_rounds,omitempty"`
	NumBots      int      `json:"num_bots,omitempty"`
	Personas     []string `json:"personas,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	LLMProvider  string   `json:"llm_provider,omitempty"`
	LLMAPIKey    string   `json:"llm_api_key,omitempty"`
	LLMModel     string   `json:"llm_model,omitempty"`
}

// ReviewRequestData carries the completed-hand context the review service
// analyses. CommunityCards is authoritative: the review replaces whatever
// board the model invents with these cards.
type ReviewRequestData struct {
	SessionID      string                                  `json:"session_id,omitempty"`
	RoundID        string                                  `json:"round_id,omitempty"`
	HeroHoleCards  []deck.Card                             `json:"hero_hole_cards"`
	CommunityCards []deck.Card                             `json:"community_cards"`
	StreetHistory  map[engine.Street][]engine.ActionRecord `json:"street_history,omitempty"`
	Winners        []engine.Winner                         `json:"winners,omitempty"`
	HeroProfit     int                                     `json:"hero_profit"`
	PotSize        int                                     `json:"pot_size"`
}

// Server → Client payloads

type SystemData struct {
	Content string `json:"content"`
	IsAdmin bool   `json:"is_admin"`
}

type NeedsAPIKeyData struct {
	Content string `json:"content"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameStartData struct {
	SmallBlind   int                `json:"small_blind"`
	BigBlind     int                `json:"big_blind"`
	InitialStack int                `json:"initial_stack"`
	Seats        []engine.SeatState `json:"seats"`
}

type RoundStartData struct {
	RoundNumber   int                `json:"round_number"`
	HeroHoleCards []deck.Card        `json:"hero_hole_cards"`
	Seats         []engine.SeatState `json:"seats"`
	DealerButton  int                `json:"dealer_button"`
}

type StreetStartData struct {
	Street string             `json:"street"`
	Board  []deck.Card        `json:"community_cards"`
	State  engine.PublicState `json:"state"`
}

type GameUpdateData struct {
	Action engine.ActionRecord `json:"action"`
	State  engine.PublicState  `json:"state"`
}

// AIAdvice is the copilot hint attached to an action request
type AIAdvice struct {
	Action    string  `json:"action"`
	Amount    int     `json:"amount"`
	Reasoning string  `json:"reasoning,omitempty"`
	Equity    float64 `json:"equity"`
	PotOdds   float64 `json:"pot_odds"`
	EVCall    float64 `json:"ev_call"`
}

type ActionRequestData struct {
	HeroHoleCards []deck.Card         `json:"hero_hole_cards"`
	Legal         engine.LegalActions `json:"legal_actions"`
	State         engine.PublicState  `json:"state"`
	CallAmount    int                 `json:"call_amount"`
	AIAdvice      *AIAdvice           `json:"ai_advice,omitempty"`
}

type RoundResultData struct {
	engine.RoundResult
	RevealedCards map[string][]deck.Card `json:"revealed_cards,omitempty"`
}

// ReviewResultData carries either the structured review or an error naming
// the cause and the key tier that was attempted.
type ReviewResultData struct {
	Review       json.RawMessage `json:"review,omitempty"`
	Error        string          `json:"error,omitempty"`
	KeyAttempted string          `json:"key_attempted,omitempty"`
}

type DebugLogData struct {
	Bot      string `json:"bot"`
	Persona  string `json:"persona,omitempty"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Action   string `json:"action"`
	Amount   int    `json:"amount"`
	Fallback bool   `json:"fallback,omitempty"`
}

type DebugModeUpdatedData struct {
	Enabled    bool     `json:"enabled"`
	FilterBots []string `json:"filter_bots,omitempty"`
}
