package ai

import (
	"fmt"
	"math/rand"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
)

// Analysis is the standard math context attached to every decision prompt
type Analysis struct {
	Equity     float64 `json:"equity"`
	PotOdds    float64 `json:"pot_odds"`
	EVCall     float64 `json:"ev_call"`
	EVPositive bool    `json:"is_ev_positive"`
}

// Analyze computes equity, pot odds and call EV for one decision point
func Analyze(hole, board []deck.Card, pot, toCall, iterations int, rng *rand.Rand) Analysis {
	equity := evaluator.Estimate(hole, board, evaluator.RandomRange{}, iterations, rng)
	potOdds := PotOdds(toCall, pot)
	ev := EVCall(equity, pot, toCall)
	return Analysis{
		Equity:     equity,
		PotOdds:    potOdds,
		EVCall:     ev,
		EVPositive: ev > 0,
	}
}

// PotOdds is the win probability needed to break even on a call:
// to_call / (pot + to_call), 0 when the call is free.
func PotOdds(toCall, pot int) float64 {
	if toCall <= 0 {
		return 0
	}
	finalPot := pot + toCall
	if finalPot == 0 {
		return 0
	}
	return float64(toCall) / float64(finalPot)
}

// EVCall is equity*pot - (1-equity)*to_call
func EVCall(equity float64, pot, toCall int) float64 {
	if toCall <= 0 {
		return 0
	}
	return equity*float64(pot) - (1-equity)*float64(toCall)
}

// SPRCategory buckets a stack-to-pot ratio into Harrington's zones
type SPRCategory string

const (
	SPRLow    SPRCategory = "low"    // commit with one pair
	SPRMedium SPRCategory = "medium" // strong hands and good draws
	SPRHigh   SPRCategory = "high"   // deep; implied odds dominate
)

// HarringtonContext is the extended math context for personas playing the
// stack-aware style.
type HarringtonContext struct {
	EffectiveStackBB float64                `json:"effective_stack_bb"`
	SPR              float64                `json:"spr"`
	SPRDisplay       string                 `json:"spr_display"` // "N/A" when pot is 0
	SPRCategory      SPRCategory            `json:"spr_category"`
	Texture          evaluator.BoardTexture `json:"board_texture"`
	MadeHand         evaluator.MadeHand     `json:"made_hand"`
	RNGValue         int                    `json:"rng_value"` // uniform [0,100] for mixed strategies
}

// HarringtonAnalysis computes the stack and texture context. oppStacks are
// the remaining stacks of active opponents.
func HarringtonAnalysis(hole, board []deck.Card, myStack int, oppStacks []int, pot, bigBlind int, rng *rand.Rand) HarringtonContext {
	effective := myStack
	for _, s := range oppStacks {
		if s < effective {
			effective = s
		}
	}
	if effective < 0 {
		effective = 0
	}

	ctx := HarringtonContext{
		Texture:  evaluator.ClassifyBoard(board),
		MadeHand: evaluator.DescribeMadeHand(hole, board),
		RNGValue: rng.Intn(101),
	}

	if bigBlind > 0 {
		ctx.EffectiveStackBB = float64(effective) / float64(bigBlind)
	}

	if pot > 0 {
		ctx.SPR = float64(effective) / float64(pot)
		ctx.SPRDisplay = fmt.Sprintf("%.1f", ctx.SPR)
		switch {
		case ctx.SPR <= 4:
			ctx.SPRCategory = SPRLow
		case ctx.SPR <= 10:
			ctx.SPRCategory = SPRMedium
		default:
			ctx.SPRCategory = SPRHigh
		}
	} else {
		ctx.SPRDisplay = "N/A"
		ctx.SPRCategory = SPRHigh
	}

	return ctx
}
