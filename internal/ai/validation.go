package ai

import (
	"strings"

	"github.com/lox/holdem-arena/internal/engine"
)

// Validate maps a declared action onto the legal action set, remapping and
// clamping rather than rejecting. The rules, in order:
//
//  1. fold when checking is free becomes check
//  2. "check" becomes call 0 (only legal when the call is free)
//  3. "allin" style declarations become a max raise, or a call when raising
//     is unavailable
//  4. raise amounts are clamped to [MinRaise, MaxRaise]; a raise when
//     raising is unavailable becomes a call
//  5. anything unrecognized degrades to check, then call, then fold
//
// Call amounts always come from the engine, never from the declaration.
func Validate(action string, amount int, legal engine.LegalActions) engine.Action {
	action = strings.ToLower(strings.TrimSpace(action))

	if action == "fold" && legal.CanCheck() {
		return engine.Action{Type: engine.ActionCall, Amount: 0}
	}

	switch action {
	case "fold":
		return engine.Action{Type: engine.ActionFold}
	case "check":
		if legal.CanCheck() {
			return engine.Action{Type: engine.ActionCall, Amount: 0}
		}
		return fallbackLegal(legal)
	case "call":
		return engine.Action{Type: engine.ActionCall, Amount: legal.CallAmount}
	case "allin", "all_in", "all-in":
		if legal.CanRaise() {
			return engine.Action{Type: engine.ActionRaise, Amount: legal.MaxRaise}
		}
		return engine.Action{Type: engine.ActionCall, Amount: legal.CallAmount}
	case "raise", "bet":
		if !legal.CanRaise() {
			return engine.Action{Type: engine.ActionCall, Amount: legal.CallAmount}
		}
		if amount == -1 {
			amount = legal.MaxRaise
		}
		if amount < legal.MinRaise {
			amount = legal.MinRaise
		}
		if amount > legal.MaxRaise {
			amount = legal.MaxRaise
		}
		return engine.Action{Type: engine.ActionRaise, Amount: amount}
	}

	return fallbackLegal(legal)
}

// fallbackLegal picks the cheapest legal action: check, then call, then fold
func fallbackLegal(legal engine.LegalActions) engine.Action {
	if legal.CanCheck() {
		return engine.Action{Type: engine.ActionCall, Amount: 0}
	}
	if legal.CallAmount > 0 {
		return engine.Action{Type: engine.ActionCall, Amount: legal.CallAmount}
	}
	return engine.Action{Type: engine.ActionFold}
}
