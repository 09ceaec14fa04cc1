package ai

import (
	"fmt"
	"strings"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
)

// responseInstruction tells the model the exact JSON shape we parse.
// amount is the total bet this street for raises, -1 means all-in.
const responseInstruction = `Respond with ONLY a JSON object, no other text:
{"action": "fold" | "check" | "call" | "raise", "amount": <integer>, "reasoning": "<one short sentence>"}
For "raise", "amount" is the TOTAL bet you are raising to on this street. Use -1 to go all-in. For other actions "amount" is ignored.`

// PromptInput bundles everything a decision prompt needs
type PromptInput struct {
	Persona    Persona
	Request    engine.ActionRequest
	History    []engine.ActionRecord
	Analysis   Analysis
	Harrington *HarringtonContext // nil for non-Harrington personas
}

// BuildPrompt renders the system and user messages for one decision
func BuildPrompt(in PromptInput) (system, user string) {
	system = fmt.Sprintf("You are a poker player in a No-Limit Texas Hold'em game.\n%s\nPlaying style: %s\n\n%s",
		in.Persona.Description, in.Persona.Style, responseInstruction)

	var b strings.Builder
	st := in.Request.State

	fmt.Fprintf(&b, "=== Round %d, %s ===\n", st.RoundNumber, strings.ToUpper(string(st.Street)))
	fmt.Fprintf(&b, "Your hole cards: %s\n", cardList(in.Request.Hole))
	fmt.Fprintf(&b, "Community cards: %s\n", cardList(st.Board))
	fmt.Fprintf(&b, "Pot: %d  Current bet: %d\n\n", st.Pot, st.CurrentBet)

	b.WriteString("Players:\n")
	for i, s := range st.Seats {
		status := "active"
		switch {
		case s.Folded:
			status = "folded"
		case s.AllIn:
			status = "all-in"
		}
		marker := ""
		if i == st.DealerButton {
			marker = " (button)"
		}
		fmt.Fprintf(&b, "  %s%s: stack %d, bet %d, %s\n", s.Name, marker, s.Stack, s.Bet, status)
	}

	if len(in.History) > 0 {
		b.WriteString("\nAction so far this hand:\n")
		for _, rec := range in.History {
			fmt.Fprintf(&b, "  [%s] %s %s", rec.Street, rec.Name, rec.Action)
			if rec.Amount > 0 {
				fmt.Fprintf(&b, " %d", rec.Amount)
			}
			b.WriteString("\n")
		}
	}

	legal := in.Request.Legal
	b.WriteString("\nYour options:\n")
	if legal.CanCheck() {
		b.WriteString("  check (call 0)\n")
	} else {
		fmt.Fprintf(&b, "  fold\n  call %d\n", legal.CallAmount)
	}
	if legal.CanRaise() {
		fmt.Fprintf(&b, "  raise to between %d and %d (total this street)\n", legal.MinRaise, legal.MaxRaise)
	}

	fmt.Fprintf(&b, "\nMath:\n  Win probability vs a random hand: %.1f%%\n", in.Analysis.Equity*100)
	if legal.CallAmount > 0 {
		fmt.Fprintf(&b, "  Pot odds (break-even equity): %.1f%%\n", in.Analysis.PotOdds*100)
		fmt.Fprintf(&b, "  EV of calling: %+.1f chips (%s)\n", in.Analysis.EVCall, evLabel(in.Analysis.EVPositive))
	}

	if h := in.Harrington; h != nil {
		b.WriteString("\nStack analysis (Harrington):\n")
		fmt.Fprintf(&b, "  Effective stack: %.1f BB\n", h.EffectiveStackBB)
		fmt.Fprintf(&b, "  SPR: %s (%s)\n", h.SPRDisplay, h.SPRCategory)
		if len(st.Board) >= 3 {
			fmt.Fprintf(&b, "  Board texture: %s\n", h.Texture.Texture)
			fmt.Fprintf(&b, "  Your made hand: %s\n", h.MadeHand.Description)
		}
		fmt.Fprintf(&b, "  Randomizer (0-100, for mixed strategies): %d\n", h.RNGValue)
	}

	b.WriteString("\nWhat do you do?")
	return system, b.String()
}

func cardList(cards []deck.Card) string {
	if len(cards) == 0 {
		return "(none)"
	}
	return strings.Join(deck.Notations(cards), " ")
}

func evLabel(positive bool) string {
	if positive {
		return "profitable"
	}
	return "unprofitable"
}
