package ai

import (
	"math/rand"

	"github.com/lox/holdem-arena/internal/engine"
)

// Difficulty selects the rule-based strategy used when no LLM is available
// or the model's response cannot be used.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// RuleDecision makes a simple probabilistic decision without any hand
// reading. The result always passes through Validate so it is legal.
func RuleDecision(difficulty Difficulty, legal engine.LegalActions, rng *rand.Rand) engine.Action {
	var action string
	var amount int

	switch difficulty {
	case DifficultyMedium:
		roll := rng.Float64()
		if legal.CanCheck() {
			if roll < 0.2 {
				action, amount = "raise", legal.MinRaise
			} else {
				action = "check"
			}
		} else {
			switch {
			case roll < 0.1:
				action = "fold"
			case roll < 0.3:
				action, amount = "raise", legal.MinRaise
			default:
				action = "call"
			}
		}
	case DifficultyHard:
		roll := rng.Float64()
		if legal.CanCheck() {
			if roll < 0.4 {
				action, amount = "raise", legal.MinRaise
			} else {
				action = "check"
			}
		} else {
			if roll < 0.3 {
				action, amount = "raise", legal.MinRaise
			} else {
				action = "call"
			}
		}
	default: // easy
		if legal.CanCheck() {
			action = "check"
		} else if rng.Float64() < 0.2 {
			action = "fold"
		} else {
			action = "call"
		}
	}

	return Validate(action, amount, legal)
}
