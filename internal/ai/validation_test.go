package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/holdem-arena/internal/engine"
)

func TestValidate(t *testing.T) {
	open := engine.LegalActions{CallAmount: 0, MinRaise: 40, MaxRaise: 500}
	facing := engine.LegalActions{CallAmount: 50, MinRaise: 100, MaxRaise: 500}
	noRaise := engine.LegalActions{CallAmount: 50}

	tests := []struct {
		name   string
		action string
		amount int
		legal  engine.LegalActions
		want   engine.Action
	}{
		{"fold with free check becomes check", "fold", 0, open, engine.Action{Type: engine.ActionCall, Amount: 0}},
		{"fold facing a bet stands", "fold", 0, facing, engine.Action{Type: engine.ActionFold}},
		{"check when free", "check", 0, open, engine.Action{Type: engine.ActionCall, Amount: 0}},
		{"check facing a bet becomes call", "check", 0, facing, engine.Action{Type: engine.ActionCall, Amount: 50}},
		{"call uses the engine amount", "call", 999, facing, engine.Action{Type: engine.ActionCall, Amount: 50}},
		{"allin raises to max", "allin", 0, facing, engine.Action{Type: engine.ActionRaise, Amount: 500}},
		{"all_in spelling", "all_in", 0, facing, engine.Action{Type: engine.ActionRaise, Amount: 500}},
		{"all-in spelling", "all-in", 0, facing, engine.Action{Type: engine.ActionRaise, Amount: 500}},
		{"allin with no raise available calls", "allin", 0, noRaise, engine.Action{Type: engine.ActionCall, Amount: 50}},
		{"raise below minimum clamps up", "raise", 60, facing, engine.Action{Type: engine.ActionRaise, Amount: 100}},
		{"raise above maximum clamps down", "raise", 9999, facing, engine.Action{Type: engine.ActionRaise, Amount: 500}},
		{"raise in range passes through", "raise", 200, facing, engine.Action{Type: engine.ActionRaise, Amount: 200}},
		{"raise amount -1 is all-in", "raise", -1, facing, engine.Action{Type: engine.ActionRaise, Amount: 500}},
		{"raise with no raise available calls", "raise", 200, noRaise, engine.Action{Type: engine.ActionCall, Amount: 50}},
		{"bet is a raise", "bet", 150, facing, engine.Action{Type: engine.ActionRaise, Amount: 150}},
		{"unknown action checks when free", "limp", 0, open, engine.Action{Type: engine.ActionCall, Amount: 0}},
		{"unknown action calls facing a bet", "limp", 0, facing, engine.Action{Type: engine.ActionCall, Amount: 50}},
		{"case and whitespace tolerated", "  RAISE ", 200, facing, engine.Action{Type: engine.ActionRaise, Amount: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.action, tt.amount, tt.legal))
		})
	}
}
