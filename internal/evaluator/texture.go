package evaluator

import (
	"sort"

	"github.com/lox/holdem-arena/internal/deck"
)

// Texture classifies how coordinated a board is
type Texture string

const (
	TextureDry     Texture = "dry"
	TextureSemiWet Texture = "semi_wet"
	TextureWet     Texture = "wet"
)

// BoardTexture carries the texture classification and the flags it was
// derived from.
type BoardTexture struct {
	Texture          Texture `json:"texture"`
	Paired           bool    `json:"paired"`
	FlushPossible    bool    `json:"flush_possible"`
	FlushDraw        bool    `json:"flush_draw"`
	StraightPossible bool    `json:"straight_possible"`
	StraightDraw     bool    `json:"straight_draw"`
}

// ClassifyBoard computes the texture of 0 to 5 community cards. A preflop
// (empty) board is dry by definition.
func ClassifyBoard(board []deck.Card) BoardTexture {
	t := BoardTexture{Texture: TextureDry}
	if len(board) < 3 {
		return t
	}

	rankSeen := make(map[deck.Rank]int)
	suitSeen := make(map[deck.Suit]int)
	for _, c := range board {
		rankSeen[c.Rank]++
		suitSeen[c.Suit]++
	}

	for _, n := range rankSeen {
		if n >= 2 {
			t.Paired = true
		}
	}

	maxSuited := 0
	for _, n := range suitSeen {
		if n > maxSuited {
			maxSuited = n
		}
	}
	t.FlushPossible = maxSuited >= 3
	t.FlushDraw = maxSuited == 2

	ranks := make([]int, 0, len(rankSeen))
	for r := range rankSeen {
		ranks = append(ranks, int(r))
	}
	sort.Ints(ranks)

	// Sliding 3-card windows over the distinct ranks. A span of 4 or less
	// means two cards can complete a straight; 3 or less means the board
	// itself is tightly connected.
	for i := 0; i+2 < len(ranks); i++ {
		span := ranks[i+2] - ranks[i]
		if span <= 4 {
			t.StraightPossible = true
		}
		if span <= 3 {
			t.StraightDraw = true
		}
	}

	score := 0
	if t.Paired {
		score++
	}
	if t.FlushPossible {
		score += 2
	} else if t.FlushDraw {
		score++
	}
	if t.StraightDraw {
		score += 2
	} else if t.StraightPossible {
		score++
	}

	switch {
	case score >= 3:
		t.Texture = TextureWet
	case score >= 1:
		t.Texture = TextureSemiWet
	default:
		t.Texture = TextureDry
	}
	return t
}
