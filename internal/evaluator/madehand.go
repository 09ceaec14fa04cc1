package evaluator

import (
	"fmt"
	"sort"

	"github.com/lox/holdem-arena/internal/deck"
)

// MadeHand describes what the hero's hole cards currently make against the
// board, in terms an LLM prompt (or a player) can use directly.
type MadeHand struct {
	Class       HandClass `json:"-"`
	ClassName   string    `json:"class"`
	Description string    `json:"description"`
}

// DescribeMadeHand classifies hole+board and refines the coarse class into a
// human-readable description: pocket pair vs board pair, top/middle/bottom
// pair, set vs trips.
func DescribeMadeHand(hole []deck.Card, board []deck.Card) MadeHand {
	if len(hole) != 2 {
		return MadeHand{Class: HighCard, ClassName: HighCard.String(), Description: "unknown"}
	}

	all := make([]deck.Card, 0, len(hole)+len(board))
	all = append(all, hole...)
	all = append(all, board...)
	class := Evaluate(all).Class()

	desc := class.String()
	pocketPair := hole[0].Rank == hole[1].Rank

	switch class {
	case OnePair:
		desc = describePair(hole, board, pocketPair)
	case ThreeOfAKind:
		if pocketPair {
			desc = fmt.Sprintf("Set of %ss", hole[0].Rank)
		} else if tripsUsingHole(hole, board) {
			desc = "Trips"
		} else {
			desc = "Three of a Kind (on board)"
		}
	case HighCard:
		high := hole[0]
		if hole[1].Rank > high.Rank {
			high = hole[1]
		}
		desc = fmt.Sprintf("High Card %s", high.Rank)
	}

	return MadeHand{Class: class, ClassName: class.String(), Description: desc}
}

func describePair(hole, board []deck.Card, pocketPair bool) string {
	boardRanks := make([]int, 0, len(board))
	for _, c := range board {
		boardRanks = append(boardRanks, int(c.Rank))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(boardRanks)))

	if pocketPair {
		if len(boardRanks) > 0 && int(hole[0].Rank) > boardRanks[0] {
			return fmt.Sprintf("Overpair (%ss)", hole[0].Rank)
		}
		return fmt.Sprintf("Pocket Pair (%ss)", hole[0].Rank)
	}

	// Which hole card pairs the board?
	for _, h := range hole {
		for i, br := range boardRanks {
			if int(h.Rank) != br {
				continue
			}
			switch i {
			case 0:
				return fmt.Sprintf("Top Pair (%ss)", h.Rank)
			case len(boardRanks) - 1:
				return fmt.Sprintf("Bottom Pair (%ss)", h.Rank)
			default:
				return fmt.Sprintf("Middle Pair (%ss)", h.Rank)
			}
		}
	}

	// Pair is entirely on the board.
	return "Board Pair"
}

func tripsUsingHole(hole, board []deck.Card) bool {
	for _, h := range hole {
		count := 1
		for _, b := range board {
			if b.Rank == h.Rank {
				count++
			}
		}
		if count >= 3 {
			return true
		}
	}
	return false
}
