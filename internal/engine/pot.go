package engine

import (
	"sort"

	"github.com/lox/holdem-arena/internal/evaluator"
)

// pot is one main or side pot with a seat eligibility mask
type pot struct {
	amount   int
	eligible []bool
}

// potManager tracks per-player contributions and settles main and side pots
// at the end of a hand.
type potManager struct {
	currentBets []int // this street
	totalBets   []int // whole hand
}

func newPotManager(n int) *potManager {
	return &potManager{
		currentBets: make([]int, n),
		totalBets:   make([]int, n),
	}
}

func (pm *potManager) addBet(player, amount int) {
	pm.currentBets[player] += amount
	pm.totalBets[player] += amount
}

func (pm *potManager) resetCurrentBets() {
	for i := range pm.currentBets {
		pm.currentBets[i] = 0
	}
}

func (pm *potManager) totalPot() int {
	total := 0
	for _, b := range pm.totalBets {
		total += b
	}
	return total
}

// returnUncalled refunds the uncalled portion of the street's highest bet.
// Returns the refunded player index and amount, or (-1, 0).
func (pm *potManager) returnUncalled() (int, int) {
	hi, second, hiPlayer := 0, 0, -1
	for idx, bet := range pm.currentBets {
		if bet > hi {
			second = hi
			hi = bet
			hiPlayer = idx
		} else if bet > second {
			second = bet
		}
	}

	if hiPlayer >= 0 && hi > second {
		uncalled := hi - second
		pm.currentBets[hiPlayer] -= uncalled
		pm.totalBets[hiPlayer] -= uncalled
		return hiPlayer, uncalled
	}
	return -1, 0
}

// buildPots slices the total contributions into a main pot and side pots at
// each all-in level. folded[i] excludes a seat from eligibility without
// touching its contribution.
func (pm *potManager) buildPots(folded []bool) []pot {
	n := len(pm.totalBets)

	levelSet := map[int]bool{}
	for _, b := range pm.totalBets {
		if b > 0 {
			levelSet[b] = true
		}
	}
	if len(levelSet) == 0 {
		return nil
	}

	levels := make([]int, 0, len(levelSet))
	for b := range levelSet {
		levels = append(levels, b)
	}
	sort.Ints(levels)

	pots := make([]pot, 0, len(levels))
	prev := 0
	for _, lvl := range levels {
		p := pot{eligible: make([]bool, n)}
		for i := 0; i < n; i++ {
			if !folded[i] && pm.totalBets[i] >= lvl {
				p.eligible[i] = true
			}
			if tb := pm.totalBets[i]; tb > prev {
				c := tb
				if c > lvl {
					c = lvl
				}
				p.amount += c - prev
			}
		}
		pots = append(pots, p)
		prev = lvl
	}
	return pots
}

// settle distributes every pot among the best eligible hands. ranks[i] must
// be set for every non-folded seat; odd chips go to the first winner.
// Returns winnings per seat index.
func (pm *potManager) settle(folded []bool, ranks []evaluator.HandRank) []int {
	n := len(pm.totalBets)
	winnings := make([]int, n)

	for _, p := range pm.buildPots(folded) {
		var winners []int
		var best evaluator.HandRank
		for i := 0; i < n; i++ {
			if !p.eligible[i] {
				continue
			}
			if len(winners) == 0 || ranks[i].Compare(best) > 0 {
				best = ranks[i]
				winners = []int{i}
			} else if ranks[i].Compare(best) == 0 {
				winners = append(winners, i)
			}
		}
		if len(winners) == 0 {
			continue
		}

		share := p.amount / len(winners)
		rem := p.amount % len(winners)
		for i, idx := range winners {
			winnings[idx] += share
			if i == 0 {
				winnings[idx] += rem
			}
		}
	}
	return winnings
}
