package evaluator

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/lox/holdem-arena/internal/deck"
	"golang.org/x/sync/errgroup"
)

// DefaultIterations is the Monte Carlo sample count used when the caller
// does not override it.
const DefaultIterations = 300

// parallelThreshold is the sample count below which the sequential path is
// cheaper than spinning up workers.
const parallelThreshold = 500

// CardSet is a 52-bit set of cards: index = (rank-2)*4 + suit
type CardSet uint64

func cardIndex(card deck.Card) int {
	return int(card.Rank-deck.Two)*4 + int(card.Suit)
}

// Add adds a card to the set
func (cs *CardSet) Add(card deck.Card) {
	*cs |= 1 << cardIndex(card)
}

// Contains reports whether a card is in the set
func (cs CardSet) Contains(card deck.Card) bool {
	return cs&(1<<cardIndex(card)) != 0
}

// NewCardSet creates a CardSet from a slice of cards
func NewCardSet(cards []deck.Card) CardSet {
	var cs CardSet
	for _, card := range cards {
		cs.Add(card)
	}
	return cs
}

// Range samples a two-card holding for a simulated opponent
type Range interface {
	SampleHand(available []deck.Card, rng *rand.Rand) ([2]deck.Card, bool)
}

// RandomRange is any two random cards
type RandomRange struct{}

func (RandomRange) SampleHand(available []deck.Card, rng *rand.Rand) ([2]deck.Card, bool) {
	if len(available) < 2 {
		return [2]deck.Card{}, false
	}
	i := rng.Intn(len(available))
	j := rng.Intn(len(available) - 1)
	if j >= i {
		j++
	}
	return [2]deck.Card{available[i], available[j]}, true
}

type equityTally struct {
	wins    float64
	samples int
}

// Estimate computes hero win probability against one opponent drawn from
// opponentRange, completing the board randomly each sample. Ties count as
// half a win. The result is deterministic for a given seeded RNG.
func Estimate(hole []deck.Card, board []deck.Card, opponentRange Range, iterations int, rng *rand.Rand) float64 {
	if len(hole) != 2 || len(board) > 5 {
		return 0.0
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	available := availableCards(hole, board)

	if iterations < parallelThreshold {
		tally := sampleEquity(hole, board, available, opponentRange, iterations, rng)
		return tally.result()
	}
	return estimateParallel(hole, board, available, opponentRange, iterations, rng)
}

func (t equityTally) result() float64 {
	if t.samples == 0 {
		return 0.0
	}
	return t.wins / float64(t.samples)
}

func availableCards(hole, board []deck.Card) []deck.Card {
	used := NewCardSet(hole)
	for _, card := range board {
		used.Add(card)
	}

	available := make([]deck.Card, 0, 52-len(hole)-len(board))
	for suit := deck.Spades; suit <= deck.Clubs; suit++ {
		for rank := deck.Two; rank <= deck.Ace; rank++ {
			card := deck.Card{Suit: suit, Rank: rank}
			if !used.Contains(card) {
				available = append(available, card)
			}
		}
	}
	return available
}

func estimateParallel(hole, board, available []deck.Card, opponentRange Range, iterations int, rng *rand.Rand) float64 {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	perWorker := iterations / workers
	remainder := iterations % workers

	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan equityTally, workers)

	for w := 0; w < workers; w++ {
		samples := perWorker
		if w < remainder {
			samples++
		}
		// Seeds are drawn sequentially from the parent RNG so the overall
		// result stays deterministic for a given seed.
		seed := rng.Int63()

		g.Go(func() error {
			workerRng := rand.New(rand.NewSource(seed))
			tally := sampleEquity(hole, board, available, opponentRange, samples, workerRng)
			select {
			case results <- tally:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var total equityTally
	for tally := range results {
		total.wins += tally.wins
		total.samples += tally.samples
	}

	if err := g.Wait(); err != nil {
		return sampleEquity(hole, board, available, opponentRange, iterations, rng).result()
	}
	return total.result()
}

func sampleEquity(hole, board, available []deck.Card, opponentRange Range, iterations int, rng *rand.Rand) equityTally {
	var tally equityTally

	base := NewCardSet(hole)
	for _, card := range board {
		base.Add(card)
	}

	finalBoard := make([]deck.Card, 5)
	heroHand := make([]deck.Card, 7)
	oppHand := make([]deck.Card, 7)
	candidates := make([]deck.Card, 0, 52)

	for i := 0; i < iterations; i++ {
		oppHole, ok := opponentRange.SampleHand(available, rng)
		if !ok {
			continue
		}

		used := base
		used.Add(oppHole[0])
		used.Add(oppHole[1])

		candidates = candidates[:0]
		for _, card := range available {
			if !used.Contains(card) {
				candidates = append(candidates, card)
			}
		}

		needed := 5 - len(board)
		if len(candidates) < needed {
			continue
		}

		copy(finalBoard, board)
		for filled := 0; filled < needed; filled++ {
			idx := rng.Intn(len(candidates) - filled)
			finalBoard[len(board)+filled] = candidates[idx]
			candidates[idx], candidates[len(candidates)-1-filled] =
				candidates[len(candidates)-1-filled], candidates[idx]
		}

		copy(heroHand[:2], hole)
		copy(heroHand[2:], finalBoard)
		oppHand[0], oppHand[1] = oppHole[0], oppHole[1]
		copy(oppHand[2:], finalBoard)

		switch Evaluate(heroHand).Compare(Evaluate(oppHand)) {
		case 1:
			tally.wins++
		case 0:
			tally.wins += 0.5
		}
		tally.samples++
	}

	return tally
}
