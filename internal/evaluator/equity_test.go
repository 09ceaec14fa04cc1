package evaluator

import (
	"math/rand"
	"testing"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDeterministicWithSeed(t *testing.T) {
	hole := deck.MustParseCards("AsKs")
	board := deck.MustParseCards("Qs2h7d")

	a := Estimate(hole, board, RandomRange{}, 300, rand.New(rand.NewSource(99)))
	b := Estimate(hole, board, RandomRange{}, 300, rand.New(rand.NewSource(99)))

	assert.Equal(t, a, b)
}

func TestEstimateStrongHandBeatsWeakHand(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	aces := Estimate(deck.MustParseCards("AsAh"), nil, RandomRange{}, 2000, rng)

	rng = rand.New(rand.NewSource(1))
	trash := Estimate(deck.MustParseCards("7h2c"), nil, RandomRange{}, 2000, rng)

	assert.Greater(t, aces, 0.75, "pocket aces should dominate a random hand")
	assert.Less(t, trash, 0.45, "seven-deuce should be an underdog")
	assert.Greater(t, aces, trash)
}

func TestEstimateNutsOnRiver(t *testing.T) {
	// Board gives hero a royal flush; equity must be 1.0.
	hole := deck.MustParseCards("AsKs")
	board := deck.MustParseCards("QsJsTs2h7d")

	equity := Estimate(hole, board, RandomRange{}, 200, rand.New(rand.NewSource(5)))
	assert.InDelta(t, 1.0, equity, 0.0001)
}

func TestEstimateInvalidInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Zero(t, Estimate(deck.MustParseCards("As"), nil, RandomRange{}, 100, rng))
	assert.Zero(t, Estimate(deck.MustParseCards("AsKs"), deck.MustParseCards("2h3h4h5h6h7h"), RandomRange{}, 100, rng))
}

func TestEstimateDefaultIterations(t *testing.T) {
	// iterations <= 0 falls back to the default sample count rather than
	// returning an empty tally.
	equity := Estimate(deck.MustParseCards("AsAh"), nil, RandomRange{}, 0, rand.New(rand.NewSource(3)))
	assert.Greater(t, equity, 0.5)
}

func TestRandomRangeSamplesDistinctCards(t *testing.T) {
	available := deck.MustParseCards("As2h7d9cKs")
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		hand, ok := RandomRange{}.SampleHand(available, rng)
		require.True(t, ok)
		assert.NotEqual(t, hand[0], hand[1])
	}

	_, ok := RandomRange{}.SampleHand(available[:1], rng)
	assert.False(t, ok)
}
