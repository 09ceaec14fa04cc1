package evaluator

// Bitfield 7-card hand evaluator. Lower rank values are better hands
// (0 = Royal Flush, 7461 = worst high card).

import (
	"math/bits"

	"github.com/lox/holdem-arena/internal/deck"
)

// HandRank represents the strength of a poker hand (lower is better)
type HandRank uint16

// WorstRank is returned for unevaluable input.
const WorstRank HandRank = 7462

// Compare returns 1 if h is better, -1 if other is better, 0 if equal
func (h HandRank) Compare(other HandRank) int {
	if h < other {
		return 1
	} else if h > other {
		return -1
	}
	return 0
}

// String returns a description of the hand class
func (h HandRank) String() string {
	return h.Class().String()
}

// Class returns the hand category for this rank
func (h HandRank) Class() HandClass {
	switch {
	case h == 0:
		return RoyalFlush
	case h <= 9:
		return StraightFlush
	case h <= 165:
		return FourOfAKind
	case h <= 321:
		return FullHouse
	case h <= 1598:
		return Flush
	case h <= 1608:
		return Straight
	case h <= 2466:
		return ThreeOfAKind
	case h <= 3324:
		return TwoPair
	case h <= 6184:
		return OnePair
	default:
		return HighCard
	}
}

// HandClass is the coarse category of a hand, strongest first
type HandClass int

const (
	RoyalFlush HandClass = iota
	StraightFlush
	FourOfAKind
	FullHouse
	Flush
	Straight
	ThreeOfAKind
	TwoPair
	OnePair
	HighCard
)

func (c HandClass) String() string {
	switch c {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush:
		return "Straight Flush"
	case FourOfAKind:
		return "Four of a Kind"
	case FullHouse:
		return "Full House"
	case Flush:
		return "Flush"
	case Straight:
		return "Straight"
	case ThreeOfAKind:
		return "Three of a Kind"
	case TwoPair:
		return "Two Pair"
	case OnePair:
		return "One Pair"
	case HighCard:
		return "High Card"
	default:
		return "Unknown"
	}
}

// hand is a bitfield of cards: bit position = suit*13 + (rank-2)
type hand uint64

func makeHand(cards []deck.Card) hand {
	var h hand
	for _, c := range cards {
		h |= 1 << (int(c.Suit)*13 + int(c.Rank-deck.Two))
	}
	return h
}

func suitMask(h hand, suit int) uint16 {
	return uint16((uint64(h) >> (suit * 13)) & 0x1FFF)
}

func rankMask(h hand) uint16 {
	return suitMask(h, 0) | suitMask(h, 1) | suitMask(h, 2) | suitMask(h, 3)
}

// highestRanks keeps the highest count bits of a rank mask
func highestRanks(ranks uint16, count int) uint16 {
	result := uint16(0)
	for bit := 12; bit >= 0 && count > 0; bit-- {
		if ranks&(1<<bit) != 0 {
			result |= 1 << bit
			count--
		}
	}
	return result
}

// straightMask returns the mask of the best straight present, or 0
func straightMask(ranks uint16) uint16 {
	mask := uint16(0x1F00) // A-K-Q-J-T
	for i := 0; i <= 8; i++ {
		if ranks&mask == mask {
			return mask
		}
		mask >>= 1
	}
	if ranks&0x100F == 0x100F { // wheel A-2-3-4-5
		return 0x100F
	}
	return 0
}

func topBitRank(mask uint16) int {
	return 15 - bits.LeadingZeros16(mask)
}

// Evaluate ranks a hand of 2 to 7 cards. Fewer than 5 cards can still
// form pairs, trips and quads, which is what preflop hand description needs.
func Evaluate(cards []deck.Card) HandRank {
	if len(cards) < 2 || len(cards) > 7 {
		return WorstRank
	}

	h := makeHand(cards)
	ranks := rankMask(h)
	suits := [4]uint16{suitMask(h, 0), suitMask(h, 1), suitMask(h, 2), suitMask(h, 3)}

	flushSuit := -1
	var flushRanks uint16
	for i, s := range suits {
		if bits.OnesCount16(s) >= 5 {
			flushSuit = i
			flushRanks = highestRanks(s, 5)
			break
		}
	}

	straight := straightMask(ranks)

	if flushSuit != -1 {
		if sf := straightMask(suits[flushSuit]); sf != 0 {
			if sf == 0x1F00 {
				return 0 // royal flush
			}
			if sf == 0x100F {
				return 9 // wheel straight flush
			}
			return HandRank(12 - topBitRank(sf))
		}
	}

	var rankCounts [13]int
	for i := 0; i < 13; i++ {
		if ranks&(1<<i) == 0 {
			continue
		}
		for _, s := range suits {
			if s&(1<<i) != 0 {
				rankCounts[i]++
			}
		}
	}

	quads, trips, pairs := 0, 0, 0
	for _, count := range rankCounts {
		switch count {
		case 4:
			quads++
		case 3:
			trips++
		case 2:
			pairs++
		}
	}

	if quads > 0 {
		quadRank, kickerRank := 0, 0
		for rank, count := range rankCounts {
			if count == 4 {
				quadRank = rank
			} else if count >= 1 && rank > kickerRank {
				kickerRank = rank
			}
		}
		return HandRank(10 + (12-quadRank)*12 + (12 - kickerRank))
	}

	if trips > 0 && (pairs > 0 || trips > 1) {
		tripRank, secondTrip, pairRank := -1, -1, -1
		for rank, count := range rankCounts {
			if count == 3 {
				if rank > tripRank {
					secondTrip = tripRank
					tripRank = rank
				} else {
					secondTrip = rank
				}
			} else if count == 2 && rank > pairRank {
				pairRank = rank
			}
		}
		if trips > 1 {
			pairRank = secondTrip
		}
		return HandRank(166 + (12-tripRank)*12 + (12 - pairRank))
	}

	if flushSuit != -1 {
		return HandRank(322 + (12-topBitRank(flushRanks))*100)
	}

	if straight != 0 {
		if straight == 0x100F {
			return 1608 // wheel
		}
		return HandRank(1599 + (12 - topBitRank(straight)))
	}

	if trips > 0 {
		tripRank := 0
		for rank, count := range rankCounts {
			if count == 3 {
				tripRank = rank
			}
		}
		return HandRank(1609 + (12-tripRank)*65)
	}

	if pairs >= 2 {
		highPair, lowPair := -1, -1
		for rank, count := range rankCounts {
			if count == 2 {
				if rank > highPair {
					lowPair = highPair
					highPair = rank
				} else if rank > lowPair {
					lowPair = rank
				}
			}
		}
		return HandRank(2467 + (12-highPair)*65 + (12 - lowPair))
	}

	if pairs == 1 {
		pairRank := 0
		for rank, count := range rankCounts {
			if count == 2 {
				pairRank = rank
			}
		}
		return HandRank(3325 + (12-pairRank)*220)
	}

	return HandRank(6185 + (12-topBitRank(ranks))*100)
}
