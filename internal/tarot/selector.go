package tarot

import (
	"fmt"
	"math/rand"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

// DealtCard is one card laid into a spread position. The embedded Card is a
// shared immutable corpus record; the position fields belong to the reading.
type DealtCard struct {
	Card                *types.Card
	Position            string
	PositionOrder       int
	PositionDescription string
	IsReversed          bool
}

const reversalProbability = 0.45

// cutPivot draws a cut point from the middle half of an n-card stack, both
// bounds inclusive.
func cutPivot(rng *rand.Rand, n int) int {
	low := n / 4
	high := 3 * n / 4
	if high <= low {
		return low
	}
	return low + rng.Intn(high-low+1)
}

// Deal shuffles, cuts, and lays out a deck for the given spread. The PRNG is
// injected so tests and replayable readings can pin the sequence.
//
// For the Celtic Cross a non-nil significator is removed from the deck before
// shuffling, leaving 77 cards; the significator is never among the dealt ten.
func Deal(deck []*types.Card, spread types.SpreadType, significator *types.Card, rng *rand.Rand) ([]DealtCard, error) {
	positions, err := SpreadPositions(spread)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("rng required")
	}

	working := make([]*types.Card, 0, len(deck))
	if UsesSignificator(spread) && significator != nil {
		removed := false
		for _, c := range deck {
			if c != nil && c.ID == significator.ID {
				removed = true
				continue
			}
			working = append(working, c)
		}
		if !removed {
			return nil, fmt.Errorf("%w: %s", ErrSignificatorNotInDeck, significator.CardNameEN)
		}
	} else {
		working = append(working, deck...)
	}

	// Fisher-Yates
	for i := len(working) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		working[i], working[j] = working[j], working[i]
	}

	reversed := make([]bool, len(working))
	for i := range reversed {
		reversed[i] = rng.Float64() < reversalProbability
	}

	// Three cuts: rotate by a pivot drawn from the middle half of the deck.
	for cut := 0; cut < 3; cut++ {
		pivot := cutPivot(rng, len(working))
		if pivot <= 0 || pivot >= len(working) {
			continue
		}
		working = append(working[pivot:], working[:pivot]...)
		reversed = append(reversed[pivot:], reversed[:pivot]...)
	}

	if len(working) < len(positions) {
		return nil, fmt.Errorf("%w: have %d cards, need %d", ErrDeckTooSmall, len(working), len(positions))
	}

	out := make([]DealtCard, 0, len(positions))
	for i, pos := range positions {
		out = append(out, DealtCard{
			Card:                working[i],
			Position:            pos.Name,
			PositionOrder:       pos.Order,
			PositionDescription: pos.Description,
			IsReversed:          reversed[i],
		})
	}
	return out, nil
}
