package tarot

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

func TestDealThreeCard(t *testing.T) {
	deck := testDeck("waite")
	dealt, err := Deal(deck, types.SpreadThreeCard, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}
	if len(dealt) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(dealt))
	}
	wantPositions := []string{"past", "present", "future"}
	for i, dc := range dealt {
		if dc.Position != wantPositions[i] {
			t.Fatalf("position %d: got %s, want %s", i, dc.Position, wantPositions[i])
		}
		if dc.PositionOrder != i+1 {
			t.Fatalf("position order %d: got %d", i, dc.PositionOrder)
		}
	}
}

func TestDealDeterministicWithSeed(t *testing.T) {
	deck := testDeck("waite")
	a, err := Deal(deck, types.SpreadCelticCross, nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}
	b, err := Deal(deck, types.SpreadCelticCross, nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}
	for i := range a {
		if a[i].Card.ID != b[i].Card.ID || a[i].IsReversed != b[i].IsReversed {
			t.Fatalf("deal not deterministic at position %d", i)
		}
	}
}

func TestDealCelticCrossRemovesSignificator(t *testing.T) {
	deck := testDeck("waite")
	sig := findCard(deck, "King of Wands")
	if sig == nil {
		t.Fatal("test deck missing King of Wands")
	}

	for seed := int64(0); seed < 20; seed++ {
		dealt, err := Deal(deck, types.SpreadCelticCross, sig, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(dealt) != 10 {
			t.Fatalf("seed %d: expected 10 cards, got %d", seed, len(dealt))
		}
		for _, dc := range dealt {
			if dc.Card.ID == sig.ID {
				t.Fatalf("seed %d: significator dealt into spread", seed)
			}
		}
	}
}

func TestDealSignificatorNotInDeck(t *testing.T) {
	deck := testDeck("waite")
	stranger := testDeck("thoth")[0]
	_, err := Deal(deck, types.SpreadCelticCross, stranger, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrSignificatorNotInDeck) {
		t.Fatalf("expected ErrSignificatorNotInDeck, got %v", err)
	}
}

func TestDealUnknownSpread(t *testing.T) {
	_, err := Deal(testDeck("waite"), types.SpreadWorkCycle, nil, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrUnknownSpread) {
		t.Fatalf("expected ErrUnknownSpread, got %v", err)
	}
}

func TestDealDeckTooSmall(t *testing.T) {
	deck := testDeck("waite")[:5]
	_, err := Deal(deck, types.SpreadCelticCross, nil, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrDeckTooSmall) {
		t.Fatalf("expected ErrDeckTooSmall, got %v", err)
	}
}

func TestDealPreservesFullDeckWithoutSignificator(t *testing.T) {
	deck := testDeck("waite")
	seen := map[string]bool{}
	dealt, err := Deal(deck, types.SpreadCelticCross, nil, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}
	for _, dc := range dealt {
		if seen[dc.Card.ID.String()] {
			t.Fatalf("card %s dealt twice", dc.Card.CardNameEN)
		}
		seen[dc.Card.ID.String()] = true
	}
}

func TestCutPivotCoversMiddleHalfInclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n = 78
	low, high := n/4, 3*n/4
	seenLow, seenHigh := false, false
	for i := 0; i < 5000; i++ {
		p := cutPivot(rng, n)
		if p < low || p > high {
			t.Fatalf("pivot %d outside [%d, %d]", p, low, high)
		}
		if p == low {
			seenLow = true
		}
		if p == high {
			seenHigh = true
		}
	}
	if !seenLow {
		t.Fatalf("pivot never hit lower bound %d", low)
	}
	if !seenHigh {
		t.Fatalf("pivot never hit upper bound %d", high)
	}
}

func TestReversalRateRoughlyMatchesProbability(t *testing.T) {
	deck := testDeck("waite")
	reversedCount, total := 0, 0
	for seed := int64(0); seed < 200; seed++ {
		dealt, err := Deal(deck, types.SpreadCelticCross, nil, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, dc := range dealt {
			total++
			if dc.IsReversed {
				reversedCount++
			}
		}
	}
	rate := float64(reversedCount) / float64(total)
	if rate < 0.35 || rate > 0.55 {
		t.Fatalf("reversal rate %.3f outside expected band around 0.45", rate)
	}
}
