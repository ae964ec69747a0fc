package tarot

import (
	"strings"
	"testing"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

func dealtFrom(deck []*types.Card, names []string, positions []string, reversed []bool) []DealtCard {
	out := make([]DealtCard, len(names))
	for i, name := range names {
		out[i] = DealtCard{
			Card:          findCard(deck, name),
			Position:      positions[i],
			PositionOrder: i + 1,
			IsReversed:    reversed[i],
		}
	}
	return out
}

func TestAnalyzePositionsThreeCard(t *testing.T) {
	deck := testDeck("waite")
	cards := dealtFrom(deck,
		[]string{"The Fool", "Two of Cups", "King of Swords"},
		[]string{"past", "present", "future"},
		[]bool{false, true, false})

	a := AnalyzePatterns(cards, types.SpreadThreeCard, "love")
	flow := a.PositionRelationships.TimeFlow
	if !strings.HasPrefix(flow, "Past → Present → Future:") {
		t.Fatalf("unexpected time flow %q", flow)
	}
	if !strings.Contains(flow, "Two of Cups (reversed)") {
		t.Fatalf("reversed card not labeled in %q", flow)
	}
	wantPairs := []string{"past → present", "present → future"}
	if len(a.PositionRelationships.CausalRelationships) != len(wantPairs) {
		t.Fatalf("causal pairs: %v", a.PositionRelationships.CausalRelationships)
	}
	for i, want := range wantPairs {
		if a.PositionRelationships.CausalRelationships[i] != want {
			t.Fatalf("pair %d: got %q, want %q", i, a.PositionRelationships.CausalRelationships[i], want)
		}
	}
}

func TestNumberPatterns(t *testing.T) {
	deck := testDeck("waite")
	cards := dealtFrom(deck,
		[]string{"Two of Cups", "Two of Swords", "Three of Wands", "Seven of Pentacles"},
		[]string{"a", "b", "c", "d"},
		[]bool{false, false, false, false})

	a := AnalyzePatterns(cards, types.SpreadThreeCard, "general")
	np := a.NumberPatterns
	if len(np.SameNumbers) != 1 || !strings.Contains(np.SameNumbers[0], "number 2 appears 2 times") {
		t.Fatalf("same numbers: %v", np.SameNumbers)
	}
	if len(np.Sequences) != 1 || !strings.Contains(np.Sequences[0], "2 → 3") {
		t.Fatalf("sequences: %v", np.Sequences)
	}
	if len(np.Jumps) != 1 || !strings.Contains(np.Jumps[0], "from 3 to 7") {
		t.Fatalf("jumps: %v", np.Jumps)
	}
}

func TestSuitDistributionMajorDominant(t *testing.T) {
	deck := testDeck("waite")
	cards := dealtFrom(deck,
		[]string{"The Fool", "Death", "Two of Cups"},
		[]string{"past", "present", "future"},
		[]bool{false, false, false})

	a := AnalyzePatterns(cards, types.SpreadThreeCard, "general")
	if a.SuitDistribution.MajorCount != 2 {
		t.Fatalf("major count: %d", a.SuitDistribution.MajorCount)
	}
	if !strings.Contains(a.SuitDistribution.Interpretation, "Major arcana dominate") {
		t.Fatalf("interpretation: %q", a.SuitDistribution.Interpretation)
	}
}

func TestSuitDistributionTopMinorSuit(t *testing.T) {
	deck := testDeck("waite")
	cards := dealtFrom(deck,
		[]string{"Two of Cups", "Three of Cups", "Four of Swords"},
		[]string{"past", "present", "future"},
		[]bool{false, false, false})

	a := AnalyzePatterns(cards, types.SpreadThreeCard, "love")
	if !strings.Contains(a.SuitDistribution.Interpretation, "Cups lead") {
		t.Fatalf("interpretation: %q", a.SuitDistribution.Interpretation)
	}
	if a.SuitDistribution.Counts["cups"] != 2 || a.SuitDistribution.Counts["swords"] != 1 {
		t.Fatalf("counts: %v", a.SuitDistribution.Counts)
	}
}

func TestMajorArcanaBuckets(t *testing.T) {
	deck := testDeck("waite")
	three := []string{"past", "present", "future"}
	noRev := []bool{false, false, false}

	none := AnalyzePatterns(dealtFrom(deck,
		[]string{"Two of Cups", "Three of Cups", "Four of Swords"}, three, noRev),
		types.SpreadThreeCard, "general")
	if !strings.Contains(none.MajorArcanaPatterns.Interpretation, "No major arcana") {
		t.Fatalf("none bucket: %q", none.MajorArcanaPatterns.Interpretation)
	}

	single := AnalyzePatterns(dealtFrom(deck,
		[]string{"The Fool", "Three of Cups", "Four of Swords"}, three, noRev),
		types.SpreadThreeCard, "general")
	if !strings.Contains(single.MajorArcanaPatterns.Interpretation, "single major arcana") {
		t.Fatalf("single bucket: %q", single.MajorArcanaPatterns.Interpretation)
	}

	dominant := AnalyzePatterns(dealtFrom(deck,
		[]string{"The Fool", "Death", "Four of Swords"}, three, noRev),
		types.SpreadThreeCard, "general")
	if !strings.Contains(dominant.MajorArcanaPatterns.Interpretation, "dominate") {
		t.Fatalf("dominant bucket: %q", dominant.MajorArcanaPatterns.Interpretation)
	}
}

func TestReversedBuckets(t *testing.T) {
	deck := testDeck("waite")
	names := []string{
		"The Fool", "The Magician", "Two of Cups", "Three of Cups", "Four of Swords",
		"Five of Swords", "Six of Wands", "Seven of Wands", "Eight of Pentacles", "Nine of Pentacles",
	}
	positions := make([]string, 10)
	for i := range positions {
		positions[i] = celticCrossPositions[i].Name
	}

	cases := []struct {
		name     string
		reversed int
		want     string
	}{
		{"none", 0, "No reversals"},
		{"few", 2, "A few reversals"},
		{"many", 5, "Many reversals"},
		{"dominant", 8, "Reversals dominate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rev := make([]bool, 10)
			for i := 0; i < tc.reversed; i++ {
				rev[i] = true
			}
			a := AnalyzePatterns(dealtFrom(deck, names, positions, rev), types.SpreadCelticCross, "general")
			if a.ReversedPatterns.Count != tc.reversed {
				t.Fatalf("count: got %d, want %d", a.ReversedPatterns.Count, tc.reversed)
			}
			if !strings.Contains(a.ReversedPatterns.Interpretation, tc.want) {
				t.Fatalf("got %q, want substring %q", a.ReversedPatterns.Interpretation, tc.want)
			}
		})
	}
}

func TestSpecialCombinations(t *testing.T) {
	deck := testDeck("waite")
	cards := dealtFrom(deck,
		[]string{"King of Wands", "Queen of Swords", "Two of Wands"},
		[]string{"past", "present", "future"},
		[]bool{false, false, false})

	a := AnalyzePatterns(cards, types.SpreadThreeCard, "career")
	var courtCombo, suitCombo bool
	for _, combo := range a.SpecialCombinations {
		if strings.Contains(combo, "court cards") {
			courtCombo = true
		}
		if strings.Contains(combo, "cards of wands") {
			suitCombo = true
		}
	}
	if !courtCombo {
		t.Fatalf("expected court combo in %v", a.SpecialCombinations)
	}
	if !suitCombo {
		t.Fatalf("expected wands concentration combo in %v", a.SpecialCombinations)
	}
}

func TestSupportConflictDescriptions(t *testing.T) {
	deck := testDeck("waite")

	unified := AnalyzePatterns(dealtFrom(deck,
		[]string{"Two of Cups", "Three of Cups", "Four of Cups"},
		[]string{"past", "present", "future"}, []bool{false, false, false}),
		types.SpreadThreeCard, "love")
	if !strings.Contains(unified.PositionRelationships.SupportConflict, "unified") {
		t.Fatalf("unified: %q", unified.PositionRelationships.SupportConflict)
	}

	mixed := AnalyzePatterns(dealtFrom(deck,
		[]string{"The Fool", "Two of Cups", "Four of Swords"},
		[]string{"past", "present", "future"}, []bool{false, false, false}),
		types.SpreadThreeCard, "general")
	if !strings.Contains(mixed.PositionRelationships.SupportConflict, "mixed") {
		t.Fatalf("mixed: %q", mixed.PositionRelationships.SupportConflict)
	}
}
