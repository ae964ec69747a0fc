package tarot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

// SpreadPatternAnalysis is the deterministic structural reading of a dealt
// spread. All text is English: it is prompt scaffolding for the downstream
// models, not user-facing copy.
type SpreadPatternAnalysis struct {
	PositionRelationships PositionRelationships `json:"position_relationships"`
	NumberPatterns        NumberPatterns        `json:"number_patterns"`
	SuitDistribution      SuitDistribution      `json:"suit_distribution"`
	MajorArcanaPatterns   ArcanaPatterns        `json:"major_arcana_patterns"`
	ReversedPatterns      ReversedPatterns      `json:"reversed_patterns"`
	SpecialCombinations   []string              `json:"special_combinations"`
}

type PositionRelationships struct {
	TimeFlow            string   `json:"time_flow"`
	CausalRelationships []string `json:"causal_relationships"`
	SupportConflict     string   `json:"support_conflict"`
}

type NumberPatterns struct {
	SameNumbers []string `json:"same_numbers"`
	Sequences   []string `json:"sequences"`
	Jumps       []string `json:"jumps"`
}

type SuitDistribution struct {
	Counts         map[string]int `json:"counts"`
	MajorCount     int            `json:"major_count"`
	Interpretation string         `json:"interpretation"`
}

type ArcanaPatterns struct {
	Count          int      `json:"count"`
	Positions      []string `json:"positions"`
	Interpretation string   `json:"interpretation"`
}

type ReversedPatterns struct {
	Count          int      `json:"count"`
	Positions      []string `json:"positions"`
	Interpretation string   `json:"interpretation"`
}

// AnalyzePatterns is a pure function of the ordered dealt cards, the spread
// type, and the question domain.
func AnalyzePatterns(cards []DealtCard, spread types.SpreadType, questionDomain string) SpreadPatternAnalysis {
	return SpreadPatternAnalysis{
		PositionRelationships: analyzePositions(cards, spread),
		NumberPatterns:        analyzeNumbers(cards),
		SuitDistribution:      analyzeSuits(cards),
		MajorArcanaPatterns:   analyzeMajors(cards),
		ReversedPatterns:      analyzeReversals(cards),
		SpecialCombinations:   analyzeCombinations(cards),
	}
}

func analyzePositions(cards []DealtCard, spread types.SpreadType) PositionRelationships {
	rel := PositionRelationships{}

	switch spread {
	case types.SpreadThreeCard:
		if len(cards) >= 3 {
			rel.TimeFlow = fmt.Sprintf("Past → Present → Future: %s → %s → %s",
				cardLabel(cards[0]), cardLabel(cards[1]), cardLabel(cards[2]))
		}
	case types.SpreadCelticCross:
		rel.TimeFlow = "The Celtic Cross reads from the covering card through the crossing, " +
			"basis, what lies behind, what crowns, and what lies before, then up the staff: " +
			"self, environment, hopes and fears, and outcome."
	}

	for i := 0; i+1 < len(cards); i++ {
		a, b := cards[i].Position, cards[i+1].Position
		if a == "" || b == "" {
			continue
		}
		rel.CausalRelationships = append(rel.CausalRelationships, fmt.Sprintf("%s → %s", a, b))
	}

	rel.SupportConflict = describeSuitTension(cards)
	return rel
}

func describeSuitTension(cards []DealtCard) string {
	counts := map[types.Suit]int{}
	for _, dc := range cards {
		if dc.Card != nil {
			counts[dc.Card.Suit]++
		}
	}
	switch {
	case len(counts) == 0:
		return ""
	case len(counts) == 1:
		for s := range counts {
			return fmt.Sprintf("All cards share the %s energy: the spread speaks with one unified voice.", s)
		}
		return ""
	case len(counts) == len(cards):
		return "Every card carries a different energy: the spread is mixed, pulling in several directions at once."
	default:
		parts := make([]string, 0, len(counts))
		for _, s := range suitOrder {
			if n, ok := counts[s]; ok {
				parts = append(parts, fmt.Sprintf("%s ×%d", s, n))
			}
		}
		return "The energies are distributed: " + strings.Join(parts, ", ") + "."
	}
}

var suitOrder = []types.Suit{types.SuitMajor, types.SuitWands, types.SuitCups, types.SuitSwords, types.SuitPentacles}

func analyzeNumbers(cards []DealtCard) NumberPatterns {
	np := NumberPatterns{}

	byNumber := map[int][]string{}
	for _, dc := range cards {
		if dc.Card == nil || dc.Card.Arcana != types.ArcanaMinor {
			continue
		}
		byNumber[dc.Card.CardNumber] = append(byNumber[dc.Card.CardNumber], dc.Card.CardNameEN)
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		if names := byNumber[n]; len(names) > 1 {
			np.SameNumbers = append(np.SameNumbers,
				fmt.Sprintf("number %d appears %d times (%s)", n, len(names), strings.Join(names, ", ")))
		}
	}
	for i := 0; i+1 < len(numbers); i++ {
		diff := numbers[i+1] - numbers[i]
		switch {
		case diff == 1:
			np.Sequences = append(np.Sequences,
				fmt.Sprintf("sequence %d → %d suggests step-by-step progression", numbers[i], numbers[i+1]))
		case diff > 3:
			np.Jumps = append(np.Jumps,
				fmt.Sprintf("jump from %d to %d suggests a leap or skipped stage", numbers[i], numbers[i+1]))
		}
	}
	return np
}

func analyzeSuits(cards []DealtCard) SuitDistribution {
	sd := SuitDistribution{Counts: map[string]int{}}
	minorTotal := 0
	minorCounts := map[types.Suit]int{}
	for _, dc := range cards {
		if dc.Card == nil {
			continue
		}
		sd.Counts[string(dc.Card.Suit)]++
		if dc.Card.Arcana == types.ArcanaMajor {
			sd.MajorCount++
		} else {
			minorTotal++
			minorCounts[dc.Card.Suit]++
		}
	}

	if sd.MajorCount > minorTotal {
		sd.Interpretation = "Major arcana dominate: the matter is driven by forces larger than day-to-day choices."
		return sd
	}

	var top types.Suit
	best := 0
	for _, s := range suitOrder {
		if n := minorCounts[s]; n > best {
			top, best = s, n
		}
	}
	switch top {
	case types.SuitWands:
		sd.Interpretation = "Wands lead the spread: ambition, initiative, and creative drive set the tone."
	case types.SuitCups:
		sd.Interpretation = "Cups lead the spread: feelings and relationships are at the heart of the question."
	case types.SuitSwords:
		sd.Interpretation = "Swords lead the spread: thought, conflict, and hard truths dominate."
	case types.SuitPentacles:
		sd.Interpretation = "Pentacles lead the spread: material concerns and practical work carry the most weight."
	default:
		sd.Interpretation = "No single suit dominates the spread."
	}
	return sd
}

func analyzeMajors(cards []DealtCard) ArcanaPatterns {
	ap := ArcanaPatterns{}
	for _, dc := range cards {
		if dc.Card != nil && dc.Card.Arcana == types.ArcanaMajor {
			ap.Count++
			ap.Positions = append(ap.Positions, dc.Position)
		}
	}
	total := len(cards)
	switch {
	case ap.Count == 0:
		ap.Interpretation = "No major arcana: the situation is within the querent's everyday control."
	case ap.Count == 1:
		ap.Interpretation = "A single major arcana marks the one place where fate presses on the matter."
	case total > 0 && ap.Count*2 <= total:
		ap.Interpretation = "Several major arcana: significant currents are moving beneath the surface."
	default:
		ap.Interpretation = "Major arcana dominate: this is a turning point shaped by forces beyond the everyday."
	}
	return ap
}

func analyzeReversals(cards []DealtCard) ReversedPatterns {
	rp := ReversedPatterns{}
	for _, dc := range cards {
		if dc.IsReversed {
			rp.Count++
			rp.Positions = append(rp.Positions, dc.Position)
		}
	}
	if len(cards) == 0 {
		return rp
	}
	fraction := float64(rp.Count) / float64(len(cards))
	switch {
	case rp.Count == 0:
		rp.Interpretation = "No reversals: energy flows freely and outward."
	case fraction < 0.3:
		rp.Interpretation = "A few reversals: mostly clear flow with isolated blocks to attend to."
	case fraction < 0.7:
		rp.Interpretation = "Many reversals: substantial resistance or internalized energy in the situation."
	default:
		rp.Interpretation = "Reversals dominate: the situation is deeply blocked or turned inward, asking for reflection before action."
	}
	return rp
}

func analyzeCombinations(cards []DealtCard) []string {
	var combos []string

	var courtNames []string
	for _, dc := range cards {
		if dc.Card.IsCourt() {
			courtNames = append(courtNames, dc.Card.CardNameEN)
		}
	}
	if len(courtNames) >= 2 {
		combos = append(combos, fmt.Sprintf(
			"%d court cards (%s): other people play an active role in this matter.",
			len(courtNames), strings.Join(courtNames, ", ")))
	}

	seen := map[string]int{}
	for _, dc := range cards {
		if dc.Card != nil {
			seen[dc.Card.CardNameEN]++
		}
	}
	dupes := make([]string, 0)
	for name, n := range seen {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	sort.Strings(dupes)
	for _, name := range dupes {
		combos = append(combos, fmt.Sprintf("%s appears more than once, amplifying its message.", name))
	}

	minorCounts := map[types.Suit]int{}
	for _, dc := range cards {
		if dc.Card != nil && dc.Card.Arcana == types.ArcanaMinor {
			minorCounts[dc.Card.Suit]++
		}
	}
	for _, s := range suitOrder {
		if minorCounts[s] >= 2 {
			combos = append(combos, fmt.Sprintf(
				"%d cards of %s concentrate the spread's energy in that suit's domain.", minorCounts[s], s))
		}
	}

	return combos
}

func cardLabel(dc DealtCard) string {
	if dc.Card == nil {
		return ""
	}
	if dc.IsReversed {
		return dc.Card.CardNameEN + " (reversed)"
	}
	return dc.Card.CardNameEN
}
