package prompts

import (
	"fmt"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/tarot"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

// CardQueries are the three retrieval queries issued for one dealt card.
type CardQueries struct {
	Semantic string
	Visual   string
	Position string
}

// BuildCardQueries fuses a dealt card's identity, orientation, and spread
// position into its three retrieval queries.
func BuildCardQueries(dc tarot.DealtCard, questionDomain string) CardQueries {
	card := dc.Card
	orientation := "upright meaning"
	meaning := card.UprightMeaning
	if dc.IsReversed {
		orientation = "reversed meaning"
		meaning = card.ReversedMeaning
	}

	var semantic strings.Builder
	fmt.Fprintf(&semantic, "%s tarot card %s: %s", card.CardNameEN, orientation, meaning)
	if card.Arcana == types.ArcanaMajor {
		if card.SymbolicMeaning != "" {
			fmt.Fprintf(&semantic, " symbolism archetype: %s", card.SymbolicMeaning)
		} else {
			semantic.WriteString(" major arcana archetype symbolism")
		}
	} else if element := card.Suit.Element(); element != "" {
		fmt.Fprintf(&semantic, " %s suit %s element", card.Suit, element)
	}

	visual := fmt.Sprintf("%s tarot card visual description imagery scene symbols", card.CardNameEN)

	position := fmt.Sprintf(
		"%s in the %s position (%s): psychological significance for a %s question",
		card.CardNameEN, dc.Position, dc.PositionDescription, questionDomain,
	)

	return CardQueries{
		Semantic: semantic.String(),
		Visual:   visual,
		Position: position,
	}
}

// SpreadMethodQueries are the four method-level retrieval queries for a
// spread layout.
func SpreadMethodQueries(spread types.SpreadType) []string {
	name := strings.ReplaceAll(string(spread), "_", " ")
	return []string{
		fmt.Sprintf("%s spread steps how to lay out and read the cards", name),
		fmt.Sprintf("%s spread position interpretation meaning of each position", name),
		fmt.Sprintf("%s spread psychological background and purpose", name),
		fmt.Sprintf("traditional method of reading the %s spread", name),
	}
}

// RelationshipQueries derives the conditional relationship queries from the
// pattern analysis, plus the always-issued general sequence query.
func RelationshipQueries(cards []tarot.DealtCard, analysis tarot.SpreadPatternAnalysis) []string {
	var queries []string

	if len(analysis.NumberPatterns.SameNumbers) > 0 || len(analysis.NumberPatterns.Sequences) > 0 ||
		len(analysis.NumberPatterns.Jumps) > 0 {
		queries = append(queries, "meaning of repeated numbers and number sequences across tarot cards in a spread")
	}

	hasMinor, hasMajor, hasReversed, courtCount := false, false, false, 0
	for _, dc := range cards {
		if dc.Card == nil {
			continue
		}
		if dc.Card.Arcana == types.ArcanaMinor {
			hasMinor = true
		}
		if dc.Card.Arcana == types.ArcanaMajor {
			hasMajor = true
		}
		if dc.IsReversed {
			hasReversed = true
		}
		if dc.Card.IsCourt() {
			courtCount++
		}
	}

	if hasMinor {
		queries = append(queries, "suit distribution in a tarot spread: dominant suit meaning wands cups swords pentacles")
	}
	if hasMajor {
		queries = append(queries, "many major arcana in a tarot spread significance fate larger forces")
	}
	if hasReversed {
		queries = append(queries, "reversed cards in a tarot spread blocked energy internalized meaning")
	}
	if courtCount >= 2 {
		queries = append(queries, "multiple court cards in a tarot spread people influences meaning")
	}

	queries = append(queries, "relationships between tarot cards in sequence how adjacent cards modify each other")
	return queries
}
