package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
)

const (
	interpretationMaxChunks    = 50
	interpretationChunkMaxLen  = 500
	interpretationLangChinese  = "zh"
	interpretationLangFallback = "en"
)

// InterpretationInput is everything the final prompt draws on.
type InterpretationInput struct {
	Question        string
	QuestionDomain  string
	QuestionType    string
	QuestionSummary string
	SpreadType      string
	Cards           []tarot.DealtCard
	Imagery         string
	PatternAnalysis tarot.SpreadPatternAnalysis
	Chunks          []services.RagHit
	Language        string
}

// Interpretation assembles the single large prompt for the final streamed
// reading.
func Interpretation(in InterpretationInput) (system, prompt string) {
	language := "English"
	if strings.EqualFold(in.Language, interpretationLangChinese) {
		language = "Simplified Chinese"
	}
	system = fmt.Sprintf(
		"You are an experienced tarot reader. You weave card meanings, spread structure, "+
			"and the provided reference passages into one coherent, compassionate reading. "+
			"Write the entire reading in %s.", language)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", in.Question)
	fmt.Fprintf(&b, "Domain: %s | Type: %s\n", in.QuestionDomain, in.QuestionType)
	if in.QuestionSummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", in.QuestionSummary)
	}
	fmt.Fprintf(&b, "\nSpread: %s\n", in.SpreadType)
	for _, dc := range in.Cards {
		if dc.Card == nil {
			continue
		}
		orientation := "upright"
		if dc.IsReversed {
			orientation = "reversed"
		}
		fmt.Fprintf(&b, "%d. %s (%s) in position %q: %s\n",
			dc.PositionOrder, dc.Card.CardNameEN, orientation, dc.Position, dc.PositionDescription)
	}

	if in.Imagery != "" {
		fmt.Fprintf(&b, "\nImagery of the spread:\n%s\n", in.Imagery)
	}

	if raw, err := json.Marshal(in.PatternAnalysis); err == nil {
		fmt.Fprintf(&b, "\nStructural analysis of the spread:\n%s\n", string(raw))
	}

	chunks := in.Chunks
	if len(chunks) > interpretationMaxChunks {
		chunks = chunks[:interpretationMaxChunks]
	}
	if len(chunks) > 0 {
		b.WriteString("\nReference passages from tarot literature:\n")
		for i, h := range chunks {
			fmt.Fprintf(&b, "[%d] (source: %s, similarity: %.2f) %s\n",
				i+1, h.Source, h.Similarity, Truncate(h.Text, interpretationChunkMaxLen))
		}
	}

	b.WriteString("\nDeliver the full reading: open with the overall picture, interpret each ")
	b.WriteString("position in order, connect the cards to the structural analysis, and close ")
	b.WriteString("with concrete guidance for the querent's question.")
	return system, b.String()
}
