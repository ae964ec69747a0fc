// Package prompts turns pipeline state into model inputs. Assembly is pure
// string work; nothing here calls a model or touches storage.
package prompts

import (
	"fmt"
	"strings"
)

const questionSystem = "You are a tarot consultation analyst. You classify querent " +
	"questions precisely and answer only with a single JSON object, no prose."

// QuestionAnalysisFull is the template used when no spread was user-chosen:
// the model also recommends a spread.
func QuestionAnalysisFull(question string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Analyze the following tarot question and respond with a JSON object ")
	b.WriteString("containing exactly these fields:\n\n")
	b.WriteString(`- "question_domain": one of "love", "career", "health", "finance", "personal_growth", "general"` + "\n")
	b.WriteString(`- "complexity": one of "simple", "moderate", "complex"` + "\n")
	b.WriteString(`- "question_type": one of "specific_event", "relationship", "choice", "general"` + "\n")
	b.WriteString(`- "recommended_spread": one of "three_card", "celtic_cross", "work_cycle", "other"` + "\n")
	b.WriteString(`- "reasoning": a short explanation of the classification and spread choice` + "\n")
	b.WriteString(`- "question_summary": one sentence restating the heart of the question` + "\n\n")
	b.WriteString("Guidance: simple single-topic questions suit three_card; layered situations ")
	b.WriteString("with many influences suit celtic_cross; questions about a recurring work or ")
	b.WriteString("project cycle suit work_cycle.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	return questionSystem, b.String()
}

// QuestionAnalysisSimplified is used when the querent already chose a spread,
// so no complexity grading or spread recommendation is requested.
func QuestionAnalysisSimplified(question, chosenSpread string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Analyze the following tarot question and respond with a JSON object ")
	b.WriteString("containing exactly these fields:\n\n")
	b.WriteString(`- "question_domain": one of "love", "career", "health", "finance", "personal_growth", "general"` + "\n")
	b.WriteString(`- "question_type": one of "specific_event", "relationship", "choice", "general"` + "\n")
	b.WriteString(`- "reasoning": a short explanation of the classification` + "\n")
	b.WriteString(`- "question_summary": one sentence restating the heart of the question` + "\n\n")
	fmt.Fprintf(&b, "The querent has already chosen the %s spread.\n\n", chosenSpread)
	fmt.Fprintf(&b, "Question: %s\n", question)
	return questionSystem, b.String()
}
