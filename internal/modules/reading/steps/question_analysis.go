// Package steps holds the individual stages of the reading pipeline. Each
// step takes its dependencies explicitly and returns plain values; the
// orchestrator owns sequencing, persistence, and event emission.
package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/prompts"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

const questionAnalysisTemperature = 0.3

// QuestionAnalysis is the classified question plus the final spread decision.
type QuestionAnalysis struct {
	QuestionDomain     string           `json:"question_domain"`
	Complexity         string           `json:"complexity,omitempty"`
	QuestionType       string           `json:"question_type"`
	RecommendedSpread  string           `json:"recommended_spread,omitempty"`
	Reasoning          string           `json:"reasoning"`
	QuestionSummary    string           `json:"question_summary"`
	AutoSelectedSpread bool             `json:"auto_selected_spread"`
	SpreadType         types.SpreadType `json:"spread_type"`
}

// QuestionAnalyzer classifies the question with one low-temperature model
// call and decides the spread: the user's choice when given and not "auto",
// else the model's recommendation, else three_card.
type QuestionAnalyzer struct {
	model services.ModelClient
	log   *logger.Logger
	pref  string
}

func NewQuestionAnalyzer(model services.ModelClient, modelPreference string, log *logger.Logger) *QuestionAnalyzer {
	return &QuestionAnalyzer{
		model: model,
		log:   log.With("step", "question_analysis"),
		pref:  modelPreference,
	}
}

func (a *QuestionAnalyzer) Analyze(ctx context.Context, question, userSelectedSpread string) (QuestionAnalysis, string, error) {
	userChose := userSelectedSpread != "" && !strings.EqualFold(userSelectedSpread, "auto")

	var system, prompt string
	if userChose {
		system, prompt = prompts.QuestionAnalysisSimplified(question, userSelectedSpread)
	} else {
		system, prompt = prompts.QuestionAnalysisFull(question)
	}

	obj, _, err := a.model.ChatJSON(ctx, services.ChatRequest{
		System:      system,
		Prompt:      prompt,
		Model:       a.pref,
		Temperature: questionAnalysisTemperature,
	})
	if err != nil {
		return QuestionAnalysis{}, prompt, fmt.Errorf("question analysis: %w", err)
	}

	out := QuestionAnalysis{
		QuestionDomain:  a.validated(obj, "question_domain", []string{"love", "career", "health", "finance", "personal_growth", "general"}, "general"),
		QuestionType:    a.validated(obj, "question_type", []string{"specific_event", "relationship", "choice", "general"}, "general"),
		Reasoning:       stringField(obj, "reasoning"),
		QuestionSummary: stringField(obj, "question_summary"),
	}

	if userChose {
		out.SpreadType = types.SpreadType(strings.ToLower(userSelectedSpread))
		out.AutoSelectedSpread = false
		return out, prompt, nil
	}

	out.Complexity = a.validated(obj, "complexity", []string{"simple", "moderate", "complex"}, "moderate")
	out.RecommendedSpread = a.validated(obj, "recommended_spread", []string{"three_card", "celtic_cross", "work_cycle", "other"}, "three_card")
	out.AutoSelectedSpread = true

	switch out.RecommendedSpread {
	case "celtic_cross":
		out.SpreadType = types.SpreadCelticCross
	case "three_card":
		out.SpreadType = types.SpreadThreeCard
	default:
		// work_cycle and "other" have no dealable layout.
		out.SpreadType = types.SpreadThreeCard
	}
	return out, prompt, nil
}

func (a *QuestionAnalyzer) validated(obj map[string]any, field string, allowed []string, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(stringField(obj, field)))
	for _, ok := range allowed {
		if v == ok {
			return v
		}
	}
	a.log.Warn("Unexpected enum value, using default",
		"field", field, "value", v, "default", fallback)
	return fallback
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
