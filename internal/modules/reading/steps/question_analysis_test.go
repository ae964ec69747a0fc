package steps

import (
	"context"
	"fmt"
	"testing"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type scriptedModel struct {
	jsonResponse map[string]any
	jsonErr      error
	lastPrompt   string
}

func (m *scriptedModel) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (m *scriptedModel) Chat(context.Context, services.ChatRequest) (string, error) {
	return "", fmt.Errorf("not scripted")
}

func (m *scriptedModel) ChatJSON(_ context.Context, req services.ChatRequest) (map[string]any, string, error) {
	m.lastPrompt = req.Prompt
	return m.jsonResponse, "", m.jsonErr
}

func (m *scriptedModel) ChatStream(context.Context, services.ChatRequest) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errc := make(chan error, 1)
	close(chunks)
	close(errc)
	return chunks, errc
}

func (m *scriptedModel) ResolveModel(pref string) string { return pref }

func TestAnalyzeAutoSelectsRecommendedSpread(t *testing.T) {
	model := &scriptedModel{jsonResponse: map[string]any{
		"question_domain":    "love",
		"complexity":         "complex",
		"question_type":      "relationship",
		"recommended_spread": "celtic_cross",
		"reasoning":          "layered situation",
		"question_summary":   "a relationship question",
	}}
	a := NewQuestionAnalyzer(model, "gpt4omini", testLogger(t))

	out, _, err := a.Analyze(context.Background(), "Will we get back together?", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.QuestionDomain != "love" || out.QuestionType != "relationship" {
		t.Fatalf("classification: %+v", out)
	}
	if !out.AutoSelectedSpread || out.SpreadType != types.SpreadCelticCross {
		t.Fatalf("spread decision: %+v", out)
	}
}

func TestAnalyzeUserChosenSpreadSkipsRecommendation(t *testing.T) {
	model := &scriptedModel{jsonResponse: map[string]any{
		"question_domain":  "career",
		"question_type":    "choice",
		"reasoning":        "job decision",
		"question_summary": "a career choice",
	}}
	a := NewQuestionAnalyzer(model, "gpt4omini", testLogger(t))

	out, _, err := a.Analyze(context.Background(), "Should I take the offer?", "three_card")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.AutoSelectedSpread {
		t.Fatal("user-chosen spread must not be marked auto-selected")
	}
	if out.SpreadType != types.SpreadThreeCard {
		t.Fatalf("spread: %s", out.SpreadType)
	}
	if out.Complexity != "" || out.RecommendedSpread != "" {
		t.Fatalf("simplified path should not grade complexity: %+v", out)
	}
}

func TestAnalyzeDefaultsUnknownEnums(t *testing.T) {
	model := &scriptedModel{jsonResponse: map[string]any{
		"question_domain":    "astrology",
		"complexity":         "extreme",
		"question_type":      "mystery",
		"recommended_spread": "grand_tableau",
		"reasoning":          "",
		"question_summary":   "",
	}}
	a := NewQuestionAnalyzer(model, "gpt4omini", testLogger(t))

	out, _, err := a.Analyze(context.Background(), "What do the stars say?", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.QuestionDomain != "general" {
		t.Fatalf("domain default: %s", out.QuestionDomain)
	}
	if out.Complexity != "moderate" {
		t.Fatalf("complexity default: %s", out.Complexity)
	}
	if out.QuestionType != "general" {
		t.Fatalf("type default: %s", out.QuestionType)
	}
	if out.RecommendedSpread != "three_card" || out.SpreadType != types.SpreadThreeCard {
		t.Fatalf("spread default: %+v", out)
	}
}

func TestAnalyzeWorkCycleRecommendationDealsThreeCard(t *testing.T) {
	model := &scriptedModel{jsonResponse: map[string]any{
		"question_domain":    "career",
		"complexity":         "moderate",
		"question_type":      "general",
		"recommended_spread": "work_cycle",
		"reasoning":          "recurring project rhythm",
		"question_summary":   "work cycle question",
	}}
	a := NewQuestionAnalyzer(model, "gpt4omini", testLogger(t))

	out, _, err := a.Analyze(context.Background(), "How is my project cycle going?", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.RecommendedSpread != "work_cycle" {
		t.Fatalf("recommendation should survive: %s", out.RecommendedSpread)
	}
	if out.SpreadType != types.SpreadThreeCard {
		t.Fatalf("work_cycle has no layout; expected three_card, got %s", out.SpreadType)
	}
}

func TestAnalyzePropagatesModelFailure(t *testing.T) {
	model := &scriptedModel{jsonErr: fmt.Errorf("model returned unparseable JSON")}
	a := NewQuestionAnalyzer(model, "gpt4omini", testLogger(t))
	if _, _, err := a.Analyze(context.Background(), "question", ""); err == nil {
		t.Fatal("expected error")
	}
}
