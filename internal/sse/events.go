package sse

import "encoding/json"

// Event is one wire object on the reading stream. Every event carries a
// "type" field; progress events additionally carry a "step" field.
type Event map[string]any

const (
	TypeProgress       = "progress"
	TypeImageryChunk   = "imagery_chunk"
	TypeInterpretation = "interpretation"
	TypeComplete       = "complete"
	TypeError          = "error"
)

const (
	StepStarted               = "started"
	StepQuestionAnalysis      = "question_analysis"
	StepCardsSelected         = "cards_selected"
	StepPatternAnalyzed       = "pattern_analyzed"
	StepRagCardProgress       = "rag_card_progress"
	StepRagFirstCardReady     = "rag_first_card_ready"
	StepRagRetrieved          = "rag_retrieved"
	StepImageryGenerated      = "imagery_generated"
	StepInterpretationStarted = "interpretation_started"
)

// Progress builds a progress event for the named step. Extra payload fields
// are merged flat into the event object.
func Progress(step, message string, fields map[string]any) Event {
	ev := Event{"type": TypeProgress, "step": step, "message": message}
	for k, v := range fields {
		ev[k] = v
	}
	return ev
}

func ImageryChunk(text string) Event {
	return Event{"type": TypeImageryChunk, "text": text}
}

func InterpretationChunk(text string) Event {
	return Event{"type": TypeInterpretation, "text": text}
}

func Complete(readingID, question, spreadType string, totalTimeMS int64, message string) Event {
	return Event{
		"type":          TypeComplete,
		"reading_id":    readingID,
		"question":      question,
		"spread_type":   spreadType,
		"total_time_ms": totalTimeMS,
		"message":       message,
	}
}

func Error(message, readingID string) Event {
	ev := Event{"type": TypeError, "error": message}
	if readingID != "" {
		ev["reading_id"] = readingID
	}
	return ev
}

func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

func (e Event) Step() string {
	s, _ := e["step"].(string)
	return s
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(e))
}
