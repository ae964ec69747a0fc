// Package reading drives the eight-stage pipeline that turns a question into
// a streamed, literature-grounded tarot interpretation.
package reading

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/prompts"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/steps"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/sse"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

// Request is one reading invocation as received from the transport layer.
type Request struct {
	Question             string                     `json:"question"`
	UserID               *uuid.UUID                 `json:"user_id,omitempty"`
	UserSelectedSpread   string                     `json:"user_selected_spread,omitempty"`
	UserProfile          *tarot.QuerentProfile      `json:"user_profile,omitempty"`
	SignificatorPriority tarot.SignificatorPriority `json:"significator_priority,omitempty"`
	PreferredSource      string                     `json:"preferred_source,omitempty"`
	SourcePage           string                     `json:"source_page,omitempty"`
	ModelPreference      string                     `json:"model_preference,omitempty"`
	Language             string                     `json:"language,omitempty"`
}

// Result is the aggregate response of the non-streamed variant.
type Result struct {
	Reading *types.Reading       `json:"reading"`
	Cards   []*types.ReadingCard `json:"cards"`
}

type Service interface {
	// Stream runs the pipeline and emits events in pipeline order. The
	// channel closes after the terminal complete or error event.
	Stream(ctx context.Context, req Request) <-chan sse.Event
	// Create runs the identical pipeline but awaits every stage and returns
	// one aggregate response.
	Create(ctx context.Context, req Request) (*Result, error)
	Get(ctx context.Context, id uuid.UUID) (*Result, error)
}

type Config struct {
	DefaultSource   string
	DefaultLanguage string
	// PatternLanguage is the language of the structural analysis text fed to
	// the interpretation prompt. Only English renderings exist today.
	PatternLanguage string
	AnalysisModel   string
	ImageryModel    string
	InterpretModel  string
}

type service struct {
	log          *logger.Logger
	cfg          Config
	readings     repos.ReadingRepo
	readingCards repos.ReadingCardRepo
	deck         services.DeckService
	audit        services.AuditService
	analyzer     *steps.QuestionAnalyzer
	retriever    *steps.Retriever
	imagery      *steps.ImageryGenerator
	interpreter  *steps.Interpreter
	bus          *sse.Bus

	// newRNG is swapped in tests to pin the deal.
	newRNG func() *rand.Rand
}

func NewService(
	cfg Config,
	readingRepo repos.ReadingRepo,
	readingCardRepo repos.ReadingCardRepo,
	deck services.DeckService,
	audit services.AuditService,
	model services.ModelClient,
	index services.RagIndexService,
	bus *sse.Bus,
	log *logger.Logger,
) Service {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "waite"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "zh"
	}
	if cfg.PatternLanguage == "" {
		cfg.PatternLanguage = "en"
	}
	serviceLog := log.With("service", "ReadingService")
	if cfg.PatternLanguage != "en" {
		serviceLog.Warn("Pattern analysis renders in English only", "pattern_language", cfg.PatternLanguage)
	}
	return &service{
		log:          serviceLog,
		cfg:          cfg,
		readings:     readingRepo,
		readingCards: readingCardRepo,
		deck:         deck,
		audit:        audit,
		analyzer:     steps.NewQuestionAnalyzer(model, cfg.AnalysisModel, serviceLog),
		retriever:    steps.NewRetriever(index, serviceLog),
		imagery:      steps.NewImageryGenerator(model, cfg.ImageryModel, serviceLog),
		interpreter:  steps.NewInterpreter(model, cfg.InterpretModel, serviceLog),
		bus:          bus,
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

func (s *service) Stream(ctx context.Context, req Request) <-chan sse.Event {
	events := make(chan sse.Event, 32)
	go func() {
		defer close(events)
		emit := func(ev sse.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		s.run(ctx, req, emit)
	}()
	return events
}

func (s *service) Create(ctx context.Context, req Request) (*Result, error) {
	var readingID uuid.UUID
	var failure string
	for ev := range s.Stream(ctx, req) {
		switch ev.Type() {
		case sse.TypeComplete:
			if id, ok := ev["reading_id"].(string); ok {
				readingID, _ = uuid.Parse(id)
			}
		case sse.TypeError:
			failure, _ = ev["error"].(string)
			if id, ok := ev["reading_id"].(string); ok {
				readingID, _ = uuid.Parse(id)
			}
		case sse.TypeProgress:
			if ev.Step() == sse.StepStarted {
				if id, ok := ev["reading_id"].(string); ok {
					readingID, _ = uuid.Parse(id)
				}
			}
		}
	}
	if failure != "" {
		return nil, fmt.Errorf("reading failed: %s", failure)
	}
	if readingID == uuid.Nil {
		return nil, fmt.Errorf("reading produced no result")
	}
	return s.Get(ctx, readingID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	row, err := s.readings.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	cards, err := s.readingCards.GetByReadingID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &Result{Reading: row, Cards: cards}, nil
}

// run executes the full pipeline. Any uncaught error lands in fail(), which
// emits one error event and marks the reading row; partial output already
// flushed to the client stays flushed.
func (s *service) run(ctx context.Context, req Request, emit func(sse.Event)) {
	startedAt := time.Now()
	log := s.log

	reading := &types.Reading{
		ID:         uuid.New(),
		Question:   req.Question,
		UserID:     req.UserID,
		Status:     types.ReadingStatusPending,
		SourcePage: req.SourcePage,
	}
	readingID := reading.ID.String()
	log = log.With("reading_id", readingID)

	send := func(ev sse.Event) {
		emit(ev)
		s.bus.Publish(ctx, readingID, ev)
	}

	fail := func(stage string, err error) {
		log.Error("Reading pipeline failed", "stage", stage, "error", err)
		send(sse.Error(err.Error(), readingID))
		if uErr := s.readings.UpdateFields(context.WithoutCancel(ctx), nil, reading.ID, map[string]any{
			"status":         types.ReadingStatusError,
			"current_step":   stage,
			"interpretation": err.Error(),
		}); uErr != nil {
			log.Error("Failed to mark reading as errored", "error", uErr)
		}
	}

	if req.Question == "" {
		reading.Question = "(empty question)"
	}

	if err := s.readings.Create(ctx, nil, reading); err != nil {
		log.Error("Failed to create reading row", "error", err)
		send(sse.Error("failed to create reading", ""))
		return
	}
	send(sse.Progress(sse.StepStarted, "Reading started", map[string]any{
		"reading_id": readingID,
	}))

	// Stage 1: question analysis.
	stageStart := time.Now()
	analysis, qPrompt, err := s.analyzer.Analyze(ctx, req.Question, req.UserSelectedSpread)
	temp := 0.3
	s.audit.Record(ctx, reading.ID, services.StepRecord{
		StepName:      "question_analysis",
		StepOrder:     1,
		Input:         map[string]any{"question": req.Question, "user_selected_spread": req.UserSelectedSpread},
		Output:        analysis,
		PromptType:    "question_analysis",
		PromptContent: qPrompt,
		ModelUsed:     s.cfg.AnalysisModel,
		Temperature:   &temp,
		StartedAt:     stageStart,
		Err:           err,
	})
	if err != nil {
		fail("question_analysis", err)
		return
	}

	now := time.Now()
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
		"spread_type":          analysis.SpreadType,
		"question_domain":      analysis.QuestionDomain,
		"question_complexity":  analysis.Complexity,
		"question_summary":     analysis.QuestionSummary,
		"auto_selected_spread": analysis.AutoSelectedSpread,
		"spread_reason":        analysis.Reasoning,
		"current_step":         "question_analysis",
		"question_analyzed_at": now,
	}); err != nil {
		fail("question_analysis", err)
		return
	}
	send(sse.Progress(sse.StepQuestionAnalysis, "Question analyzed", map[string]any{
		"question_analysis": analysis,
		"spread_type":       analysis.SpreadType,
	}))

	// Stages 2-3: deck, significator, deal.
	source := req.PreferredSource
	if source == "" {
		source = s.cfg.DefaultSource
	}
	deck, err := s.deck.LoadDeck(ctx, source)
	if err != nil {
		fail("card_selection", err)
		return
	}

	var significator *types.Card
	var significatorPayload map[string]any
	switch {
	case tarot.UsesSignificator(analysis.SpreadType) && req.UserProfile == nil:
		// Without a profile the Celtic Cross deals from the full deck.
		log.Warn("No querent profile provided, dealing without a significator")
	case tarot.UsesSignificator(analysis.SpreadType):
		choice := tarot.DeriveSignificator(*req.UserProfile, analysis.QuestionDomain, req.SignificatorPriority)
		significator, err = tarot.ResolveSignificator(deck, choice)
		if err != nil {
			fail("card_selection", err)
			return
		}
		significatorPayload = map[string]any{
			"card_id":   significator.ID.String(),
			"card_name": significator.CardNameEN,
			"reason":    choice.Reason,
		}
		if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
			"significator_card_id":          significator.ID,
			"significator_selection_reason": choice.Reason,
		}); err != nil {
			fail("card_selection", err)
			return
		}
	}

	dealt, err := tarot.Deal(deck, analysis.SpreadType, significator, s.newRNG())
	if err != nil {
		fail("card_selection", err)
		return
	}

	cardRows := make([]*types.ReadingCard, 0, len(dealt))
	cardPayload := make([]map[string]any, 0, len(dealt))
	for _, dc := range dealt {
		cardRows = append(cardRows, &types.ReadingCard{
			ReadingID:           reading.ID,
			CardID:              dc.Card.ID,
			Position:            dc.Position,
			PositionOrder:       dc.PositionOrder,
			PositionDescription: dc.PositionDescription,
			IsReversed:          dc.IsReversed,
			CardSelectedAt:      time.Now(),
		})
		cardPayload = append(cardPayload, map[string]any{
			"card_id":        dc.Card.ID.String(),
			"card_name":      dc.Card.CardNameEN,
			"card_name_cn":   dc.Card.CardNameCN,
			"position":       dc.Position,
			"position_order": dc.PositionOrder,
			"is_reversed":    dc.IsReversed,
			"image_url":      dc.Card.ImageURL,
		})
	}
	if err := s.readingCards.Create(ctx, nil, cardRows); err != nil {
		fail("card_selection", err)
		return
	}
	now = time.Now()
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
		"status":            types.ReadingStatusCardSelected,
		"current_step":      "card_selection",
		"cards_selected_at": now,
	}); err != nil {
		fail("card_selection", err)
		return
	}
	fields := map[string]any{"cards": cardPayload}
	if significatorPayload != nil {
		fields["significator"] = significatorPayload
	}
	send(sse.Progress(sse.StepCardsSelected, "Cards selected", fields))

	// Stage 4: pattern analysis, pure and immediate.
	stageStart = time.Now()
	patterns := tarot.AnalyzePatterns(dealt, analysis.SpreadType, analysis.QuestionDomain)
	s.audit.Record(ctx, reading.ID, services.StepRecord{
		StepName:  "pattern_analysis",
		StepOrder: 2,
		Input:     map[string]any{"spread_type": analysis.SpreadType, "card_count": len(dealt)},
		Output:    patterns,
		StartedAt: stageStart,
	})
	patternJSON, _ := json.Marshal(patterns)
	now = time.Now()
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
		"spread_pattern_analysis": datatypes.JSON(patternJSON),
		"current_step":            "pattern_analysis",
		"pattern_analyzed_at":     now,
	}); err != nil {
		fail("pattern_analysis", err)
		return
	}
	send(sse.Progress(sse.StepPatternAnalyzed, "Spread patterns analyzed", map[string]any{
		"pattern_analysis": patterns,
	}))

	// Stage 5: per-card retrieval fan-out with progress.
	stageStart = time.Now()
	retrieval, err := s.retriever.Retrieve(ctx, dealt, analysis.SpreadType, analysis.QuestionDomain, patterns,
		func(p steps.CardProgress) {
			send(sse.Progress(sse.StepRagCardProgress, "Retrieved references for "+p.CardName, map[string]any{
				"progress":        p.Progress,
				"completed_cards": p.CompletedCards,
				"total_cards":     p.TotalCards,
				"card_id":         p.CardID,
				"card_name":       p.CardName,
			}))
		},
		func(completed, total int) {
			send(sse.Progress(sse.StepRagFirstCardReady, "First card references ready", map[string]any{
				"completed_cards": completed,
				"total_cards":     total,
			}))
		},
	)
	if err != nil {
		fail("rag_retrieval", err)
		return
	}
	s.audit.Record(ctx, reading.ID, services.StepRecord{
		StepName:   "rag_retrieval",
		StepOrder:  3,
		Input:      map[string]any{"card_count": len(dealt)},
		Output:     map[string]any{"cards_retrieved": len(retrieval.Cards)},
		RagQueries: retrieval.Queries,
		StartedAt:  stageStart,
	})
	now = time.Now()
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
		"current_step":     "rag_retrieval",
		"rag_retrieved_at": now,
	}); err != nil {
		fail("rag_retrieval", err)
		return
	}
	send(sse.Progress(sse.StepRagRetrieved, "Reference retrieval complete", nil))

	// Stage 6: imagery streams while the spread-method and relationship
	// queries finish in the background.
	visual := make(map[string][]string, len(retrieval.Cards))
	for _, cr := range retrieval.Cards {
		visual[cr.CardID] = cr.Visual
	}
	stageStart = time.Now()
	imageryTemp := 0.7
	imageryText, imageryPrompt, err := s.imagery.Generate(ctx, dealt, analysis.QuestionDomain, visual,
		func(chunk string) {
			send(sse.ImageryChunk(chunk))
		})
	s.audit.Record(ctx, reading.ID, services.StepRecord{
		StepName:      "imagery_description",
		StepOrder:     4,
		Output:        map[string]any{"imagery_description": imageryText},
		PromptType:    "imagery",
		PromptContent: imageryPrompt,
		ModelUsed:     s.cfg.ImageryModel,
		Temperature:   &imageryTemp,
		StartedAt:     stageStart,
		Err:           err,
	})
	if err != nil {
		fail("imagery_description", err)
		return
	}
	now = time.Now()
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, map[string]any{
		"imagery_description":  imageryText,
		"current_step":         "imagery_description",
		"imagery_generated_at": now,
	}); err != nil {
		fail("imagery_description", err)
		return
	}
	send(sse.Progress(sse.StepImageryGenerated, "Imagery generated", map[string]any{
		"imagery_description": imageryText,
	}))

	// Join the background retrieval before interpreting.
	var background steps.BackgroundResult
	select {
	case background = <-retrieval.Background:
	case <-ctx.Done():
		fail("rag_retrieval", ctx.Err())
		return
	}

	// Stage 7: final interpretation.
	send(sse.Progress(sse.StepInterpretationStarted, "Interpretation started", nil))

	perCard := make([][]services.RagHit, 0, len(retrieval.Cards)+2)
	for _, cr := range retrieval.Cards {
		perCard = append(perCard, cr.Chunks)
	}
	perCard = append(perCard, background.SpreadChunks, background.RelationshipChunks)
	allChunks := steps.MergeHits(perCard...)

	language := req.Language
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	stageStart = time.Now()
	interpTemp := 0.7
	interpretation, interpPrompt, modelUsed, err := s.interpreter.Interpret(ctx, prompts.InterpretationInput{
		Question:        req.Question,
		QuestionDomain:  analysis.QuestionDomain,
		QuestionType:    analysis.QuestionType,
		QuestionSummary: analysis.QuestionSummary,
		SpreadType:      string(analysis.SpreadType),
		Cards:           dealt,
		Imagery:         imageryText,
		PatternAnalysis: patterns,
		Chunks:          allChunks,
		Language:        language,
	}, req.ModelPreference, func(chunk string) {
		send(sse.InterpretationChunk(chunk))
	})
	s.audit.Record(ctx, reading.ID, services.StepRecord{
		StepName:      "final_interpretation",
		StepOrder:     5,
		Input:         map[string]any{"chunk_count": len(allChunks), "language": language},
		Output:        map[string]any{"interpretation_length": len(interpretation)},
		PromptType:    "final_interpretation",
		PromptContent: interpPrompt,
		ModelUsed:     modelUsed,
		Temperature:   &interpTemp,
		StartedAt:     stageStart,
		Err:           err,
	})
	if err != nil {
		fail("final_interpretation", err)
		return
	}

	metadata, _ := json.Marshal(map[string]any{
		"model_used":     modelUsed,
		"chunk_count":    len(allChunks),
		"language":       language,
		"rag_query_count": len(retrieval.Queries) + len(background.Queries),
	})
	completedAt := time.Now()
	finalFields := map[string]any{
		"status":                   types.ReadingStatusCompleted,
		"current_step":             "completed",
		"interpretation":           interpretation,
		"interpretation_full_text": interpretation,
		"interpretation_metadata":  datatypes.JSON(metadata),
		"completed_at":             completedAt,
	}
	// The terminal row update retries once: losing it would strand a
	// finished reading in card_selected.
	if err := s.readings.UpdateFields(ctx, nil, reading.ID, finalFields); err != nil {
		log.Warn("Final reading update failed, retrying once",
			"error", err, "transient", repos.IsTransient(err))
		if err := s.readings.UpdateFields(context.WithoutCancel(ctx), nil, reading.ID, finalFields); err != nil {
			fail("completed", err)
			return
		}
	}

	send(sse.Complete(readingID, req.Question, string(analysis.SpreadType),
		time.Since(startedAt).Milliseconds(), "Reading complete"))
	log.Info("Reading completed",
		"spread_type", analysis.SpreadType,
		"cards", len(dealt),
		"chunks", len(allChunks),
		"total_ms", time.Since(startedAt).Milliseconds(),
	)
}
