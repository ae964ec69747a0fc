package reading

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/rag"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/sse"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
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

// ---- in-memory fakes ----

type memReadingRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*types.Reading
	statuses []types.ReadingStatus
}

func newMemReadingRepo() *memReadingRepo {
	return &memReadingRepo{rows: map[uuid.UUID]*types.Reading{}}
}

func (r *memReadingRepo) Create(_ context.Context, _ *gorm.DB, reading *types.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reading
	r.rows[reading.ID] = &cp
	r.statuses = append(r.statuses, reading.Status)
	return nil
}

func (r *memReadingRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *memReadingRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("reading %s not found", id)
	}
	if v, ok := fields["status"]; ok {
		row.Status = v.(types.ReadingStatus)
		r.statuses = append(r.statuses, row.Status)
	}
	if v, ok := fields["current_step"]; ok {
		row.CurrentStep = v.(string)
	}
	if v, ok := fields["interpretation"]; ok {
		row.Interpretation = v.(string)
	}
	if v, ok := fields["interpretation_full_text"]; ok {
		row.InterpretationFullText = v.(string)
	}
	if v, ok := fields["imagery_description"]; ok {
		row.ImageryDescription = v.(string)
	}
	if v, ok := fields["spread_type"]; ok {
		row.SpreadType = v.(types.SpreadType)
	}
	return nil
}

func (r *memReadingRepo) ListByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID, _ int) ([]*types.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Reading
	for _, row := range r.rows {
		if row.UserID != nil && *row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

type memReadingCardRepo struct {
	mu   sync.Mutex
	rows []*types.ReadingCard
}

func (r *memReadingCardRepo) Create(_ context.Context, _ *gorm.DB, cards []*types.ReadingCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, cards...)
	return nil
}

func (r *memReadingCardRepo) GetByReadingID(_ context.Context, _ *gorm.DB, readingID uuid.UUID) ([]*types.ReadingCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReadingCard
	for _, row := range r.rows {
		if row.ReadingID == readingID {
			out = append(out, row)
		}
	}
	return out, nil
}

type memDeck struct {
	deck []*types.Card
	err  error
}

func (d *memDeck) LoadDeck(context.Context, string) ([]*types.Card, error) {
	return d.deck, d.err
}
func (d *memDeck) FindCard(context.Context, string, string) (*types.Card, error) { return nil, nil }
func (d *memDeck) Sources(context.Context) ([]string, error)                     { return []string{"waite"}, nil }

type memAudit struct {
	mu    sync.Mutex
	steps []string
}

func (a *memAudit) Record(_ context.Context, _ uuid.UUID, rec services.StepRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steps = append(a.steps, rec.StepName)
}

func (a *memAudit) History(context.Context, uuid.UUID) ([]*types.ReadingProcessData, error) {
	return nil, nil
}

type pipelineModel struct {
	analysisJSON map[string]any
}

func (m *pipelineModel) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (m *pipelineModel) Chat(context.Context, services.ChatRequest) (string, error) {
	return "", fmt.Errorf("not scripted")
}

func (m *pipelineModel) ChatJSON(context.Context, services.ChatRequest) (map[string]any, string, error) {
	return m.analysisJSON, "", nil
}

func (m *pipelineModel) ChatStream(context.Context, services.ChatRequest) (<-chan string, <-chan error) {
	chunks := make(chan string, 3)
	errc := make(chan error, 1)
	chunks <- "streamed "
	chunks <- "text"
	close(chunks)
	close(errc)
	return chunks, errc
}

func (m *pipelineModel) ResolveModel(pref string) string { return pref }

type memIndex struct{}

func (memIndex) IngestDocument(context.Context, string, string, string, map[string]any) (int, error) {
	return 0, nil
}
func (memIndex) UpsertChunks(context.Context, string, []rag.Chunk, map[string]any) error { return nil }
func (memIndex) Search(_ context.Context, query string, _ int, _ float64) ([]services.RagHit, error) {
	return []services.RagHit{{ChunkID: "c:" + query, Source: "waite", Text: "ref " + query, Similarity: 0.8}}, nil
}
func (memIndex) CountBySource(context.Context, string) (int64, error) { return 0, nil }

// ---- deck fixture ----

var courtRanks = []string{
	"Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

func fullDeck() []*types.Card {
	deck := make([]*types.Card, 0, 78)
	for i := 0; i < 22; i++ {
		deck = append(deck, &types.Card{
			ID:         uuid.New(),
			Source:     "waite",
			CardNameEN: fmt.Sprintf("Major %d", i),
			CardNumber: i,
			Suit:       types.SuitMajor,
			Arcana:     types.ArcanaMajor,
		})
	}
	suitTitles := map[types.Suit]string{
		types.SuitWands: "Wands", types.SuitCups: "Cups",
		types.SuitSwords: "Swords", types.SuitPentacles: "Pentacles",
	}
	for _, suit := range []types.Suit{types.SuitWands, types.SuitCups, types.SuitSwords, types.SuitPentacles} {
		for num, rank := range courtRanks {
			deck = append(deck, &types.Card{
				ID:         uuid.New(),
				Source:     "waite",
				CardNameEN: fmt.Sprintf("%s of %s", rank, suitTitles[suit]),
				CardNumber: num + 1,
				Suit:       suit,
				Arcana:     types.ArcanaMinor,
			})
		}
	}
	return deck
}

func newTestService(t *testing.T, readings *memReadingRepo, cards *memReadingCardRepo, deck *memDeck, audit *memAudit, model services.ModelClient) *service {
	t.Helper()
	svc := NewService(
		Config{DefaultSource: "waite", DefaultLanguage: "en"},
		readings, cards, deck, audit, model, memIndex{}, nil, testLogger(t),
	).(*service)
	svc.newRNG = func() *rand.Rand { return rand.New(rand.NewSource(7)) }
	return svc
}

func threeCardAnalysisJSON() map[string]any {
	return map[string]any{
		"question_domain":    "general",
		"complexity":         "simple",
		"question_type":      "general",
		"recommended_spread": "three_card",
		"reasoning":          "single topic",
		"question_summary":   "a general question",
	}
}

// ---- tests ----

func TestStreamEmitsEventsInPipelineOrder(t *testing.T) {
	readings := newMemReadingRepo()
	cards := &memReadingCardRepo{}
	audit := &memAudit{}
	svc := newTestService(t, readings, cards, &memDeck{deck: fullDeck()}, audit,
		&pipelineModel{analysisJSON: threeCardAnalysisJSON()})

	var events []sse.Event
	for ev := range svc.Stream(context.Background(), Request{Question: "How is my week looking?"}) {
		events = append(events, ev)
	}

	var order []string
	counts := map[string]int{}
	for _, ev := range events {
		key := ev.Type()
		if key == sse.TypeProgress {
			key = ev.Step()
		}
		counts[key]++
		if counts[key] == 1 {
			order = append(order, key)
		}
	}

	wantSingletons := []string{
		sse.StepStarted, sse.StepQuestionAnalysis, sse.StepCardsSelected,
		sse.StepPatternAnalyzed, sse.StepRagFirstCardReady, sse.StepRagRetrieved,
		sse.StepImageryGenerated, sse.StepInterpretationStarted, sse.TypeComplete,
	}
	for _, name := range wantSingletons {
		if counts[name] != 1 {
			t.Fatalf("event %s: expected exactly 1, got %d (all: %v)", name, counts[name], counts)
		}
	}
	if counts[sse.StepRagCardProgress] < 1 {
		t.Fatal("expected at least one rag_card_progress event")
	}
	if counts[sse.TypeImageryChunk] < 1 {
		t.Fatal("expected at least one imagery_chunk event")
	}
	if counts[sse.TypeInterpretation] < 1 {
		t.Fatal("expected at least one interpretation event")
	}
	if counts[sse.TypeError] != 0 {
		t.Fatalf("unexpected error event: %v", events)
	}

	// The singletons must appear in pipeline order among first occurrences.
	idx := map[string]int{}
	for i, name := range order {
		idx[name] = i
	}
	for i := 1; i < len(wantSingletons); i++ {
		prev, cur := wantSingletons[i-1], wantSingletons[i]
		if idx[prev] >= idx[cur] {
			t.Fatalf("%s should precede %s (order: %v)", prev, cur, order)
		}
	}
}

func TestStreamPersistsCompletedReading(t *testing.T) {
	readings := newMemReadingRepo()
	cards := &memReadingCardRepo{}
	audit := &memAudit{}
	svc := newTestService(t, readings, cards, &memDeck{deck: fullDeck()}, audit,
		&pipelineModel{analysisJSON: threeCardAnalysisJSON()})

	var readingID uuid.UUID
	for ev := range svc.Stream(context.Background(), Request{Question: "How is my week looking?"}) {
		if ev.Type() == sse.TypeComplete {
			readingID, _ = uuid.Parse(ev["reading_id"].(string))
		}
	}
	if readingID == uuid.Nil {
		t.Fatal("no complete event")
	}

	row, err := readings.GetByID(context.Background(), nil, readingID)
	if err != nil || row == nil {
		t.Fatalf("reading row: %v %v", row, err)
	}
	if row.Status != types.ReadingStatusCompleted {
		t.Fatalf("status: %s", row.Status)
	}
	if row.InterpretationFullText == "" {
		t.Fatal("interpretation_full_text empty")
	}
	if row.SpreadType != types.SpreadThreeCard {
		t.Fatalf("spread: %s", row.SpreadType)
	}

	dealt, _ := cards.GetByReadingID(context.Background(), nil, readingID)
	if len(dealt) != 3 {
		t.Fatalf("expected 3 persisted cards, got %d", len(dealt))
	}

	// Status lifecycle: pending -> card_selected -> completed.
	want := []types.ReadingStatus{
		types.ReadingStatusPending, types.ReadingStatusCardSelected, types.ReadingStatusCompleted,
	}
	if len(readings.statuses) != len(want) {
		t.Fatalf("status transitions: %v", readings.statuses)
	}
	for i := range want {
		if readings.statuses[i] != want[i] {
			t.Fatalf("transition %d: got %s, want %s", i, readings.statuses[i], want[i])
		}
	}

	wantSteps := []string{"question_analysis", "pattern_analysis", "rag_retrieval", "imagery_description", "final_interpretation"}
	if len(audit.steps) != len(wantSteps) {
		t.Fatalf("audit steps: %v", audit.steps)
	}
	for i := range wantSteps {
		if audit.steps[i] != wantSteps[i] {
			t.Fatalf("audit step %d: got %s, want %s", i, audit.steps[i], wantSteps[i])
		}
	}
}

func TestStreamCelticCrossUsesSignificator(t *testing.T) {
	readings := newMemReadingRepo()
	cards := &memReadingCardRepo{}
	deck := fullDeck()
	svc := newTestService(t, readings, cards, &memDeck{deck: deck}, &memAudit{},
		&pipelineModel{analysisJSON: map[string]any{
			"question_domain":  "general",
			"question_type":    "general",
			"reasoning":        "user chose the spread",
			"question_summary": "a general question",
		}})

	age := 28
	gender := tarot.GenderMale
	var readingID uuid.UUID
	var significatorName string
	for ev := range svc.Stream(context.Background(), Request{
		Question:           "What is happening around me?",
		UserSelectedSpread: "celtic_cross",
		UserProfile:        &tarot.QuerentProfile{Age: &age, Gender: &gender},
	}) {
		switch {
		case ev.Type() == sse.TypeComplete:
			readingID, _ = uuid.Parse(ev["reading_id"].(string))
		case ev.Step() == sse.StepCardsSelected:
			if sig, ok := ev["significator"].(map[string]any); ok {
				significatorName, _ = sig["card_name"].(string)
			}
		case ev.Type() == sse.TypeError:
			t.Fatalf("error event: %v", ev)
		}
	}

	if significatorName != "King of Wands" {
		t.Fatalf("significator: %q", significatorName)
	}

	dealt, _ := cards.GetByReadingID(context.Background(), nil, readingID)
	if len(dealt) != 10 {
		t.Fatalf("expected 10 cards, got %d", len(dealt))
	}
	var sigID uuid.UUID
	for _, c := range deck {
		if c.CardNameEN == "King of Wands" {
			sigID = c.ID
		}
	}
	for _, rc := range dealt {
		if rc.CardID == sigID {
			t.Fatal("significator was dealt into the spread")
		}
	}
}

func TestStreamCelticCrossWithoutProfileDealsFullDeck(t *testing.T) {
	readings := newMemReadingRepo()
	cards := &memReadingCardRepo{}
	svc := newTestService(t, readings, cards, &memDeck{deck: fullDeck()}, &memAudit{},
		&pipelineModel{analysisJSON: map[string]any{
			"question_domain":  "general",
			"question_type":    "general",
			"reasoning":        "user chose the spread",
			"question_summary": "a general question",
		}})

	var readingID uuid.UUID
	var sawComplete bool
	for ev := range svc.Stream(context.Background(), Request{
		Question:           "What is happening around me?",
		UserSelectedSpread: "celtic_cross",
	}) {
		switch {
		case ev.Type() == sse.TypeComplete:
			sawComplete = true
			readingID, _ = uuid.Parse(ev["reading_id"].(string))
		case ev.Step() == sse.StepCardsSelected:
			if _, ok := ev["significator"]; ok {
				t.Fatalf("no significator expected without a profile: %v", ev)
			}
		case ev.Type() == sse.TypeError:
			t.Fatalf("error event: %v", ev)
		}
	}
	if !sawComplete {
		t.Fatal("no complete event")
	}

	dealt, _ := cards.GetByReadingID(context.Background(), nil, readingID)
	if len(dealt) != 10 {
		t.Fatalf("expected 10 cards, got %d", len(dealt))
	}
}

func TestStreamIncompleteCorpusFailsReading(t *testing.T) {
	readings := newMemReadingRepo()
	svc := newTestService(t, readings, &memReadingCardRepo{},
		&memDeck{err: fmt.Errorf("tarot corpus incomplete: source \"waite\" has 77")},
		&memAudit{}, &pipelineModel{analysisJSON: threeCardAnalysisJSON()})

	var sawError bool
	var readingID uuid.UUID
	for ev := range svc.Stream(context.Background(), Request{Question: "q"}) {
		switch ev.Type() {
		case sse.TypeError:
			sawError = true
			if id, ok := ev["reading_id"].(string); ok {
				readingID, _ = uuid.Parse(id)
			}
		case sse.TypeComplete:
			t.Fatal("pipeline must not complete with a broken corpus")
		}
	}
	if !sawError {
		t.Fatal("expected error event")
	}

	row, _ := readings.GetByID(context.Background(), nil, readingID)
	if row == nil || row.Status != types.ReadingStatusError {
		t.Fatalf("reading row: %+v", row)
	}
	if row.Interpretation == "" {
		t.Fatal("error text should land in the interpretation field")
	}
}

func TestCreateReturnsAggregateResult(t *testing.T) {
	readings := newMemReadingRepo()
	cards := &memReadingCardRepo{}
	svc := newTestService(t, readings, cards, &memDeck{deck: fullDeck()}, &memAudit{},
		&pipelineModel{analysisJSON: threeCardAnalysisJSON()})

	result, err := svc.Create(context.Background(), Request{Question: "How is my week looking?"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Reading.Status != types.ReadingStatusCompleted {
		t.Fatalf("status: %s", result.Reading.Status)
	}
	if len(result.Cards) != 3 {
		t.Fatalf("cards: %d", len(result.Cards))
	}
}
