package steps

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/prompts"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

const (
	cardSemanticTopK   = 10
	cardVisualTopK     = 5
	cardPositionTopK   = 10
	cardMinSimilarity  = 0.5
	methodTopK         = 5
	methodMinSim       = 0.25
	maxInflightSearch  = 10
	firstReadyDividend = 10
)

// CardRetrieval is the fused, per-card deduplicated result of one card's
// three queries.
type CardRetrieval struct {
	CardID   string
	CardName string
	Chunks   []services.RagHit
	Visual   []string
}

// CardProgress reports one completed card to the progress stream. Cards
// complete in any order; only the counters are ordered.
type CardProgress struct {
	Progress       float64
	CompletedCards int
	TotalCards     int
	CardID         string
	CardName       string
}

// RetrievalResult is the per-card phase output. Background holds the
// spread-method and relationship work still in flight; the orchestrator
// joins it before the interpretation stage.
type RetrievalResult struct {
	Cards      []CardRetrieval
	Queries    []string
	Background <-chan BackgroundResult
}

type BackgroundResult struct {
	SpreadChunks       []services.RagHit
	RelationshipChunks []services.RagHit
	Queries            []string
}

// Retriever fans the retrieval queries out over the index. One process-wide
// weighted semaphore caps concurrent searches across all readings.
type Retriever struct {
	index services.RagIndexService
	sem   *semaphore.Weighted
	log   *logger.Logger
}

func NewRetriever(index services.RagIndexService, log *logger.Logger) *Retriever {
	return &Retriever{
		index: index,
		sem:   semaphore.NewWeighted(maxInflightSearch),
		log:   log.With("step", "rag_retrieval"),
	}
}

// search runs one query under the semaphore. A failed query is logged and
// treated as zero hits so one bad call never sinks the whole retrieval.
func (r *Retriever) search(ctx context.Context, query string, topK int, minSim float64) []services.RagHit {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer r.sem.Release(1)

	hits, err := r.index.Search(ctx, query, topK, minSim)
	if err != nil {
		r.log.Warn("Retrieval query failed, treating as zero hits", "query", query, "error", err)
		return nil
	}
	return hits
}

// Retrieve runs the per-card fan-out, invoking onProgress once per completed
// card (in completion order) and onFirstReady once when enough cards have
// landed to start rendering. It returns as soon as all per-card work is done;
// spread-method and relationship queries continue on Result.Background.
func (r *Retriever) Retrieve(
	ctx context.Context,
	cards []tarot.DealtCard,
	spread types.SpreadType,
	questionDomain string,
	analysis tarot.SpreadPatternAnalysis,
	onProgress func(CardProgress),
	onFirstReady func(completed, total int),
) (*RetrievalResult, error) {
	total := len(cards)
	results := make(chan CardRetrieval, total)

	var queryMu sync.Mutex
	var queries []string
	record := func(qs ...string) {
		queryMu.Lock()
		queries = append(queries, qs...)
		queryMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, dc := range cards {
		g.Go(func() error {
			cq := prompts.BuildCardQueries(dc, questionDomain)
			record(cq.Semantic, cq.Visual, cq.Position)

			var semanticHits, visualHits, positionHits []services.RagHit
			sub, sctx := errgroup.WithContext(gctx)
			sub.Go(func() error {
				semanticHits = r.search(sctx, cq.Semantic, cardSemanticTopK, cardMinSimilarity)
				return nil
			})
			sub.Go(func() error {
				visualHits = r.search(sctx, cq.Visual, cardVisualTopK, cardMinSimilarity)
				return nil
			})
			sub.Go(func() error {
				positionHits = r.search(sctx, cq.Position, cardPositionTopK, cardMinSimilarity)
				return nil
			})
			_ = sub.Wait()

			visual := make([]string, 0, len(visualHits))
			for _, h := range visualHits {
				visual = append(visual, h.Text)
			}

			select {
			case results <- CardRetrieval{
				CardID:   dc.Card.ID.String(),
				CardName: dc.Card.CardNameEN,
				Chunks:   MergeHits(semanticHits, visualHits, positionHits),
				Visual:   visual,
			}:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	firstReadyAt := total / firstReadyDividend
	if firstReadyAt < 1 {
		firstReadyAt = 1
	}
	firstReadySent := false

	out := &RetrievalResult{}
	completed := 0
	for cr := range results {
		out.Cards = append(out.Cards, cr)
		completed++
		if onProgress != nil {
			onProgress(CardProgress{
				Progress:       float64(completed) / float64(total),
				CompletedCards: completed,
				TotalCards:     total,
				CardID:         cr.CardID,
				CardName:       cr.CardName,
			})
		}
		if !firstReadySent && completed >= firstReadyAt {
			firstReadySent = true
			if onFirstReady != nil {
				onFirstReady(completed, total)
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.Queries = queries

	out.Background = r.startBackground(ctx, cards, spread, analysis)
	return out, nil
}

// startBackground launches the spread-method and relationship queries after
// the per-card fan-out. The channel delivers exactly one result and closes.
func (r *Retriever) startBackground(
	ctx context.Context,
	cards []tarot.DealtCard,
	spread types.SpreadType,
	analysis tarot.SpreadPatternAnalysis,
) <-chan BackgroundResult {
	done := make(chan BackgroundResult, 1)

	go func() {
		defer close(done)

		methodQueries := prompts.SpreadMethodQueries(spread)
		relQueries := prompts.RelationshipQueries(cards, analysis)

		var mu sync.Mutex
		var spreadHits, relHits []services.RagHit

		g, gctx := errgroup.WithContext(ctx)
		for _, q := range methodQueries {
			g.Go(func() error {
				hits := r.search(gctx, q, methodTopK, methodMinSim)
				mu.Lock()
				spreadHits = append(spreadHits, hits...)
				mu.Unlock()
				return nil
			})
		}
		for _, q := range relQueries {
			g.Go(func() error {
				hits := r.search(gctx, q, methodTopK, methodMinSim)
				mu.Lock()
				relHits = append(relHits, hits...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		done <- BackgroundResult{
			SpreadChunks:       MergeHits(spreadHits),
			RelationshipChunks: MergeHits(relHits),
			Queries:            append(methodQueries, relQueries...),
		}
	}()

	return done
}

// MergeHits deduplicates by chunk id keeping the highest similarity, then
// sorts by similarity descending (chunk id ascending on ties, for stable
// prompts).
func MergeHits(sets ...[]services.RagHit) []services.RagHit {
	best := map[string]services.RagHit{}
	for _, set := range sets {
		for _, h := range set {
			if cur, ok := best[h.ChunkID]; !ok || h.Similarity > cur.Similarity {
				best[h.ChunkID] = h
			}
		}
	}
	out := make([]services.RagHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
