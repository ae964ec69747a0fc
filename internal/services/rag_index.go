package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gorm.io/datatypes"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/platform/vector"
	"github.com/arcanelabs/tarot-backend/internal/rag"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

// RagHit is one retrieved chunk with its similarity score.
type RagHit struct {
	ChunkID    string         `json:"chunk_id"`
	Source     string         `json:"source"`
	Text       string         `json:"text"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RagIndexService owns the chunk corpus: ingestion splits and embeds
// documents, Search embeds a query and returns scored chunks. Query
// embeddings are cached by text hash since retrieval re-issues the same
// card-meaning queries across readings.
type RagIndexService interface {
	IngestDocument(ctx context.Context, source, baseID, text string, metadata map[string]any) (int, error)
	UpsertChunks(ctx context.Context, source string, chunks []rag.Chunk, metadata map[string]any) error
	Search(ctx context.Context, query string, topK int, minScore float64) ([]RagHit, error)
	CountBySource(ctx context.Context, source string) (int64, error)
}

type ragIndexService struct {
	log     *logger.Logger
	model   ModelClient
	store   vector.VectorStore
	chunks  repos.RagChunkRepo
	chunker *rag.Chunker

	cacheMu  sync.Mutex
	cache    map[string][]float32
	cacheCap int
}

const embedCacheCap = 1000

func NewRagIndexService(model ModelClient, store vector.VectorStore, chunkRepo repos.RagChunkRepo, chunkTokens, overlapTokens int, log *logger.Logger) RagIndexService {
	return &ragIndexService{
		log:      log.With("service", "RagIndexService"),
		model:    model,
		store:    store,
		chunks:   chunkRepo,
		chunker:  rag.NewChunker(chunkTokens, overlapTokens),
		cache:    make(map[string][]float32),
		cacheCap: embedCacheCap,
	}
}

func embedCacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(text)))
	return hex.EncodeToString(sum[:])
}

func (s *ragIndexService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := embedCacheKey(query)

	s.cacheMu.Lock()
	if vec, ok := s.cache[key]; ok {
		s.cacheMu.Unlock()
		return vec, nil
	}
	s.cacheMu.Unlock()

	vecs, err := s.model.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]

	// Insert-or-skip at capacity. The working set of card queries is far
	// below the cap, so eviction would only ever churn cold entries.
	s.cacheMu.Lock()
	if len(s.cache) < s.cacheCap {
		s.cache[key] = vec
	}
	s.cacheMu.Unlock()

	return vec, nil
}

func (s *ragIndexService) IngestDocument(ctx context.Context, source, baseID, text string, metadata map[string]any) (int, error) {
	chunks := s.chunker.Split(baseID, text)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.UpsertChunks(ctx, source, chunks, metadata); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *ragIndexService) UpsertChunks(ctx context.Context, source string, chunks []rag.Chunk, metadata map[string]any) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.model.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks for %s: %w", len(chunks), source, err)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	rows := make([]*types.RagChunk, 0, len(chunks))
	vectors := make([]vector.Vector, 0, len(chunks))
	for i, c := range chunks {
		embJSON, mErr := json.Marshal(embeddings[i])
		if mErr != nil {
			return mErr
		}
		rows = append(rows, &types.RagChunk{
			ChunkID:   c.ID,
			Source:    source,
			Text:      c.Text,
			Embedding: datatypes.JSON(embJSON),
			Metadata:  datatypes.JSON(metaJSON),
		})
		vectors = append(vectors, vector.Vector{
			ID:     c.ID,
			Values: embeddings[i],
			Metadata: map[string]any{
				"source": source,
				"text":   c.Text,
			},
		})
	}

	if err := s.chunks.Upsert(ctx, nil, rows); err != nil {
		return fmt.Errorf("persist chunks for %s: %w", source, err)
	}
	if err := s.store.Upsert(ctx, vectors); err != nil {
		return fmt.Errorf("index chunks for %s: %w", source, err)
	}
	s.log.Info("Upserted chunk batch", "source", source, "count", len(chunks))
	return nil
}

func (s *ragIndexService) Search(ctx context.Context, query string, topK int, minScore float64) ([]RagHit, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, vec, topK, minScore)
	if err != nil {
		return nil, err
	}

	hits := make([]RagHit, 0, len(matches))
	for _, m := range matches {
		hit := RagHit{ChunkID: m.ID, Similarity: m.Score, Metadata: m.Metadata}
		if src, ok := m.Metadata["source"].(string); ok {
			hit.Source = src
		}
		if text, ok := m.Metadata["text"].(string); ok {
			hit.Text = text
		}
		hits = append(hits, hit)
	}

	// The payload carries the text for the common path; fall back to
	// Postgres for points indexed without it.
	var missing []string
	for _, h := range hits {
		if h.Text == "" {
			missing = append(missing, h.ChunkID)
		}
	}
	if len(missing) > 0 {
		rows, fErr := s.chunks.GetByIDs(ctx, nil, missing)
		if fErr != nil {
			s.log.Warn("Chunk backfill lookup failed", "count", len(missing), "error", fErr)
		} else {
			byID := make(map[string]*types.RagChunk, len(rows))
			for _, r := range rows {
				byID[r.ChunkID] = r
			}
			for i := range hits {
				if hits[i].Text == "" {
					if r, ok := byID[hits[i].ChunkID]; ok {
						hits[i].Text = r.Text
						hits[i].Source = r.Source
					}
				}
			}
		}
	}

	return hits, nil
}

func (s *ragIndexService) CountBySource(ctx context.Context, source string) (int64, error) {
	return s.chunks.CountBySource(ctx, nil, source)
}
