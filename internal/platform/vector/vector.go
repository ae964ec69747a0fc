// Package vector defines the similarity-search surface the RAG layer
// consumes. The qdrant adapter is the production implementation; tests
// substitute in-memory fakes.
package vector

import "context"

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type VectorStore interface {
	Upsert(ctx context.Context, vectors []Vector) error
	// Query returns up to topK matches with score >= minScore, sorted by
	// descending score.
	Query(ctx context.Context, q []float32, topK int, minScore float64) ([]VectorMatch, error)
	// Health is a trivial readiness probe; failure marks the store degraded
	// but never panics at startup.
	Health(ctx context.Context) error
}
