package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/platform/vector"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, vector.VectorStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewVectorStore(testLogger(t), Config{
		URL:        srv.URL,
		Collection: "tarot_chunks",
		VectorDim:  3,
		APIKey:     "test-key",
	})
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return srv, store
}

func okEnvelope(result any) []byte {
	raw, _ := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	return raw
}

func TestUpsertValidation(t *testing.T) {
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(okEnvelope(nil))
	})

	err := store.Upsert(context.Background(), []vector.Vector{{ID: "", Values: []float32{1, 2, 3}}})
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("empty id: %v", err)
	}

	err = store.Upsert(context.Background(), []vector.Vector{{ID: "c1", Values: []float32{1, 2}}})
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("dim mismatch: %v", err)
	}
}

func TestUpsertSendsDeterministicPointIDs(t *testing.T) {
	var captured struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	seen := 0
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			seen++
			_ = json.NewDecoder(r.Body).Decode(&captured)
			if got := r.Header.Get("api-key"); got != "test-key" {
				t.Errorf("api-key header: %q", got)
			}
		}
		_, _ = w.Write(okEnvelope(nil))
	})

	vectors := []vector.Vector{
		{ID: "waite/ch1#1", Values: []float32{1, 2, 3}, Metadata: map[string]any{"source": "waite"}},
	}
	if err := store.Upsert(context.Background(), vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(context.Background(), vectors); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected 2 upsert calls, got %d", seen)
	}
	if len(captured.Points) != 1 {
		t.Fatalf("points: %+v", captured.Points)
	}
	p := captured.Points[0]
	if p.Payload[payloadChunkIDKey] != "waite/ch1#1" {
		t.Fatalf("payload chunk id: %v", p.Payload)
	}
	// Same chunk id always maps to the same point id, so re-upserts overwrite.
	want := (&vectorStore{}).pointID("waite/ch1#1")
	if p.ID != want {
		t.Fatalf("point id: got %s, want %s", p.ID, want)
	}
}

func TestQuerySortsAndFilters(t *testing.T) {
	results := []map[string]any{
		{"id": "p1", "score": 0.55, "payload": map[string]any{payloadChunkIDKey: "c-low"}},
		{"id": "p2", "score": 0.91, "payload": map[string]any{payloadChunkIDKey: "c-high"}},
		{"id": "p3", "score": 0.40, "payload": map[string]any{payloadChunkIDKey: "c-below"}},
	}
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(okEnvelope(results))
	})

	matches, err := store.Query(context.Background(), []float32{1, 2, 3}, 10, 0.5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above threshold, got %d", len(matches))
	}
	if matches[0].ID != "c-high" || matches[1].ID != "c-low" {
		t.Fatalf("order: %+v", matches)
	}
}

func TestQueryValidation(t *testing.T) {
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(okEnvelope(nil))
	})

	var opError *OperationError
	_, err := store.Query(context.Background(), nil, 5, 0)
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("empty vector: %v", err)
	}
	_, err = store.Query(context.Background(), []float32{1}, 5, 0)
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("dim mismatch: %v", err)
	}
}

func TestQuerySurfacesEnvelopeError(t *testing.T) {
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(map[string]any{
			"result": nil,
			"status": map[string]any{"error": "collection not found"},
		})
		_, _ = w.Write(raw)
	})

	_, err := store.Query(context.Background(), []float32{1, 2, 3}, 5, 0)
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorQueryFailed {
		t.Fatalf("expected query_failed, got %v", err)
	}
}

func TestHealthDetectsDimensionMismatch(t *testing.T) {
	_, store := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(okEnvelope(map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 1536, "distance": "Cosine"},
				},
			},
		}))
	})

	err := store.Health(context.Background())
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodePointID(t *testing.T) {
	if got := decodePointID(json.RawMessage(`"abc"`)); got != "abc" {
		t.Fatalf("string id: %s", got)
	}
	if got := decodePointID(json.RawMessage(`42`)); got != "42" {
		t.Fatalf("numeric id: %s", got)
	}
	if got := decodePointID(nil); got != "" {
		t.Fatalf("empty id: %s", got)
	}
}

func TestParseEnvelopeStatus(t *testing.T) {
	if got := parseEnvelopeStatus(json.RawMessage(`"ok"`)); got != "" {
		t.Fatalf("ok status: %q", got)
	}
	if got := parseEnvelopeStatus(nil); got != "" {
		t.Fatalf("missing status: %q", got)
	}
	if got := parseEnvelopeStatus(json.RawMessage(`{"error":"boom"}`)); got != "boom" {
		t.Fatalf("error status: %q", got)
	}
	if got := parseEnvelopeStatus(json.RawMessage(`"degraded"`)); got == "" {
		t.Fatal("non-ok status should surface")
	}
}

func TestTruncateBody(t *testing.T) {
	long := make([]byte, maxErrorBodyBytes+100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateBody(long)
	if len(got) != maxErrorBodyBytes+3 {
		t.Fatalf("length: %d", len(got))
	}
	if got := truncateBody([]byte("short")); got != "short" {
		t.Fatalf("short body: %q", got)
	}
}
