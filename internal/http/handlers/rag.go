package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/services"
)

type RagHandler struct {
	log        *logger.Logger
	index      services.RagIndexService
	model      services.ModelClient
	topK       int
	answerTemp float64
}

func NewRagHandler(index services.RagIndexService, model services.ModelClient, defaultTopK int, answerTemperature float64, log *logger.Logger) *RagHandler {
	if defaultTopK <= 0 {
		defaultTopK = 6
	}
	return &RagHandler{
		log:        log.With("handler", "RagHandler"),
		index:      index,
		model:      model,
		topK:       defaultTopK,
		answerTemp: answerTemperature,
	}
}

type ingestRequest struct {
	Source   string         `json:"source"`
	BaseID   string         `json:"base_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestDocument chunks, embeds, and indexes one corpus document.
func (h *RagHandler) IngestDocument(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Source == "" || req.BaseID == "" || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source, base_id, and text are required"})
		return
	}

	count, err := h.index.IngestDocument(c.Request.Context(), req.Source, req.BaseID, req.Text, req.Metadata)
	if err != nil {
		h.log.Error("Document ingest failed", "source", req.Source, "base_id", req.BaseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": req.Source, "base_id": req.BaseID, "chunks": count})
}

type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// Search exposes the raw retrieval primitive, mainly for corpus debugging.
func (h *RagHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = h.topK
	}

	hits, err := h.index.Search(c.Request.Context(), req.Query, req.TopK, req.MinScore)
	if err != nil {
		h.log.Error("Search failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "hits": hits})
}

type answerRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Model    string  `json:"model,omitempty"`
}

// Answer retrieves passages for the query and has the model answer from
// them alone. Low temperature keeps it a corpus QA surface rather than a
// creative one.
func (h *RagHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = h.topK
	}

	hits, err := h.index.Search(c.Request.Context(), req.Query, req.TopK, req.MinScore)
	if err != nil {
		h.log.Error("Answer retrieval failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", req.Query)
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, hit.Source, hit.Text)
	}
	b.WriteString("\nAnswer the question using only the passages above. If they do not cover it, say so.")

	answer, err := h.model.Chat(c.Request.Context(), services.ChatRequest{
		System:      "You answer questions about tarot literature strictly from the provided passages.",
		Prompt:      b.String(),
		Model:       req.Model,
		Temperature: h.answerTemp,
	})
	if err != nil {
		h.log.Error("Answer generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "answer failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "answer": answer, "hits": hits})
}
