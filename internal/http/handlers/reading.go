package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/sse"
)

type ReadingHandler struct {
	log      *logger.Logger
	service  reading.Service
	readings repos.ReadingRepo
	audit    services.AuditService
}

func NewReadingHandler(service reading.Service, readingRepo repos.ReadingRepo, audit services.AuditService, log *logger.Logger) *ReadingHandler {
	return &ReadingHandler{
		log:      log.With("handler", "ReadingHandler"),
		service:  service,
		readings: readingRepo,
		audit:    audit,
	}
}

// StreamReading runs the pipeline and relays its events as SSE.
func (h *ReadingHandler) StreamReading(c *gin.Context) {
	var req reading.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	events := h.service.Stream(c.Request.Context(), req)
	sse.Stream(c, events, h.log)
}

// CreateReading is the non-streamed variant: it awaits the full pipeline and
// returns one aggregate response.
func (h *ReadingHandler) CreateReading(c *gin.Context) {
	var req reading.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Reading creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ReadingHandler) GetReading(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reading id"})
		return
	}
	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Reading lookup failed", "reading_id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reading not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReadingHandler) ListReadings(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}
	rows, err := h.readings.ListByUser(c.Request.Context(), nil, userID, 50)
	if err != nil {
		h.log.Error("Reading list failed", "user_id", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": rows})
}

// GetReadingHistory returns the per-stage audit rows for one reading.
func (h *ReadingHandler) GetReadingHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reading id"})
		return
	}
	rows, err := h.audit.History(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Audit history lookup failed", "reading_id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": rows})
}
