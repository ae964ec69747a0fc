package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/platform/vector"
)

type HealthHandler struct {
	log   *logger.Logger
	db    *gorm.DB
	store vector.VectorStore
}

func NewHealthHandler(db *gorm.DB, store vector.VectorStore, log *logger.Logger) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), db: db, store: store}
}

// Health reports ok when both backends answer, degraded when the vector
// store is down (readings still run, retrieval returns zero hits), and 503
// only when the database is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	code := http.StatusOK
	checks := gin.H{"database": "ok", "vector_store": "ok"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = "down"
		status = "down"
		code = http.StatusServiceUnavailable
	}

	if err := h.store.Health(ctx); err != nil {
		checks["vector_store"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
