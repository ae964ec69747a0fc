package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/arcanelabs/tarot-backend/internal/http/handlers"
	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/utils"
)

type Handlers struct {
	Reading *handlers.ReadingHandler
	Cards   *handlers.CardHandler
	Rag     *handlers.RagHandler
	Health  *handlers.HealthHandler
}

// NewRouter wires the gin engine: CORS from env, a health probe at the root,
// and the versioned API under the configured prefix.
func NewRouter(h Handlers, log *logger.Logger) *gin.Engine {
	if utils.GetEnv("APP_MODE", "development", log) == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	origins := strings.Split(utils.GetEnv("CORS_ORIGINS", "http://localhost:3000", log), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.Health.Health)

	prefix := utils.GetEnv("API_V1_PREFIX", "/api/v1", log)
	v1 := router.Group(prefix)
	{
		readings := v1.Group("/readings")
		{
			readings.POST("", h.Reading.CreateReading)
			readings.POST("/stream", h.Reading.StreamReading)
			readings.GET("", h.Reading.ListReadings)
			readings.GET("/:id", h.Reading.GetReading)
			readings.GET("/:id/history", h.Reading.GetReadingHistory)
		}

		cards := v1.Group("/cards")
		{
			cards.GET("/sources", h.Cards.ListSources)
			cards.GET("", h.Cards.ListCards)
			cards.GET("/:name", h.Cards.GetCard)
		}

		rag := v1.Group("/rag")
		{
			rag.POST("/documents", h.Rag.IngestDocument)
			rag.POST("/search", h.Rag.Search)
			rag.POST("/answer", h.Rag.Answer)
		}
	}

	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// SSE requests hold the connection open; the duration reflects the
		// whole stream, which is the useful number here.
		log.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
