// Package app assembles the process: config, storage, services, and the
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcanelabs/tarot-backend/internal/db"
	"github.com/arcanelabs/tarot-backend/internal/http/handlers"
	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading"
	"github.com/arcanelabs/tarot-backend/internal/platform/qdrant"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/server"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/sse"
	"github.com/arcanelabs/tarot-backend/internal/utils"
)

type App struct {
	log    *logger.Logger
	server *http.Server
	bus    *sse.Bus
}

func New(log *logger.Logger) (*App, error) {
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, err
	}
	gdb := pg.DB()

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		return nil, err
	}

	model, err := services.NewModelClient(log)
	if err != nil {
		return nil, err
	}

	cardRepo := repos.NewCardRepo(gdb, log)
	chunkRepo := repos.NewRagChunkRepo(gdb, log)
	readingRepo := repos.NewReadingRepo(gdb, log)
	readingCardRepo := repos.NewReadingCardRepo(gdb, log)
	processRepo := repos.NewReadingProcessDataRepo(gdb, log)

	index := services.NewRagIndexService(model, store, chunkRepo,
		utils.GetEnvAsInt("RAG_CHUNK_SIZE", 400, log),
		utils.GetEnvAsInt("RAG_CHUNK_OVERLAP", 60, log),
		log)
	deck := services.NewDeckService(cardRepo, log)
	audit := services.NewAuditService(processRepo, log)
	bus := sse.NewBus(log)

	readingService := reading.NewService(
		reading.Config{
			DefaultSource:   utils.GetEnv("TAROT_DEFAULT_SOURCE", "waite", log),
			DefaultLanguage: utils.GetEnv("OUTPUT_LANGUAGE", utils.GetEnv("READING_LANGUAGE", "zh", log), log),
			PatternLanguage: utils.GetEnv("PATTERN_LANGUAGE", "en", log),
			AnalysisModel:   utils.GetEnv("ANALYSIS_MODEL", "gpt4omini", log),
			ImageryModel:    utils.GetEnv("IMAGERY_MODEL", "gpt4omini", log),
			InterpretModel:  utils.GetEnv("INTERPRETATION_MODEL", "gpt4omini", log),
		},
		readingRepo, readingCardRepo, deck, audit, model, index, bus, log,
	)

	router := server.NewRouter(server.Handlers{
		Reading: handlers.NewReadingHandler(readingService, readingRepo, audit, log),
		Cards:   handlers.NewCardHandler(cardRepo, deck, log),
		Rag: handlers.NewRagHandler(index, model,
			utils.GetEnvAsInt("RAG_TOP_K", 6, log),
			utils.GetEnvAsFloat("RAG_TEMPERATURE", 0.1, log),
			log),
		Health: handlers.NewHealthHandler(gdb, store, log),
	}, log)

	addr := ":" + utils.GetEnv("PORT", "8080", log)
	return &App{
		log: log,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		bus: bus,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then drains with a 15s grace period.
func (a *App) Run() error {
	errc := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		a.log.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return a.bus.Close()
}
