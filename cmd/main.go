package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/arcanelabs/tarot-backend/internal/app"
	"github.com/arcanelabs/tarot-backend/internal/logger"
)

func main() {
	_ = godotenv.Load()

	mode := os.Getenv("APP_MODE")
	log, err := logger.New(mode)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	application, err := app.New(log)
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	if err := application.Run(); err != nil {
		log.Fatal("Server exited with error", "error", err)
	}
}
