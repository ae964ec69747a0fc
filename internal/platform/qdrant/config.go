package qdrant

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	URL        string
	Collection string
	VectorDim  int
	// APIKey is the regular read credential. ServiceKey bypasses row-level
	// policies for corpus writes; both map to the same header here.
	APIKey     string
	ServiceKey string
}

func ResolveConfigFromEnv() (Config, error) {
	dim := 1536
	if rawDim := strings.TrimSpace(os.Getenv("QDRANT_VECTOR_DIM")); rawDim != "" {
		parsed, err := strconv.Atoi(rawDim)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid QDRANT_VECTOR_DIM=%q; expected positive integer", rawDim)
		}
		dim = parsed
	}
	cfg := Config{
		URL:        strings.TrimSpace(os.Getenv("QDRANT_URL")),
		Collection: strings.TrimSpace(os.Getenv("QDRANT_COLLECTION")),
		VectorDim:  dim,
		APIKey:     strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
		ServiceKey: strings.TrimSpace(os.Getenv("QDRANT_SERVICE_KEY")),
	}
	if cfg.Collection == "" {
		cfg.Collection = "tarot_chunks"
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", cfg.URL)
	}
	if cfg.Collection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required")
	}
	if cfg.VectorDim <= 0 {
		return fmt.Errorf("QDRANT_VECTOR_DIM must be a positive integer")
	}
	return nil
}
