package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment with an
// optional .env file.
type Config struct {
	Port          string
	UploadDir     string
	DBPath        string
	BackendURL    string
	BackendWSURL  string
	MaxUploadSize int64
	LogLevel      string
	LLMModels     []string
}

func Load() (*Config, error) {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		Port:         envOr("PORT", "8080"),
		UploadDir:    envOr("UPLOAD_DIR", "./uploads"),
		DBPath:       envOr("DB_PATH", "./inhalyzer.db"),
		BackendURL:   envOr("BACKEND_URL", "http://localhost:8000"),
		BackendWSURL: envOr("BACKEND_WS_URL", "ws://localhost:8000"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}

	maxUploadSize := envOr("MAX_UPLOAD_SIZE", "524288000")
	size, err := strconv.ParseInt(maxUploadSize, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q: %w", maxUploadSize, err)
	}
	cfg.MaxUploadSize = size

	modelList := envOr("LLM_MODELS", "gpt-4o-mini,gpt-4o")
	for _, m := range strings.Split(modelList, ",") {
		if m = strings.TrimSpace(m); m != "" {
			cfg.LLMModels = append(cfg.LLMModels, m)
		}
	}
	if len(cfg.LLMModels) == 0 {
		return nil, fmt.Errorf("LLM_MODELS must name at least one model")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
