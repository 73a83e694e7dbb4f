package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DetectConfig holds the parameters needed to build a backend.
type DetectConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RPM      int
	Retries  int
	Logger   *slog.Logger
}

// Detect builds the configured backend wrapped in a rate limiter.
func Detect(cfg DetectConfig) (Engine, error) {
	var e Engine
	switch cfg.Provider {
	case ProviderOpenAI, "":
		e = NewOpenAIEngine(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		e = NewOllamaEngine(baseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return NewLimited(e, cfg.RPM, cfg.Retries, cfg.Logger), nil
}
