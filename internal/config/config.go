package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Chat     ChatConfig
	KOL      KOLConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port   int `validate:"min=1,max=65535"`
	APIKey string
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

type LLMConfig struct {
	Provider       string  `validate:"oneof=openai ollama"`
	BaseURL        string  `validate:"omitempty,url"`
	APIKey         string
	Model          string  `validate:"required"`
	EmbedModel     string  `validate:"required"`
	Temperature    float64 `validate:"min=0,max=2"`
	RPM            int     `validate:"min=0"`
	Retries        int     `validate:"min=0,max=5"`
	TimeoutSeconds int     `validate:"min=1"`
}

type PipelineConfig struct {
	Location  string `validate:"required"`
	Timeframe string `validate:"required"`
	ContextK  int    `validate:"min=1,max=20"`
}

type ChatConfig struct {
	DocsDir string
}

type KOLConfig struct {
	Cookie          string
	IntervalSeconds int `validate:"min=0"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
	Dir   string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			EmbedModel:     "text-embedding-3-small",
			Temperature:    0.7,
			RPM:            60,
			Retries:        2,
			TimeoutSeconds: 60,
		},
		Pipeline: PipelineConfig{
			Location:  "全国主要城市",
			Timeframe: "3个月",
			ContextK:  5,
		},
		Chat: ChatConfig{
			DocsDir: "docs",
		},
		KOL: KOLConfig{
			IntervalSeconds: 3,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/flowerdesk/config.json, then applies environment
// variables (FLOWERDESK_*, with the legacy OPENAI_* and LLM_MODELEND names
// as fallbacks). A .env file in the working directory is loaded into the
// environment first; variables already set win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env: %v\n", err)
	}
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enums.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RequireLLM reports a missing API key for providers that need one.
func RequireLLM(cfg Config) error {
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return errors.New("missing required config: LLM API key. " +
			"Set it via environment variable FLOWERDESK_LLM_API_KEY or OPENAI_API_KEY, or in .env")
	}
	return nil
}
