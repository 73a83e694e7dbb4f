package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key string
	typ keyType
	env string
	// fallback names are read when env is unset.
	fallback []string
	secret   bool
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FLOWERDESK_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_key", typ: kString, env: "FLOWERDESK_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FLOWERDESK_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "llm.provider", typ: kString, env: "FLOWERDESK_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "FLOWERDESK_LLM_BASE_URL", fallback: []string{"OPENAI_BASE_URL"},
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "FLOWERDESK_LLM_API_KEY", fallback: []string{"OPENAI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "FLOWERDESK_LLM_MODEL", fallback: []string{"LLM_MODELEND"},
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.embed_model", typ: kString, env: "FLOWERDESK_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "FLOWERDESK_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.rpm", typ: kInt, env: "FLOWERDESK_LLM_RPM",
		apply:   func(cfg *Config, v any) { cfg.LLM.RPM = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.RPM },
	},
	{
		key: "llm.retries", typ: kInt, env: "FLOWERDESK_LLM_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.LLM.Retries = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.Retries },
	},
	{
		key: "llm.timeout_seconds", typ: kInt, env: "FLOWERDESK_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.TimeoutSeconds },
	},
	{
		key: "pipeline.location", typ: kString, env: "FLOWERDESK_PIPELINE_LOCATION",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.Location = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.Location },
	},
	{
		key: "pipeline.timeframe", typ: kString, env: "FLOWERDESK_PIPELINE_TIMEFRAME",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.Timeframe = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.Timeframe },
	},
	{
		key: "pipeline.context_k", typ: kInt, env: "FLOWERDESK_PIPELINE_CONTEXT_K",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.ContextK = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.ContextK },
	},
	{
		key: "chat.docs_dir", typ: kString, env: "FLOWERDESK_DOCS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Chat.DocsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.DocsDir },
	},
	{
		key: "kol.cookie", typ: kString, env: "FLOWERDESK_KOL_COOKIE",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.KOL.Cookie = v.(string) },
		extract: func(cfg Config) any { return cfg.KOL.Cookie },
	},
	{
		key: "kol.interval_seconds", typ: kInt, env: "FLOWERDESK_KOL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.KOL.IntervalSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.KOL.IntervalSeconds },
	},
	{
		key: "log.level", typ: kString, env: "FLOWERDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.dir", typ: kString, env: "FLOWERDESK_LOG_DIR",
		apply:   func(cfg *Config, v any) { cfg.Log.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Dir },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func lookupEnv(s keySpec) (name, raw string) {
	for _, n := range append([]string{s.env}, s.fallback...) {
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name, raw := lookupEnv(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
