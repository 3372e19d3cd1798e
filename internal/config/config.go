package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string     `envconfig:"PORT" default:"8080"`
	Environment string     `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelRaw string     `envconfig:"LOG_LEVEL" default:"info"`
	LogLevel    slog.Level `ignored:"true"`
	LogFormat   string     `envconfig:"LOG_FORMAT"` // json or text; empty picks by environment

	RedisURL   string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// Oracle
	LLMProvider       string        `envconfig:"LLM_PROVIDER" default:"anthropic"`
	ModelName         string        `envconfig:"MODEL_NAME" default:"claude-3-5-haiku-latest"`
	BackendModelName  string        `envconfig:"BACKEND_MODEL_NAME"`
	AnthropicAPIKey   string        `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	OllamaURL         string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OracleTimeout     time.Duration `envconfig:"ORACLE_TIMEOUT" default:"60s"`
	OracleMaxAttempts int           `envconfig:"ORACLE_MAX_ATTEMPTS" default:"2"`
	OracleRetryDelay  time.Duration `envconfig:"ORACLE_RETRY_DELAY" default:"500ms"`

	// Memory
	MemoryBackend      string        `envconfig:"MEMORY_BACKEND" default:"redis"`
	EmbeddingProvider  string        `envconfig:"EMBEDDING_PROVIDER" default:"hash"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	StoreTimeout       time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	DuplicateThreshold float64       `envconfig:"DUPLICATE_THRESHOLD" default:"0.8"`

	// Dialogue
	NPCHistoryLimit     int  `envconfig:"NPC_HISTORY_LIMIT" default:"4"`
	NarratorTokenBudget int  `envconfig:"NARRATOR_TOKEN_BUDGET" default:"2000"`
	FilterProfanity     bool `envconfig:"FILTER_PROFANITY" default:"true"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai provider")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	switch c.EmbeddingProvider {
	case "openai", "ollama", "hash":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	switch c.MemoryBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown MEMORY_BACKEND %q", c.MemoryBackend)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0, 1], got %v", c.DuplicateThreshold)
	}
	if c.NPCHistoryLimit < 1 {
		return fmt.Errorf("NPC_HISTORY_LIMIT must be positive, got %d", c.NPCHistoryLimit)
	}
	if c.OracleMaxAttempts < 1 {
		return fmt.Errorf("ORACLE_MAX_ATTEMPTS must be positive, got %d", c.OracleMaxAttempts)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
