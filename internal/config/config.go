// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCHealthPort string
	Env            string
	DBPath         string
	APIKey         string
	AuthDisabled   bool
	CORSOrigins    []string
	LogLevel       string
	// EventRateLimit is the number of events a client may post per minute; 0 disables limiting.
	EventRateLimit int
	// SeedOnStart loads the exercise catalog and demo clients at startup.
	SeedOnStart bool
	LLM         LLMConfig
	Retrieval   RetrievalConfig
	Retention   RetentionConfig
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider          string // "gemini", "openai" or "mock"
	GeminiAPIKey      string
	GeminiModel       string
	EmbeddingModel    string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	GenerationTimeout time.Duration
}

// RetrievalConfig controls the knowledge retriever.
type RetrievalConfig struct {
	Backend       string // "keyword" or "vector"
	KnowledgeFile string
	TopK          int
	Timeout       time.Duration
}

// RetentionConfig controls the event log retention worker.
type RetentionConfig struct {
	MaxAge   time.Duration // 0 disables the worker
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	topK := getEnvInt("RETRIEVAL_TOP_K", 3)
	if topK <= 0 {
		topK = 3
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", ""),
		Env:            getEnv("APP_ENV", "development"),
		DBPath:         getEnv("DB_PATH", "./data/concierge.db"),
		APIKey:         getEnv("API_KEY", ""),
		AuthDisabled:   getEnvBool("AUTH_DISABLED", false),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		EventRateLimit: getEnvInt("EVENT_RATE_LIMIT", 30),
		SeedOnStart:    getEnvBool("SEED_ON_START", true),
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 45*time.Second),
		},
		Retrieval: RetrievalConfig{
			Backend:       strings.ToLower(getEnv("RETRIEVER_BACKEND", "keyword")),
			KnowledgeFile: getEnv("KNOWLEDGE_FILE", ""),
			TopK:          topK,
			Timeout:       getEnvDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
		},
		Retention: RetentionConfig{
			MaxAge:   getEnvDuration("EVENT_RETENTION", 0),
			Interval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "mock":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of gemini, openai, mock (got %q)", c.LLM.Provider)
	}
	switch c.Retrieval.Backend {
	case "keyword", "vector":
	default:
		return fmt.Errorf("RETRIEVER_BACKEND must be keyword or vector (got %q)", c.Retrieval.Backend)
	}
	if c.Retrieval.Timeout <= 0 {
		return fmt.Errorf("RETRIEVAL_TIMEOUT must be > 0")
	}
	if c.LLM.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.Retention.MaxAge > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0 when EVENT_RETENTION is set")
	}
	if c.IsProduction() && c.AuthDisabled {
		return fmt.Errorf("AUTH_DISABLED is not allowed in production")
	}
	return nil
}

// IsProduction returns true if APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
