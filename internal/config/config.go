package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultMatchThreshold = "0.70"
	defaultMatchCount     = 7
)

// Config holds all application-wide configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	SentryDSN string

	DatabaseURL   string
	StoreBackend  string
	RunMigrations bool

	LLMProvider         string
	AIAPIKey            string
	LLMModel            string
	EmbeddingModel      string
	LLMURL              string
	EmbeddingServiceURL string
	GeminiBaseURL       string
	LLMHTTPTimeout      time.Duration

	MatchThreshold float64
	MatchCount     int

	CORSAllowedOrigins []string
	PromptTemplatePath string
	ExposeErrorDetails bool
	KnowledgeManifest  string
}

// LoadConfig reads configuration from environment variables or a .env file.
// It is the single source of truth for application configuration.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists. In production, these are set directly in the environment.
	_ = godotenv.Load()

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	cfg := &Config{
		AppEnv:              appEnv,
		Port:                envOr("PORT", "8080"),
		SentryDSN:           os.Getenv("SENTRY_DSN"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StoreBackend:        strings.ToLower(envOr("STORE_BACKEND", StoreBackendPostgres)),
		LLMProvider:         strings.ToLower(envOr("LLM_PROVIDER", ProviderGemini)),
		LLMModel:            os.Getenv("LLM_MODEL"),
		EmbeddingModel:      os.Getenv("EMBEDDING_MODEL"),
		LLMURL:              os.Getenv("LLM_URL"),
		EmbeddingServiceURL: os.Getenv("EMBEDDING_SERVICE_URL"),
		GeminiBaseURL:       os.Getenv("GEMINI_BASE_URL"),
		PromptTemplatePath:  os.Getenv("PROMPT_TEMPLATE_PATH"),
		KnowledgeManifest:   os.Getenv("KNOWLEDGE_MANIFEST"),
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	if cfg.AIAPIKey == "" {
		cfg.AIAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("FATAL: AI_API_KEY environment variable not set")
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("FATAL: DATABASE_URL environment variable not set")
		}
	case StoreBackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.LLMProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if cfg.LLMURL == "" {
			cfg.LLMURL = "https://api.openai.com/v1/chat/completions"
		}
		if cfg.EmbeddingServiceURL == "" {
			return nil, fmt.Errorf("FATAL: EMBEDDING_SERVICE_URL environment variable not set")
		}
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	var err error
	if cfg.LLMHTTPTimeout, err = time.ParseDuration(envOr("LLM_HTTP_TIMEOUT", "90s")); err != nil {
		return nil, fmt.Errorf("invalid LLM_HTTP_TIMEOUT: %w", err)
	}
	if cfg.MatchThreshold, err = ParseThreshold(envOr("MATCH_THRESHOLD", defaultMatchThreshold)); err != nil {
		return nil, err
	}
	if cfg.MatchCount, err = parsePositiveInt("MATCH_COUNT", defaultMatchCount); err != nil {
		return nil, err
	}
	if cfg.RunMigrations, err = parseBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	if cfg.ExposeErrorDetails, err = parseBool("EXPOSE_ERROR_DETAILS", appEnv == "development"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseThreshold parses a similarity threshold and checks it lies within [0, 1].
// The decimal is converted once to float64, the type match_documents takes.
func ParseThreshold(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid MATCH_THRESHOLD %q: %w", raw, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("invalid MATCH_THRESHOLD %s: must be between 0 and 1", d.String())
	}
	f, _ := d.Float64()
	return f, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parsePositiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
