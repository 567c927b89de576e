package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SENTRY_DSN", "DATABASE_URL", "GEMINI_API_KEY", "LLM_PROVIDER", "LLM_MODEL",
		"EMBEDDING_MODEL", "LLM_URL", "EMBEDDING_SERVICE_URL", "GEMINI_BASE_URL", "LLM_HTTP_TIMEOUT",
		"MATCH_THRESHOLD", "MATCH_COUNT", "RUN_MIGRATIONS", "EXPOSE_ERROR_DETAILS",
		"CORS_ALLOWED_ORIGINS", "PROMPT_TEMPLATE_PATH", "KNOWLEDGE_MANIFEST",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("APP_ENV", "test")
	t.Setenv("AI_API_KEY", "key")
	t.Setenv("STORE_BACKEND", "memory")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, 0.70, cfg.MatchThreshold)
	assert.Equal(t, 7, cfg.MatchCount)
	assert.Equal(t, 90*time.Second, cfg.LLMHTTPTimeout)
	assert.True(t, cfg.RunMigrations)
	assert.False(t, cfg.ExposeErrorDetails)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "legacy-key")
	t.Setenv("STORE_BACKEND", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/analyser")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("EMBEDDING_SERVICE_URL", "http://embedder/embed")
	t.Setenv("MATCH_THRESHOLD", "0.5")
	t.Setenv("MATCH_COUNT", "3")
	t.Setenv("LLM_HTTP_TIMEOUT", "15s")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.AIAPIKey)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", cfg.LLMURL)
	assert.Equal(t, 0.5, cfg.MatchThreshold)
	assert.Equal(t, 3, cfg.MatchCount)
	assert.Equal(t, 15*time.Second, cfg.LLMHTTPTimeout)
	assert.False(t, cfg.RunMigrations)
	assert.True(t, cfg.ExposeErrorDetails, "development exposes error details by default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name          string
		env           map[string]string
		errorContains string
	}{
		{name: "missing api key", env: map[string]string{"AI_API_KEY": ""}, errorContains: "AI_API_KEY"},
		{name: "postgres without url", env: map[string]string{"STORE_BACKEND": "postgres"}, errorContains: "DATABASE_URL"},
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "redis"}, errorContains: "STORE_BACKEND"},
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "mistral"}, errorContains: "LLM_PROVIDER"},
		{name: "openai without embedder", env: map[string]string{"LLM_PROVIDER": "openai"}, errorContains: "EMBEDDING_SERVICE_URL"},
		{name: "threshold out of range", env: map[string]string{"MATCH_THRESHOLD": "1.2"}, errorContains: "between 0 and 1"},
		{name: "threshold not a number", env: map[string]string{"MATCH_THRESHOLD": "haut"}, errorContains: "MATCH_THRESHOLD"},
		{name: "non-positive count", env: map[string]string{"MATCH_COUNT": "0"}, errorContains: "MATCH_COUNT"},
		{name: "bad timeout", env: map[string]string{"LLM_HTTP_TIMEOUT": "soon"}, errorContains: "LLM_HTTP_TIMEOUT"},
		{name: "bad boolean", env: map[string]string{"EXPOSE_ERROR_DETAILS": "peut-être"}, errorContains: "EXPOSE_ERROR_DETAILS"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestParseThreshold(t *testing.T) {
	v, err := ParseThreshold(" 0.70 ")
	require.NoError(t, err)
	assert.Equal(t, 0.7, v, "no float32 rounding on the way to the store")

	v, err = ParseThreshold("1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = ParseThreshold("-0.1")
	assert.Error(t, err)
}
