package rag

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjckrbbt/analyser/internal/logger"
)

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"<h4>A</h4>"},{"text":"<p>B</p>"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(ProviderConfig{APIKey: "k", BaseURL: srv.URL}, logger.Discard())
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "<h4>A</h4><p>B</p>", out)
	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "k", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "prompt", gotBody.Contents[0].Parts[0].Text)
}

func TestGeminiGenerateErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "non-OK status", status: http.StatusTooManyRequests, body: `{"error":"quota"}`, want: "429"},
		{name: "blocked prompt", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, want: "SAFETY"},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, want: "no candidates"},
		{name: "empty candidate", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`, want: "MAX_TOKENS"},
		{name: "malformed body", status: http.StatusOK, body: `{`, want: "decode"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			g, err := NewGeminiClient(ProviderConfig{APIKey: "k", BaseURL: srv.URL}, logger.Discard())
			require.NoError(t, err)
			_, err = g.Generate(context.Background(), "prompt")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestGeminiEmbed(t *testing.T) {
	var gotPath string
	var gotBody geminiEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5,-0.25]}}`))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/", EmbeddingModel: "embed-x"}, logger.Discard())
	require.NoError(t, err)

	vec, err := g.Embed(context.Background(), "bruits")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
	assert.Equal(t, "/models/embed-x:embedContent", gotPath)
	assert.Equal(t, "models/embed-x", gotBody.Model)
	assert.Equal(t, "bruits", gotBody.Content.Parts[0].Text)
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(ProviderConfig{}, logger.Discard())
	assert.Error(t, err)
}

func TestGeminiRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g, err := NewGeminiClient(ProviderConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, logger.Discard())
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestOpenAIClient(t *testing.T) {
	var gotAuth string
	var gotChat LLMRequestBody
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotChat)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"<p>ok</p>"}}]}`))
	}))
	defer llm.Close()

	var gotEmbed EmbeddingRequest
	embedder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotEmbed)
		_, _ = w.Write([]byte(`{"embedding":[1,2,3]}`))
	}))
	defer embedder.Close()

	c, err := NewOpenAIClient(ProviderConfig{APIKey: "secret", LLMURL: llm.URL, EmbeddingURL: embedder.URL}, logger.Discard())
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "gpt-4o", gotChat.Model)
	require.Len(t, gotChat.Messages, 1)
	assert.Equal(t, "user", gotChat.Messages[0].Role)

	vec, err := c.Embed(context.Background(), "texte")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, "texte", gotEmbed.Text)
}

func TestOpenAIClientErrors(t *testing.T) {
	_, err := NewOpenAIClient(ProviderConfig{APIKey: "k"}, logger.Discard())
	assert.Error(t, err, "URLs are required")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/embed" {
			_, _ = w.Write([]byte(`{"embedding":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ProviderConfig{APIKey: "k", LLMURL: srv.URL + "/chat", EmbeddingURL: srv.URL + "/embed"}, logger.Discard())
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "prompt")
	assert.ErrorContains(t, err, "no choices")
	_, err = c.Embed(context.Background(), "texte")
	assert.ErrorContains(t, err, "empty vector")
}

func TestProviderRegistry(t *testing.T) {
	r := DefaultProviderRegistry()
	assert.Equal(t, []string{"gemini", "openai"}, r.Names())

	p, err := r.Build("gemini", ProviderConfig{APIKey: "k"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, p)

	_, err = r.Build("mistral", ProviderConfig{APIKey: "k"}, logger.Discard())
	assert.ErrorContains(t, err, "unknown LLM provider")

	assert.Panics(t, func() {
		r.Register("gemini", func(ProviderConfig, *slog.Logger) (Provider, error) { return nil, nil })
	})
}
