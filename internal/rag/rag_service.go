// internal/rag/rag_service.go
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// OpenAIClient talks to an OpenAI-compatible Chat Completions endpoint for generation
// and to a JSON embedding service for embeddings.
type OpenAIClient struct {
	httpClient          *http.Client
	embeddingServiceURL string
	apiKey              string
	llmURL              string
	model               string
	logger              *slog.Logger
}

// NewOpenAIClient creates a new instance of the OpenAIClient.
func NewOpenAIClient(cfg ProviderConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}
	if cfg.LLMURL == "" || cfg.EmbeddingURL == "" {
		return nil, fmt.Errorf("openai provider requires both an LLM URL and an embedding service URL")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIClient{
		httpClient:          &http.Client{Timeout: cfg.timeout()},
		embeddingServiceURL: cfg.EmbeddingURL,
		apiKey:              cfg.APIKey,
		llmURL:              cfg.LLMURL,
		model:               model,
		logger:              logger.With("component", "openai_client"),
	}, nil
}

// EmbeddingRequest defines the structure for calling the embedding service.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse defines the structure for the embedding service's response.
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLMRequestBody struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type LLMResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Embed calls the embedding service for a single text.
func (s *OpenAIClient) Embed(ctx context.Context, textToEmbed string) ([]float32, error) {
	reqBody, err := json.Marshal(EmbeddingRequest{Text: textToEmbed})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.embeddingServiceURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned non-OK status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(embeddingResp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return embeddingResp.Embedding, nil
}

// Generate sends the prompt as a single user message and returns the first choice.
func (s *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	payloadBytes, err := json.Marshal(LLMRequestBody{
		Model:    s.model,
		Messages: []ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal OpenAI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.llmURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create AI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("AI API returned non-OK status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var llmResponse LLMResponse
	if err := json.NewDecoder(resp.Body).Decode(&llmResponse); err != nil {
		return "", fmt.Errorf("failed to decode AI response: %w", err)
	}
	if len(llmResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from AI")
	}

	s.logger.DebugContext(ctx, "AI completion received", "model", s.model, "latency_ms", time.Since(start).Milliseconds())
	return llmResponse.Choices[0].Message.Content, nil
}
