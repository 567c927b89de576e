// internal/rag/registry.go
package rag

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// ProviderConfig carries everything a provider constructor may need.
type ProviderConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
	LLMURL         string
	EmbeddingURL   string
	Timeout        time.Duration
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 90 * time.Second
	}
	return c.Timeout
}

// ProviderFactory builds a Provider from configuration.
type ProviderFactory func(cfg ProviderConfig, logger *slog.Logger) (Provider, error)

// ProviderRegistry holds the LLM providers the service can be configured with.
type ProviderRegistry struct {
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates and returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[string]ProviderFactory),
	}
}

// DefaultProviderRegistry returns a registry with the built-in providers.
func DefaultProviderRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	r.Register("gemini", func(cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
		return NewGeminiClient(cfg, logger)
	})
	r.Register("openai", func(cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
		return NewOpenAIClient(cfg, logger)
	})
	return r
}

// Register adds a provider factory to the registry.
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("LLM provider '%s' is already registered", name))
	}
	r.factories[name] = factory
}

// Build constructs the named provider.
func (r *ProviderRegistry) Build(name string, cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
	factory, found := r.factories[name]
	if !found {
		return nil, fmt.Errorf("unknown LLM provider %q (available: %v)", name, r.Names())
	}
	return factory(cfg, logger)
}

// Names lists the registered providers in sorted order.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
