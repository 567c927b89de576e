// internal/rag/pipeline.go
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jjckrbbt/analyser/internal/metrics"
)

const (
	// ContextSeparator is inserted between retrieved passages in the context block.
	ContextSeparator = "\n\n---\n\n"

	// NoContextPlaceholder replaces the context block when the search returns nothing.
	NoContextPlaceholder = "Aucune information pertinente trouvée dans la base de connaissances."

	summaryQueryPrefix = "Phénomènes rapportés : "
)

// Stage sentinels. Every pipeline error wraps exactly one of them.
var (
	ErrEmbedding  = errors.New("embedding service failed")
	ErrSearch     = errors.New("similarity search failed")
	ErrPrompt     = errors.New("prompt assembly failed")
	ErrGeneration = errors.New("generation service failed")
)

// Document is a knowledge-base passage returned by a similarity search.
// Similarity is informational; results are never re-ranked locally.
type Document struct {
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns up to limit documents whose similarity exceeds threshold.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Document, error)
}

// Generator produces text from a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider is an LLM backend that can both embed and generate.
type Provider interface {
	Embedder
	Generator
}

// AnalysisInput is the validated, request-scoped input of one analysis.
type AnalysisInput struct {
	SummaryData         []json.RawMessage
	ConversationHistory json.RawMessage
	UserQuestion        string
}

// Options tunes the retrieval step.
type Options struct {
	MatchThreshold float64
	MatchCount     int
}

// DefaultOptions returns the retrieval settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{MatchThreshold: 0.70, MatchCount: 7}
}

// Pipeline runs embed -> search -> format -> generate for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	prompts   *PromptBuilder
	opts      Options
	logger    *slog.Logger
}

// NewPipeline wires the three upstream collaborators into a pipeline.
func NewPipeline(embedder Embedder, searcher Searcher, generator Generator, prompts *PromptBuilder, opts Options, logger *slog.Logger) *Pipeline {
	if opts.MatchCount <= 0 {
		opts.MatchCount = DefaultOptions().MatchCount
	}
	return &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		prompts:   prompts,
		opts:      opts,
		logger:    logger.With("component", "rag_pipeline"),
	}
}

// Analyse produces the HTML analysis for the given input. A failure at any stage
// stops the pipeline; no later stage is called.
func (p *Pipeline) Analyse(ctx context.Context, in AnalysisInput) (string, error) {
	query := BuildQuery(in)

	start := time.Now()
	embedding, err := p.embedder.Embed(ctx, query)
	metrics.ObserveStage(metrics.StageEmbed, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	start = time.Now()
	docs, err := p.searcher.Search(ctx, embedding, p.opts.MatchThreshold, p.opts.MatchCount)
	metrics.ObserveStage(metrics.StageSearch, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSearch, err)
	}
	metrics.RetrievedDocuments.Observe(float64(len(docs)))
	p.logger.DebugContext(ctx, "Retrieved knowledge-base passages",
		"count", len(docs),
		"threshold", p.opts.MatchThreshold,
		"limit", p.opts.MatchCount,
	)

	start = time.Now()
	prompt, err := p.prompts.Build(in, BuildContext(docs))
	metrics.ObserveStage(metrics.StagePrompt, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrompt, err)
	}

	start = time.Now()
	text, err := p.generator.Generate(ctx, prompt)
	metrics.ObserveStage(metrics.StageGenerate, start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return text, nil
}

// BuildQuery returns the text to embed: the user's question when one was asked,
// otherwise a description of the reported phenomena.
func BuildQuery(in AnalysisInput) string {
	if q := strings.TrimSpace(in.UserQuestion); q != "" {
		return q
	}
	return DescribeSummary(in.SummaryData)
}

// DescribeSummary lists the "phenomenon" field of each record, falling back to the
// record's compact JSON when it has none.
func DescribeSummary(records []json.RawMessage) string {
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		var fields map[string]any
		if err := json.Unmarshal(rec, &fields); err == nil {
			if name, ok := fields["phenomenon"].(string); ok && strings.TrimSpace(name) != "" {
				parts = append(parts, strings.TrimSpace(name))
				continue
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, rec); err != nil {
			parts = append(parts, strings.TrimSpace(string(rec)))
			continue
		}
		parts = append(parts, buf.String())
	}
	return summaryQueryPrefix + strings.Join(parts, ", ")
}

// BuildContext joins the passages in the order they were returned, or yields the
// placeholder when there are none.
func BuildContext(docs []Document) string {
	if len(docs) == 0 {
		return NoContextPlaceholder
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	return strings.Join(contents, ContextSeparator)
}
