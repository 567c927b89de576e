package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jjckrbbt/analyser/internal/interfaces"
	"github.com/jjckrbbt/analyser/internal/rag"
	"github.com/philippgille/chromem-go"
)

const memoryCollectionName = "knowledge"

// MemoryStore is an in-process store backed by a chromem-go collection.
// Its contents do not survive a restart.
type MemoryStore struct {
	collection *chromem.Collection
	logger     *slog.Logger
}

// NewMemoryStore creates an empty in-memory store. embed is only used for
// documents added without a precomputed embedding.
func NewMemoryStore(embed interfaces.EmbedderFunc, logger *slog.Logger) (*MemoryStore, error) {
	if embed == nil {
		embed = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("memory store has no embedder configured")
		}
	}
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(memoryCollectionName, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &MemoryStore{
		collection: collection,
		logger:     logger.With("component", "memory_store"),
	}, nil
}

// Search returns up to limit documents whose cosine similarity is above threshold,
// most similar first.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]rag.Document, error) {
	count := s.collection.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	var docs []rag.Document
	for _, r := range results {
		if float64(r.Similarity) <= threshold {
			continue
		}
		docs = append(docs, rag.Document{Content: r.Content, Similarity: r.Similarity})
	}
	return docs, nil
}

// ReplaceSource removes every chunk of source and adds the given chunks.
func (s *MemoryStore) ReplaceSource(ctx context.Context, source string, chunks []Chunk) error {
	if err := s.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("failed to delete previous chunks for %s: %w", source, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID.String(),
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"source":      source,
				"chunk_index": strconv.Itoa(c.Index),
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add chunks for %s: %w", source, err)
	}
	s.logger.InfoContext(ctx, "Replaced knowledge-base source", "source", source, "inserted", len(chunks))
	return nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	return int64(s.collection.Count()), nil
}

// Ping always succeeds; the collection lives in process memory.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
