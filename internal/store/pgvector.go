package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jjckrbbt/analyser/internal/rag"
	"github.com/pgvector/pgvector-go"
)

const (
	matchDocumentsSQL = `SELECT content, similarity FROM match_documents($1, $2, $3)`
	deleteSourceSQL   = `DELETE FROM documents WHERE source = $1`
	insertChunkSQL    = `INSERT INTO documents (id, source, chunk_index, content, embedding) VALUES ($1, $2, $3, $4, $5)`
	countDocumentsSQL = `SELECT count(*) FROM documents`
)

// Chunk is one embedded knowledge-base passage ready to be stored.
type Chunk struct {
	ID        uuid.UUID
	Source    string
	Index     int
	Content   string
	Embedding []float32
}

// PGVectorStore searches the documents table through the match_documents SQL function.
type PGVectorStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGVectorStore creates a store over an already connected pool.
func NewPGVectorStore(pool *pgxpool.Pool, logger *slog.Logger) *PGVectorStore {
	return &PGVectorStore{
		pool:   pool,
		logger: logger.With("component", "pgvector_store"),
	}
}

// Search calls match_documents with the embedding, threshold and limit. Rows come
// back in the order the database function returns them.
func (s *PGVectorStore) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]rag.Document, error) {
	rows, err := s.pool.Query(ctx, matchDocumentsSQL, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match_documents query failed: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var (
			content    string
			similarity float64
		)
		if err := rows.Scan(&content, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match_documents row: %w", err)
		}
		docs = append(docs, rag.Document{Content: content, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match_documents iteration failed: %w", err)
	}
	return docs, nil
}

// ReplaceSource atomically swaps every chunk of a source for the given chunks.
func (s *PGVectorStore) ReplaceSource(ctx context.Context, source string, chunks []Chunk) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, deleteSourceSQL, source)
	if err != nil {
		return fmt.Errorf("failed to delete previous chunks for %s: %w", source, err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(insertChunkSQL,
			pgtype.UUID{Bytes: c.ID, Valid: true},
			source,
			c.Index,
			c.Content,
			pgvector.NewVector(c.Embedding),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk %d of %s: %w", i, source, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Replaced knowledge-base source", "source", source, "deleted", tag.RowsAffected(), "inserted", len(chunks))
	return nil
}

// Count returns the number of stored chunks.
func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countDocumentsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *PGVectorStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
