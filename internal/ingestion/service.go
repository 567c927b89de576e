package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/jjckrbbt/analyser/internal/interfaces"
	"github.com/jjckrbbt/analyser/internal/metrics"
	"github.com/jjckrbbt/analyser/internal/processing"
	"github.com/jjckrbbt/analyser/internal/store"
)

// ChunkWriter persists the chunks of one source, replacing any previous version.
type ChunkWriter interface {
	ReplaceSource(ctx context.Context, source string, chunks []store.Chunk) error
}

// Result summarises one ingestion run.
type Result struct {
	JobID     uuid.UUID
	Source    string
	Documents int
	Chunks    int
}

type sourceDocument struct {
	name string
	text string
}

type Service struct {
	embed     interfaces.EmbedderFunc
	writer    ChunkWriter
	gcsClient *storage.Client
	logger    *slog.Logger
}

// NewService creates an ingestion service. gcsClient may be nil when no source lives in GCS.
func NewService(embed interfaces.EmbedderFunc, writer ChunkWriter, gcsClient *storage.Client, logger *slog.Logger) *Service {
	return &Service{
		embed:     embed,
		writer:    writer,
		gcsClient: gcsClient,
		logger:    logger.With("component", "ingestion_service"),
	}
}

// IngestManifest ingests every source of the manifest, stopping at the first failure.
func (s *Service) IngestManifest(ctx context.Context, manifest *processing.KnowledgeManifest) ([]Result, error) {
	results := make([]Result, 0, len(manifest.Sources))
	for _, src := range manifest.Sources {
		res, err := s.IngestSource(ctx, src)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// IngestSource reads, chunks and embeds one source, then replaces its chunks in the store.
func (s *Service) IngestSource(ctx context.Context, src processing.SourceConfig) (*Result, error) {
	jobID := uuid.New()
	jobLogger := s.logger.With("job_id", jobID, "source", src.Name, "uri", src.URI)
	jobLogger.InfoContext(ctx, "Starting knowledge ingestion job")

	docs, err := s.readSource(ctx, src)
	if err != nil {
		jobLogger.ErrorContext(ctx, "Failed to read knowledge source", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read source %s: %w", src.Name, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("source %s contains no readable documents", src.Name)
	}

	chunker := processing.NewChunker(src.EffectiveChunkSize())
	var chunks []store.Chunk
	for _, doc := range docs {
		for _, piece := range chunker.Split(doc.text) {
			embedding, err := s.embed(ctx, piece)
			if err != nil {
				jobLogger.ErrorContext(ctx, "Failed to embed chunk", "document", doc.name, "chunk_index", len(chunks), slog.Any("error", err))
				return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", len(chunks), doc.name, err)
			}
			chunks = append(chunks, store.Chunk{
				ID:        uuid.New(),
				Source:    src.Name,
				Index:     len(chunks),
				Content:   piece,
				Embedding: embedding,
			})
		}
	}

	if err := s.writer.ReplaceSource(ctx, src.Name, chunks); err != nil {
		jobLogger.ErrorContext(ctx, "Failed to store chunks", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store chunks for %s: %w", src.Name, err)
	}
	metrics.IngestedChunks.WithLabelValues(src.Name).Add(float64(len(chunks)))

	jobLogger.InfoContext(ctx, "Knowledge ingestion job completed", "documents", len(docs), "chunks", len(chunks))
	return &Result{JobID: jobID, Source: src.Name, Documents: len(docs), Chunks: len(chunks)}, nil
}

func (s *Service) readSource(ctx context.Context, src processing.SourceConfig) ([]sourceDocument, error) {
	if src.IsGCS() {
		return s.readGCS(ctx, src)
	}
	return readLocal(src)
}

func readLocal(src processing.SourceConfig) ([]sourceDocument, error) {
	info, err := os.Stat(src.URI)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(src.URI)
		if err != nil {
			return nil, err
		}
		return []sourceDocument{{name: filepath.Base(src.URI), text: string(data)}}, nil
	}

	var docs []sourceDocument
	err = filepath.WalkDir(src.URI, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") || !src.AcceptsFile(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(src.URI, path)
		docs = append(docs, sourceDocument{name: rel, text: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].name < docs[j].name })
	return docs, nil
}

func (s *Service) readGCS(ctx context.Context, src processing.SourceConfig) ([]sourceDocument, error) {
	if s.gcsClient == nil {
		return nil, errors.New("source is in GCS but no GCS client is configured")
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(src.URI, "gs://"), "/")

	var docs []sourceDocument
	it := s.gcsClient.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") || !src.AcceptsFile(attrs.Name) {
			continue
		}

		reader, err := s.gcsClient.Bucket(bucket).Object(attrs.Name).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, attrs.Name, err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, attrs.Name, err)
		}
		docs = append(docs, sourceDocument{name: attrs.Name, text: string(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].name < docs[j].name })
	return docs, nil
}
