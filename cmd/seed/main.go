// cmd/seed/main.go loads the knowledge manifest into the PostgreSQL store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"

	"github.com/jjckrbbt/analyser/internal/config"
	"github.com/jjckrbbt/analyser/internal/connections"
	"github.com/jjckrbbt/analyser/internal/ingestion"
	"github.com/jjckrbbt/analyser/internal/logger"
	"github.com/jjckrbbt/analyser/internal/processing"
	"github.com/jjckrbbt/analyser/internal/rag"
	"github.com/jjckrbbt/analyser/internal/store"
)

func main() {
	manifestPath := flag.String("manifest", "configs/knowledge.yaml", "path to the knowledge manifest")
	sourceName := flag.String("source", "", "ingest only the named source")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg.AppEnv)
	appLogger := logger.L().With("command", "seed")

	if err := run(cfg, *manifestPath, *sourceName, appLogger); err != nil {
		appLogger.Error("Seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, manifestPath, sourceName string, appLogger *slog.Logger) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return fmt.Errorf("seeding requires STORE_BACKEND=%s, got %q", config.StoreBackendPostgres, cfg.StoreBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifest, err := processing.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	sources := manifest.Sources
	if sourceName != "" {
		src, ok := manifest.Source(sourceName)
		if !ok {
			return fmt.Errorf("source %q not found in %s", sourceName, manifestPath)
		}
		sources = []processing.SourceConfig{src}
	}

	provider, err := rag.DefaultProviderRegistry().Build(cfg.LLMProvider, rag.ProviderConfig{
		APIKey:         cfg.AIAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		BaseURL:        cfg.GeminiBaseURL,
		LLMURL:         cfg.LLMURL,
		EmbeddingURL:   cfg.EmbeddingServiceURL,
		Timeout:        cfg.LLMHTTPTimeout,
	}, appLogger)
	if err != nil {
		return err
	}

	dbClient, err := connections.ConnectDB(cfg.DatabaseURL, appLogger.With("component", "database_connector"))
	if err != nil {
		return err
	}
	defer dbClient.Close()
	if err := dbClient.Migrate(ctx); err != nil {
		return err
	}

	var gcsClient *storage.Client
	if manifest.NeedsGCS() {
		if gcsClient, err = storage.NewClient(ctx); err != nil {
			return fmt.Errorf("failed to create GCS client: %w", err)
		}
		defer gcsClient.Close()
	}

	pgStore := store.NewPGVectorStore(dbClient.Pool, appLogger)
	svc := ingestion.NewService(provider.Embed, pgStore, gcsClient, appLogger)
	for _, src := range sources {
		res, err := svc.IngestSource(ctx, src)
		if err != nil {
			return err
		}
		appLogger.Info("Source ingested", "source", res.Source, "documents", res.Documents, "chunks", res.Chunks, "job_id", res.JobID)
	}

	total, err := pgStore.Count(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("Knowledge base ready", "chunks", total)
	return nil
}
