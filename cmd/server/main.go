// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/getsentry/sentry-go"

	"github.com/jjckrbbt/analyser/internal/api"
	"github.com/jjckrbbt/analyser/internal/config"
	"github.com/jjckrbbt/analyser/internal/connections"
	"github.com/jjckrbbt/analyser/internal/ingestion"
	"github.com/jjckrbbt/analyser/internal/logger"
	"github.com/jjckrbbt/analyser/internal/processing"
	"github.com/jjckrbbt/analyser/internal/rag"
	"github.com/jjckrbbt/analyser/internal/store"
)

// knowledgeStore is what the server needs from either store backend.
type knowledgeStore interface {
	rag.Searcher
	ingestion.ChunkWriter
	api.Pinger
}

func main() {
	// 1. Load application configuration FIRST.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Sentry when a DSN is configured.
	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: 1.0,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Sentry initialization failed: %v\n", err)
			sentryEnabled = false
		}
		defer sentry.Flush(2 * time.Second)
	}

	// 3. Initialize the Logger.
	logger.InitLogger(cfg.AppEnv)
	appLogger := logger.L()
	appLogger.Info("Application starting up...",
		"environment", cfg.AppEnv,
		"provider", cfg.LLMProvider,
		"store", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Build the LLM provider.
	provider, err := rag.DefaultProviderRegistry().Build(cfg.LLMProvider, rag.ProviderConfig{
		APIKey:         cfg.AIAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		BaseURL:        cfg.GeminiBaseURL,
		LLMURL:         cfg.LLMURL,
		EmbeddingURL:   cfg.EmbeddingServiceURL,
		Timeout:        cfg.LLMHTTPTimeout,
	}, appLogger.With("component", "llm_provider"))
	if err != nil {
		appLogger.Error("Failed to initialize LLM provider", slog.Any("error", err))
		os.Exit(1)
	}

	// 5. Open the knowledge store.
	kb, closeStore, err := openStore(ctx, cfg, provider, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize knowledge store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// 6. Assemble the pipeline.
	prompts, err := rag.NewPromptBuilder(cfg.PromptTemplatePath)
	if err != nil {
		appLogger.Error("Failed to load prompt template", slog.Any("error", err))
		os.Exit(1)
	}
	pipeline := rag.NewPipeline(provider, kb, provider, prompts, rag.Options{
		MatchThreshold: cfg.MatchThreshold,
		MatchCount:     cfg.MatchCount,
	}, appLogger)

	// 7. Initialize Echo with middleware and routes.
	e := api.NewRouter(api.RouterConfig{
		Analyser:           pipeline,
		Store:              kb,
		Logger:             appLogger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeErrorDetails: cfg.ExposeErrorDetails,
		EnableSentry:       sentryEnabled,
	})

	// 8. Start the HTTP server.
	address := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	go func() {
		appLogger.Info("HTTP Server starting on port", "port", cfg.Port)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP Server failed to start", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP Server shutdown failed", slog.Any("error", err))
	}
	appLogger.Info("HTTP Server stopped gracefully.")
}

// openStore returns the configured knowledge store and its cleanup function.
func openStore(ctx context.Context, cfg *config.Config, provider rag.Provider, appLogger *slog.Logger) (knowledgeStore, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		memStore, err := store.NewMemoryStore(provider.Embed, appLogger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.KnowledgeManifest != "" {
			if err := seed(ctx, cfg.KnowledgeManifest, provider, memStore, appLogger); err != nil {
				return nil, nil, err
			}
		} else {
			appLogger.Warn("Memory store started empty; set KNOWLEDGE_MANIFEST to seed it")
		}
		return memStore, func() {}, nil
	}

	dbClient, err := connections.ConnectDB(cfg.DatabaseURL, appLogger.With("component", "database_connector"))
	if err != nil {
		return nil, nil, err
	}
	if cfg.RunMigrations {
		if err := dbClient.Migrate(ctx); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
	}
	return store.NewPGVectorStore(dbClient.Pool, appLogger), dbClient.Close, nil
}

func seed(ctx context.Context, manifestPath string, provider rag.Provider, writer ingestion.ChunkWriter, appLogger *slog.Logger) error {
	manifest, err := processing.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	var gcsClient *storage.Client
	if manifest.NeedsGCS() {
		if gcsClient, err = storage.NewClient(ctx); err != nil {
			return fmt.Errorf("failed to create GCS client: %w", err)
		}
		defer gcsClient.Close()
		appLogger.Info("GCS client initialized.")
	}

	svc := ingestion.NewService(provider.Embed, writer, gcsClient, appLogger)
	_, err = svc.IngestManifest(ctx, manifest)
	return err
}
