package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docsage/docsage/db"
	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/database"
	"github.com/docsage/docsage/internal/embedcache"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/loader"
	"github.com/docsage/docsage/internal/log"
	"github.com/docsage/docsage/internal/prompt"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/storage"
	"github.com/docsage/docsage/internal/version"
	"github.com/docsage/docsage/internal/vectorstore"
	chromemstore "github.com/docsage/docsage/internal/vectorstore/chromem"
	pgvectorstore "github.com/docsage/docsage/internal/vectorstore/pgvector"
)

// buildSystem assembles the RAG system from configuration. The
// returned cleanup function releases the backend's resources.
func buildSystem(ctx context.Context) (*rag.System, func(), error) {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		return nil, nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, cleanup, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cache, err := embedcache.New(filepath.Join(cfg.DataDir, "cache"), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	versions, err := version.NewManager(cfg.DataDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	files, err := storage.NewFiles(cfg.DataDir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	embedder, err := embedding.NewGemini(ctx, apiKey, cfg.EmbedderModel, cfg.EmbedderDimension)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	completer, err := prompt.NewGemini(ctx, apiKey, cfg.CompletionModel)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	system, err := rag.New(rag.Deps{
		Loader:    loader.New(),
		Splitter:  chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap)),
		Cache:     cache,
		Versions:  versions,
		Store:     store,
		Embedder:  embedder,
		Files:     files,
		Completer: completer,
		Threshold: cfg.SimilarityThreshold,
		TopK:      cfg.TopK,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return system, cleanup, nil
}

// openBackend selects the vector store backend from configuration.
// The pgvector backend runs its migrations before returning.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vectorstore.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendChromem:
		store, err := chromemstore.New(filepath.Join(cfg.DataDir, "vectors"), logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.BackendPgvector:
		if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
			return nil, nil, err
		}
		pool, err := database.Open(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, nil, err
		}
		store, err := pgvectorstore.New(pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}

// initLogger builds the process logger. DEBUG in the environment
// raises the level; logs go to stderr so stdout stays clean for
// command output.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}
