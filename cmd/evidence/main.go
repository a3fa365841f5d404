// Package main provides the evidence CLI: ingest case files, run
// investigative queries over them and summarize the results.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/embedding"
	"github.com/bull/evidence-rag/internal/llm"
	"github.com/bull/evidence-rag/internal/retrieval"
	"github.com/bull/evidence-rag/internal/storage"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query-driven evidence discovery over case files",
	Long: `Ingests witness statements and other case files, finds the documents
relevant to investigative queries, reasons over them batch by batch and
condenses the findings into one meta-summary per query.

Environment variables:
  OPENAI_API_KEY Model and embedding API key (default key variable)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  CATALOG_PATH   SQLite sentence catalog (default: data/catalog.db)
  OUTPUT_DIR     Run output directory (default: output)
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON")

	rootCmd.AddCommand(ingestCmd, runCmd, summarizeCmd, investigateCmd, statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// stores bundles the vector index and the sentence catalog.
type stores struct {
	index   *storage.QdrantStorage
	catalog *storage.SQLiteCatalog
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	slog.Info("Connecting to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port)
	index, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Catalog.Path)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return &stores{index: index, catalog: catalog}, nil
}

func (s *stores) Close() {
	s.catalog.Close()
	s.index.Close()
}

func newEmbedder(cfg *config.Config) (*embedding.Embedder, error) {
	client, err := embedding.NewClient(embedding.ClientOptions{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return embedding.NewEmbedder(client, cfg.Embedder.BatchSize), nil
}

func newRetrieval(cfg *config.Config, s *stores) (*retrieval.Service, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return retrieval.NewService(embedder, s.index, s.catalog, slog.Default()), nil
}

func newCompleter(cfg *config.Config) (llm.Completer, error) {
	completer, err := llm.NewCompleter(cfg.Provider(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return completer, nil
}
