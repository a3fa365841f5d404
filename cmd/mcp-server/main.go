// Package main provides the MCP server entry point for the evidence index.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/evidence-rag/internal/aggregate"
	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/embedding"
	"github.com/bull/evidence-rag/internal/llm"
	mcpserver "github.com/bull/evidence-rag/internal/mcp"
	"github.com/bull/evidence-rag/internal/retrieval"
	"github.com/bull/evidence-rag/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "config file (default: "+config.DefaultPath+")")
	flag.Parse()

	// MCP owns stdout in stdio mode; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize storage
	index, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx); err != nil {
		return err
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer catalog.Close()

	// Initialize embedding client
	embeddingClient, err := embedding.NewClient(embedding.ClientOptions{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
	})
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Embedder.BatchSize)
	retriever := retrieval.NewService(embedder, index, catalog, logger)

	serverCfg := &mcpserver.Config{
		Searcher:  retriever,
		Catalog:   catalog,
		Index:     index,
		OutputDir: cfg.Run.OutputDir,
		Logger:    logger,
	}

	// Summaries need a model; the other tools work without one.
	if completer, err := llm.NewCompleter(cfg.Provider(), logger); err != nil {
		logger.Warn("Model unavailable, summarize_run disabled", "error", err)
	} else {
		serverCfg.Summarizer = aggregate.New(completer, aggregate.Options{
			MaxTokens:   cfg.Run.AggregateMaxTokens,
			Temperature: cfg.Model.Temperature,
		}, logger)
	}

	server := mcpserver.NewServer(serverCfg)

	// Create HTTP server with multiple endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(map[string]mcpserver.HealthChecker{
		"qdrant":  index,
		"catalog": catalog,
	}))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(server))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients
	// Also start HTTP health endpoint in background for local testing
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()
	return server.Run(ctx)
}
