package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/evidence"
	ghclient "github.com/bull/evidence-rag/internal/github"
	"github.com/bull/evidence-rag/internal/indexer"
	"github.com/bull/evidence-rag/internal/ingest"
)

var (
	ingestGitHub   string
	ingestPath     string
	ingestRef      string
	ingestLanguage string
	ingestInclude  []string
	ingestClear    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index case files from a directory, zip archive or GitHub",
	Long: `Reads case files (.txt, .md), splits them into paragraphs and sentences,
embeds every sentence into Qdrant and stores the text in the SQLite catalog.

A path may be a single file, a directory or a .zip archive. With --github
the files are read from a repository directory instead. Re-ingesting a
document replaces its previous sentences.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestGitHub, "github", "", "read from a GitHub repository (owner/repo)")
	ingestCmd.Flags().StringVar(&ingestPath, "path", "", "repository directory holding the case files")
	ingestCmd.Flags().StringVar(&ingestRef, "ref", "", "branch, tag or commit (default: repository default branch)")
	ingestCmd.Flags().StringVar(&ingestLanguage, "language", "", "sentence splitting language")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns of files to ingest")
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "drop the existing index first")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ingestLanguage != "" {
		cfg.Ingest.Language = ingestLanguage
	}
	if len(ingestInclude) > 0 {
		cfg.Ingest.Include = ingestInclude
	}

	parser, err := ingest.NewParser(cfg.Ingest.Language)
	if err != nil {
		return err
	}
	loader, err := ingest.NewLoader(parser, cfg.Ingest.Include, slog.Default())
	if err != nil {
		return err
	}

	var (
		loaded   *ingest.Loaded
		revision string
	)
	switch {
	case len(args) == 1:
		fmt.Printf("Reading case files from %s...\n", args[0])
		loaded, err = loader.LoadPath(ctx, args[0])
	case ingestGitHub != "" || cfg.Ingest.GitHub.Repo != "":
		fetcher, ferr := newFetcher(cfg)
		if ferr != nil {
			return ferr
		}
		fmt.Printf("Reading case files from %s...\n", fetcher.Source())
		if revision, err = fetcher.GetLatestCommitSHA(ctx); err != nil {
			return fmt.Errorf("failed to resolve revision: %w", err)
		}
		loaded, err = loader.LoadGitHub(ctx, fetcher)
	default:
		return fmt.Errorf("%w: give a path or --github owner/repo", evidence.ErrInvalidArgument)
	}
	if err != nil {
		return err
	}

	s, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	if ingestClear {
		fmt.Println("Clearing existing index...")
		if err := s.index.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		if err := s.catalog.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}
	}

	fmt.Printf("Indexing %d documents...\n", len(loaded.Documents))
	pipeline := indexer.NewPipeline(embedder, s.index, s.catalog, slog.Default())
	result, err := pipeline.IndexAll(ctx, loaded, revision)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Paragraphs: %d\n", result.Paragraphs)
	fmt.Printf("  Sentences: %d\n", result.Sentences)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))
	if result.Revision != "" {
		fmt.Printf("  Commit: %s\n", result.Revision)
	}
	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func newFetcher(cfg *config.Config) (*ghclient.Fetcher, error) {
	gh := cfg.Ingest.GitHub
	if ingestGitHub != "" {
		owner, repo, ok := strings.Cut(ingestGitHub, "/")
		if !ok || owner == "" || repo == "" {
			return nil, fmt.Errorf("%w: --github wants owner/repo, got %q", evidence.ErrInvalidArgument, ingestGitHub)
		}
		gh.Owner, gh.Repo = owner, repo
	}
	if ingestPath != "" {
		gh.Path = ingestPath
	}
	if ingestRef != "" {
		gh.Ref = ingestRef
	}

	client, err := ghclient.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return ghclient.NewFetcher(client, gh.Owner, gh.Repo, gh.Path, gh.Ref), nil
}
