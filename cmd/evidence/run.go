package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/investigate"
	"github.com/bull/evidence-rag/internal/memory"
	"github.com/bull/evidence-rag/internal/reasoning"
)

var (
	runQueries     []string
	runQueriesFile string
	runTopN        int
	runWorkers     int
	runLanguage    string
	runCondense    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Investigate the matching documents of each query",
	Long: `For every query, finds the top-N matching documents and reasons over
each of them batch by batch, writing one JSONL result log per query into a
fresh RAG_Top{N}_{timestamp} run directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := executeRun(cmd)
		return err
	},
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&runQueries, "query", "q", nil, "investigative query (repeatable)")
	cmd.Flags().StringVar(&runQueriesFile, "queries-file", "", "file with one query per line")
	cmd.Flags().IntVarP(&runTopN, "top-n", "n", 0, "documents per query, -1 for all (default from config)")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "documents processed concurrently per query")
	cmd.Flags().StringVar(&runLanguage, "language", "", "prompt language")
	cmd.Flags().BoolVar(&runCondense, "condense", false, "condense the memory through the model before each batch")
}

func loadQueries() ([]string, error) {
	queries := append([]string(nil), runQueries...)
	if runQueriesFile == "" {
		return queries, nil
	}
	f, err := os.Open(runQueriesFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", evidence.ErrInvalidArgument, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			queries = append(queries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", runQueriesFile, err)
	}
	return queries, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("top-n") {
		cfg.Run.TopN = runTopN
	}
	if runWorkers > 0 {
		cfg.Run.Workers = runWorkers
	}
	if runLanguage != "" {
		cfg.Run.Language = runLanguage
	}
	if runCondense {
		cfg.Run.CondenseMemory = true
	}
}

func executeRun(cmd *cobra.Command) (*investigate.RunResult, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyRunFlags(cmd, cfg)

	queries, err := loadQueries()
	if err != nil {
		return nil, err
	}

	s, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	retriever, err := newRetrieval(cfg, s)
	if err != nil {
		return nil, err
	}
	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	step := reasoning.NewStep(completer, reasoning.Options{
		MaxTokens:         cfg.Model.MaxNewTokens,
		CondenseMaxTokens: cfg.Run.CondenseMaxTokens,
		Temperature:       cfg.Model.Temperature,
	}, slog.Default())

	var condenser memory.Condenser
	if cfg.Run.CondenseMemory {
		condenser = step.NewCondenser(cfg.Run.Language)
	}
	iterator := investigate.NewIterator(step, investigate.IteratorOptions{
		Budget:    cfg.BatchBudget(),
		Language:  cfg.Run.Language,
		Condenser: condenser,
	}, slog.Default())

	runner := investigate.NewRunner(retriever, iterator, investigate.RunnerOptions{
		OutputDir: cfg.Run.OutputDir,
		TopN:      cfg.Run.TopN,
		Workers:   cfg.Run.Workers,
	}, slog.Default())

	result, runErr := runner.Run(ctx, queries)
	if result != nil {
		printRun(result)
	}
	return result, runErr
}

func printRun(result *investigate.RunResult) {
	fmt.Println()
	fmt.Printf("Run directory: %s (top %d)\n", result.Dir, result.TopN)
	for _, q := range result.Queries {
		fmt.Printf("  %q\n", q.Query)
		fmt.Printf("    Documents: %d  Findings: %d  Degraded: %d\n", len(q.Documents), q.Findings, q.Degraded)
		fmt.Printf("    Log: %s\n", q.Path)
		for _, id := range q.Failed {
			fmt.Printf("    Failed: %s\n", id)
		}
	}
}
