package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bull/evidence-rag/internal/aggregate"
	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/resultlog"
)

var summarizeRun string

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Condense the findings of a run into one meta-summary per query",
	Long: `Reads every result log of a run directory and asks the model for a
cross-document summary with references to the most relevant documents.
Prints the summaries as JSON. Defaults to the latest run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		run, err := resultlog.ResolveRun(cfg.Run.OutputDir, summarizeRun)
		if err != nil {
			return err
		}
		return summarize(cmd, cfg, run.Path)
	},
}

var investigateCmd = &cobra.Command{
	Use:   "investigate",
	Short: "Run the queries, then summarize the run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := executeRun(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return summarize(cmd, cfg, result.Dir)
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeRun, "run", "", "run directory name (default: latest)")
	addRunFlags(investigateCmd)
}

func summarize(cmd *cobra.Command, cfg *config.Config, runDir string) error {
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	aggregator := aggregate.New(completer, aggregate.Options{
		MaxTokens:   cfg.Run.AggregateMaxTokens,
		Temperature: cfg.Model.Temperature,
	}, slog.Default())

	slog.Info("Summarizing run", "dir", runDir)
	metas, err := aggregator.SummarizeRun(cmd.Context(), runDir)
	if err != nil {
		return err
	}
	if metas == nil {
		metas = []evidence.MetaSummary{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metas); err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	return nil
}
