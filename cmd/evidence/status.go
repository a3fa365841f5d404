package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bull/evidence-rag/internal/config"
	"github.com/bull/evidence-rag/internal/resultlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index contents and available runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		s, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.catalog.Stats(ctx)
		if err != nil {
			return err
		}
		points, err := s.index.PointsCount(ctx)
		if err != nil {
			return err
		}
		runs, err := resultlog.ListRuns(cfg.Run.OutputDir)
		if err != nil {
			return err
		}

		fmt.Printf("Documents: %d\n", stats.Documents)
		fmt.Printf("Sentences: %d\n", stats.Sentences)
		fmt.Printf("Vector points: %d\n", points)
		if !stats.LastIngested.IsZero() {
			fmt.Printf("Last ingested: %s\n", stats.LastIngested.Local().Format("2006-01-02 15:04:05"))
		}
		if uint64(stats.Sentences) != points {
			fmt.Println("Warning: catalog and vector index disagree, consider re-ingesting")
		}
		fmt.Printf("Runs: %d\n", len(runs))
		for _, r := range runs {
			fmt.Printf("  %s\n", r.Name)
		}
		return nil
	},
}
