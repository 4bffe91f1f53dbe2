package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"polarity/internal/config"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent run statistics",
		Run:   statsRun,
	}
	cmd.Flags().Int("limit", 14, "How many recent runs to show")
	return cmd
}

func statsRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	db, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := db.RunStats().List(context.Background(), limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to list run stats: %v\n", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	fmt.Printf("%-12s %9s %9s %8s %8s %7s %6s %9s %s\n",
		"run", "collected", "selected", "clusters", "valid", "themes", "fail", "cost", "signal")
	for _, r := range runs {
		marker := "ok"
		if r.IsLowSignalDay {
			marker = "LOW"
		}
		fmt.Printf("%-12s %9d %9d %8d %8d %7d %6d  $%7.4f %s\n",
			r.RunDate, r.CollectedCount, r.SelectedCount, r.ClusterCount,
			r.ValidClusterCount, r.ThemeCount, r.FailedExtractions,
			r.EstimatedCostUSD, marker)
		for _, reason := range r.LowSignalReasons {
			fmt.Printf("             - %s\n", reason)
		}
	}
}
