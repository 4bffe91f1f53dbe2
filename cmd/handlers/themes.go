package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"polarity/internal/config"
)

// NewThemesCmd creates the themes command.
func NewThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the persisted theme registry",
		Run:   themesRun,
	}
}

func themesRun(cmd *cobra.Command, args []string) {
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

	themes, err := db.Themes().List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to list themes: %v\n", err)
		os.Exit(1)
	}

	if len(themes) == 0 {
		fmt.Println("No themes recorded yet.")
		return
	}

	for _, t := range themes {
		verified := 0
		for _, c := range t.Citations {
			if c.IsVerified {
				verified++
			}
		}
		fmt.Printf("%-40s %-8s %-6s %3d  %-6s mentions=%d citations=%d\n",
			t.Name, t.Sentiment, t.Confidence, t.ConfidenceScore,
			t.TrendStatus, t.MentionCount, verified)
		if len(t.Industries) > 0 {
			fmt.Printf("%-40s %s\n", "", strings.Join(t.Industries, ", "))
		}
	}
}
