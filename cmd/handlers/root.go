// Package handlers holds the cobra command constructors for the polarity CLI.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"polarity/internal/config"
)

var cfgFile string

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polarity",
		Short: "Extract citation-backed investment themes from daily news",
		Long: `Polarity - Investment Theme Analysis

Turns a day's collected news articles into a small set of investment themes,
each backed by verified verbatim citations.

Core workflow:
  1. Score and prune articles by information density
  2. Select a bounded, source-diverse subset
  3. Cluster by semantic similarity
  4. Extract one theme per valid cluster, with quote verification
  5. Track theme lifecycle across runs

Examples:
  # Run the full analysis over a day's collected articles
  polarity analyze articles.json

  # List the persisted theme registry
  polarity themes

  # Show recent run statistics
  polarity stats`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .polarity.yaml)")

	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewThemesCmd())
	rootCmd.AddCommand(NewStatsCmd())

	cobra.OnInitialize(initConfig)

	return rootCmd
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	_, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		// Keep going; commands that need credentials validate before any call.
	}
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
