package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"polarity/internal/citecheck"
	"polarity/internal/clustering"
	"polarity/internal/config"
	"polarity/internal/core"
	"polarity/internal/cost"
	"polarity/internal/density"
	"polarity/internal/extract"
	"polarity/internal/llm"
	"polarity/internal/logger"
	"polarity/internal/pipeline"
	"polarity/internal/prune"
	"polarity/internal/selection"
	"polarity/internal/signal"
	"polarity/internal/trends"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [articles.json]",
		Short: "Run the full theme analysis over a day's collected articles",
		Long: `Run the analysis pipeline once over collected articles.

The input file holds the JSON array of articles produced by the ingestion
job. Articles older than the lookback window are dropped before scoring.

Examples:
  polarity analyze articles.json
  polarity analyze --as-of 2026-08-30T06:00:00Z articles.json`,
		Args: cobra.ExactArgs(1),
		Run:  analyzeRun,
	}

	cmd.Flags().String("as-of", "", "Reference time for the run (RFC 3339, default now)")

	return cmd
}

func analyzeRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	if asOf, _ := cmd.Flags().GetString("as-of"); asOf != "" {
		parsed, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Invalid --as-of time: %v\n", err)
			os.Exit(1)
		}
		now = parsed.UTC()
	}

	articles, err := loadArticles(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load articles: %v\n", err)
		os.Exit(1)
	}
	articles = withinLookback(articles, now, time.Duration(cfg.Pipeline.LookbackHours)*time.Hour)
	logger.Info("articles loaded", "file", args[0], "in_window", len(articles))

	client, err := llm.NewClient(cfg.Gemini)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize AI client: %v\n", err)
		os.Exit(1)
	}
	tracker := cost.NewTracker(cfg.Gemini.Model, cfg.Gemini.EmbeddingModel)
	client.SetCostTracker(tracker)

	db, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	constraints := selection.Constraints{
		TargetSelected:       cfg.Pipeline.Selection.TargetSelected,
		MaxPerSource:         cfg.Pipeline.Selection.MaxPerSource,
		MaxTimeConcentration: cfg.Pipeline.Selection.MaxTimeConcentration,
		RecentWindow:         cfg.Pipeline.Selection.RecentWindow(),
	}
	citeParams := citecheck.Params{
		FuzzyThreshold: cfg.Pipeline.Citations.FuzzyThreshold,
		AnchorWords:    cfg.Pipeline.Citations.AnchorWords,
	}
	clusterParams := clustering.Params{
		DistanceThreshold: cfg.Pipeline.Clustering.DistanceThreshold,
		MinClusterSize:    cfg.Pipeline.Clustering.MinClusterSize,
		MinPublishers:     cfg.Pipeline.Clustering.MinPublishers,
		SummaryTruncate:   cfg.Pipeline.Clustering.SummaryTruncate,
	}

	pipe := pipeline.New(pipeline.Options{
		Selector:  selection.NewSelector(client, constraints),
		Clusters:  clustering.NewBuilder(client, clusterParams),
		Extractor: extract.NewExtractor(client, citeParams, cfg.Gemini.ConcurrentExtractions),
		Store:     db,
		Counter:   client,
		Costs:     tracker,
		Density:   density.Params{MinWordCount: cfg.Pipeline.Density.MinWordCount},
		Prune: prune.Params{
			DensityFloor:      cfg.Pipeline.Density.Floor,
			CandidatePoolSize: cfg.Pipeline.Prune.CandidatePoolSize,
			MaxPerSource:      cfg.Pipeline.Selection.MaxPerSource,
		},
		SignalLimits: signal.Thresholds{
			MinValidClusters:       cfg.Pipeline.Signal.MinValidClusters,
			MaxSummaryOnlyFraction: cfg.Pipeline.Signal.MaxSummaryOnlyFraction,
			MinUniqueSources:       cfg.Pipeline.Signal.MinUniqueSources,
		},
		Trends: trends.Params{FadingAfter: cfg.Pipeline.Trends.FadingAfter()},
	})

	report, err := pipe.Run(context.Background(), articles, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Analysis failed: %v\n", err)
		os.Exit(1)
	}

	printReport(report)
}

// loadArticles reads the ingestion job's JSON output.
func loadArticles(path string) ([]core.ArticleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var articles []core.ArticleRecord
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("invalid articles file: %w", err)
	}
	return articles, nil
}

func withinLookback(articles []core.ArticleRecord, now time.Time, lookback time.Duration) []core.ArticleRecord {
	if lookback <= 0 {
		return articles
	}
	cutoff := now.Add(-lookback)
	kept := articles[:0]
	for _, a := range articles {
		if !a.PublishedAt.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

func printReport(report *pipeline.Report) {
	stats := report.Stats

	if stats.IsLowSignalDay {
		fmt.Println("⚠️  LOW-SIGNAL DAY")
		for _, reason := range stats.LowSignalReasons {
			fmt.Printf("   - %s\n", reason)
		}
		fmt.Println()
	}

	fmt.Printf("📊 Run %s: %d themes from %d articles (%d selected, %d/%d valid clusters)\n\n",
		stats.RunDate, stats.ThemeCount, stats.CollectedCount, stats.SelectedCount,
		stats.ValidClusterCount, stats.ClusterCount)

	for i, theme := range report.Themes {
		fmt.Printf("%d. %s  [%s | %s %d | %s]\n", i+1, theme.Name,
			theme.Sentiment, theme.Confidence, theme.ConfidenceScore, theme.TrendStatus)
		if len(theme.Industries) > 0 {
			fmt.Printf("   Industries: %s\n", strings.Join(theme.Industries, ", "))
		}
		if theme.Reasoning != "" {
			fmt.Printf("   %s\n", theme.Reasoning)
		}
		for _, c := range theme.Citations {
			fmt.Printf("   • %q — %s (%s)\n", c.Quote, c.Source, c.URL)
		}
		fmt.Println()
	}

	fmt.Printf("Calls: %d selection, %d extraction (%d failed), %d embedding. Estimated cost: $%.4f\n",
		stats.SelectionCalls, stats.ExtractionCalls, stats.FailedExtractions,
		stats.EmbeddingCalls, stats.EstimatedCostUSD)
}
