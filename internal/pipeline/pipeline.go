// Package pipeline orchestrates one analysis run: density scoring, pruning,
// constrained selection, clustering, theme extraction, confidence, lifecycle
// tracking, and low-signal detection, with a run-stats record at the end.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"polarity/internal/clustering"
	"polarity/internal/core"
	"polarity/internal/density"
	"polarity/internal/extract"
	"polarity/internal/llm"
	"polarity/internal/logger"
	"polarity/internal/persistence"
	"polarity/internal/prune"
	"polarity/internal/signal"
	"polarity/internal/trends"
)

// Selector picks the article subset sent to clustering.
type Selector interface {
	Select(ctx context.Context, candidates []core.ArticleRecord, now time.Time) []core.ArticleRecord
}

// ClusterBuilder groups selected articles.
type ClusterBuilder interface {
	Build(ctx context.Context, articles []core.ArticleRecord) (*clustering.Result, error)
}

// ThemeExtractor turns valid clusters into themes.
type ThemeExtractor interface {
	ExtractAll(ctx context.Context, clusters []core.Cluster, now time.Time) *extract.Result
}

// CallCounter reports how many external calls have been issued.
type CallCounter interface {
	Counts() llm.CallCounts
}

// CostEstimator reports the estimated spend so far.
type CostEstimator interface {
	EstimatedUSD() float64
}

// Options bundles the pipeline's collaborators and stage parameters. Store,
// Counter, and Costs may be nil; the corresponding features are skipped.
type Options struct {
	Selector     Selector
	Clusters     ClusterBuilder
	Extractor    ThemeExtractor
	Store        persistence.Store
	Counter      CallCounter
	Costs        CostEstimator
	Density      density.Params
	Prune        prune.Params
	SignalLimits signal.Thresholds
	Trends       trends.Params
}

// Pipeline executes analysis runs.
type Pipeline struct {
	opts Options
}

// New creates a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Report is the outcome of one run: themes ordered by confidence score
// descending, plus the audit record.
type Report struct {
	Themes []core.Theme
	Stats  core.RunStats
}

// Run executes the full pipeline over the collected articles. Empty input
// and thin days produce a low-signal report, not an error; only storage and
// clustering failures are fatal.
func (p *Pipeline) Run(ctx context.Context, articles []core.ArticleRecord, now time.Time) (*Report, error) {
	stats := core.RunStats{
		RunDate:        now.UTC().Format("2006-01-02"),
		StartedAt:      now.UTC(),
		CollectedCount: len(articles),
	}

	var baseline llm.CallCounts
	if p.opts.Counter != nil {
		baseline = p.opts.Counter.Counts()
	}

	for i := range articles {
		density.ScoreArticle(&articles[i], p.opts.Density)
	}

	candidates, pruneStats := prune.Candidates(articles, p.opts.Prune)
	stats.UniqueCount = len(articles) - pruneStats.DuplicateHashes
	stats.CandidateCount = len(candidates)
	logger.Info("pruning complete",
		"input", pruneStats.Input,
		"below_floor", pruneStats.BelowFloor,
		"duplicates", pruneStats.DuplicateHashes,
		"candidates", pruneStats.Output)

	if len(candidates) == 0 {
		return p.finish(ctx, &stats, nil, nil, nil, baseline)
	}

	selected := p.opts.Selector.Select(ctx, candidates, now)
	stats.SelectedCount = len(selected)
	if p.opts.Counter != nil {
		stats.SelectionCalls = p.opts.Counter.Counts().Generate - baseline.Generate
	}
	if len(selected) == 0 {
		return p.finish(ctx, &stats, nil, nil, nil, baseline)
	}

	clusterResult, err := p.opts.Clusters.Build(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	stats.ClusterCount = len(clusterResult.Clusters)
	stats.ValidClusterCount = clusterResult.ValidCount

	extractResult := p.opts.Extractor.ExtractAll(ctx, clusterResult.Clusters, now)
	stats.FailedExtractions = extractResult.Failed
	if p.opts.Counter != nil {
		counts := p.opts.Counter.Counts()
		stats.ExtractionCalls = counts.Generate - baseline.Generate - stats.SelectionCalls
	}

	themes, err := p.mergeThemes(ctx, extractResult.Themes, now)
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, &stats, selected, clusterResult.Clusters, themes, baseline)
}

// mergeThemes folds each extracted theme into its persisted predecessor (if
// any) and writes the result back. Without a store, themes pass through as
// new.
func (p *Pipeline) mergeThemes(ctx context.Context, extracted []core.Theme, now time.Time) ([]core.Theme, error) {
	merged := make([]core.Theme, 0, len(extracted))
	for _, t := range extracted {
		var previous *core.Theme
		if p.opts.Store != nil {
			prev, err := p.opts.Store.Themes().GetByName(ctx, t.Name)
			if err != nil {
				return nil, fmt.Errorf("theme lookup failed for %q: %w", t.Name, err)
			}
			previous = prev
		}

		result := trends.Merge(t, previous, now, p.opts.Trends)

		if p.opts.Store != nil {
			if err := p.opts.Store.Themes().Upsert(ctx, &result); err != nil {
				return nil, fmt.Errorf("theme upsert failed for %q: %w", result.Name, err)
			}
		}
		merged = append(merged, result)
	}
	return merged, nil
}

// finish assembles the report, runs low-signal detection, and persists the
// run record.
func (p *Pipeline) finish(ctx context.Context, stats *core.RunStats, selected []core.ArticleRecord, clusters []core.Cluster, themes []core.Theme, baseline llm.CallCounts) (*Report, error) {
	stats.ThemeCount = len(themes)
	if p.opts.Counter != nil {
		stats.EmbeddingCalls = p.opts.Counter.Counts().Embed - baseline.Embed
	}
	if p.opts.Costs != nil {
		stats.EstimatedCostUSD = p.opts.Costs.EstimatedUSD()
	}

	assessment := signal.Detect(selected, clusters, p.opts.SignalLimits)
	stats.IsLowSignalDay = assessment.IsLowSignal
	stats.LowSignalReasons = assessment.Reasons
	if assessment.IsLowSignal {
		logger.Warn("low-signal day detected", "reasons", assessment.Reasons)
	}

	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].ConfidenceScore > themes[j].ConfidenceScore
	})

	if p.opts.Store != nil {
		if err := p.opts.Store.RunStats().Create(ctx, stats); err != nil {
			return nil, fmt.Errorf("run stats write failed: %w", err)
		}
	}

	logger.Info("run complete",
		"run_date", stats.RunDate,
		"themes", stats.ThemeCount,
		"valid_clusters", stats.ValidClusterCount,
		"failed_extractions", stats.FailedExtractions,
		"estimated_cost_usd", stats.EstimatedCostUSD,
		"low_signal", stats.IsLowSignalDay)

	return &Report{Themes: themes, Stats: *stats}, nil
}
