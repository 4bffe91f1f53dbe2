// Package signal flags analysis runs whose input was too thin or too
// homogeneous to support real conclusions. A low-signal run still produces
// themes; it just carries a warning the report surfaces up front.
package signal

import (
	"fmt"

	"polarity/internal/core"
)

// Thresholds define what counts as a low-signal day.
type Thresholds struct {
	MinValidClusters       int     // Below this many valid clusters the day is thin
	MaxSummaryOnlyFraction float64 // Above this fraction of summary-only selected articles the evidence is shallow
	MinUniqueSources       int     // Below this many distinct publishers across valid clusters the view is narrow
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinValidClusters:       5,
		MaxSummaryOnlyFraction: 0.5,
		MinUniqueSources:       3,
	}
}

// Assessment is the outcome of the low-signal check. Reasons are
// human-readable and ordered: cluster count, content depth, source breadth.
type Assessment struct {
	IsLowSignal bool
	Reasons     []string
}

// Detect evaluates one run. selected is the post-validation article set and
// clusters is the full cluster list (valid and invalid). Any single trigger
// marks the day low-signal; all triggered reasons are reported.
func Detect(selected []core.ArticleRecord, clusters []core.Cluster, t Thresholds) Assessment {
	var reasons []string

	validCount := 0
	validSources := make(map[string]struct{})
	for i := range clusters {
		if !clusters[i].Valid() {
			continue
		}
		validCount++
		for _, a := range clusters[i].Articles {
			validSources[a.Source] = struct{}{}
		}
	}

	if validCount < t.MinValidClusters {
		reasons = append(reasons, fmt.Sprintf("only %d valid clusters formed (minimum %d)", validCount, t.MinValidClusters))
	}

	if len(selected) > 0 {
		summaryOnly := 0
		for i := range selected {
			if selected[i].ContentMode == core.ContentSummaryOnly {
				summaryOnly++
			}
		}
		fraction := float64(summaryOnly) / float64(len(selected))
		if fraction > t.MaxSummaryOnlyFraction {
			reasons = append(reasons, fmt.Sprintf("%.0f%% of selected articles are summary-only (limit %.0f%%)",
				fraction*100, t.MaxSummaryOnlyFraction*100))
		}
	}

	if len(validSources) < t.MinUniqueSources {
		reasons = append(reasons, fmt.Sprintf("only %d unique sources across valid clusters (minimum %d)", len(validSources), t.MinUniqueSources))
	}

	return Assessment{IsLowSignal: len(reasons) > 0, Reasons: reasons}
}
