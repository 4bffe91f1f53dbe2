// Package prune deterministically reduces the scored article pool to a
// bounded candidate set before any external call is made.
package prune

import (
	"sort"

	"polarity/internal/core"
)

// Params holds pruner thresholds.
type Params struct {
	DensityFloor      float64 // Drop articles scoring below this
	CandidatePoolSize int     // Hard cap on the surviving pool
	MaxPerSource      int     // Final hard cap; the pruner applies 2x as a soft cap
}

// Stats records how many articles each pruning step removed, for
// observability. DistinctSources counts publishers left in the final pool.
type Stats struct {
	Input           int
	BelowFloor      int
	DuplicateHashes int
	SoftCapDropped  int
	Truncated       int
	Output          int
	DistinctSources int
}

// Candidates prunes scored articles down to at most CandidatePoolSize
// candidates. Steps, in order: density floor, exact content-hash dedup
// (first occurrence wins), score-descending sort with a soft per-source cap
// of 2x MaxPerSource, truncation. The soft cap is deliberately looser than
// the selector's hard cap so one publisher cannot crowd out the pool before
// the selection stage sees it.
func Candidates(articles []core.ArticleRecord, p Params) ([]core.ArticleRecord, Stats) {
	stats := Stats{Input: len(articles)}

	// Step 1: absolute density floor.
	kept := make([]core.ArticleRecord, 0, len(articles))
	for _, a := range articles {
		if a.DensityScore < p.DensityFloor {
			stats.BelowFloor++
			continue
		}
		kept = append(kept, a)
	}

	// Step 2: exact content-hash duplicates, first occurrence wins.
	seenHash := make(map[string]bool, len(kept))
	deduped := kept[:0]
	for _, a := range kept {
		if a.ContentHash != "" && seenHash[a.ContentHash] {
			stats.DuplicateHashes++
			continue
		}
		seenHash[a.ContentHash] = true
		deduped = append(deduped, a)
	}

	// Step 3: score-descending order (ID ascending on ties keeps pruning
	// reproducible), then the soft per-source cap.
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].DensityScore != deduped[j].DensityScore {
			return deduped[i].DensityScore > deduped[j].DensityScore
		}
		return deduped[i].ID < deduped[j].ID
	})

	softCap := 2 * p.MaxPerSource
	perSource := make(map[string]int)
	capped := make([]core.ArticleRecord, 0, len(deduped))
	for _, a := range deduped {
		if softCap > 0 && perSource[a.Source] >= softCap {
			stats.SoftCapDropped++
			continue
		}
		perSource[a.Source]++
		capped = append(capped, a)
	}

	// Step 4: truncate to the pool size.
	if len(capped) > p.CandidatePoolSize {
		stats.Truncated = len(capped) - p.CandidatePoolSize
		capped = capped[:p.CandidatePoolSize]
	}

	sources := make(map[string]bool)
	for _, a := range capped {
		sources[a.Source] = true
	}
	stats.Output = len(capped)
	stats.DistinctSources = len(sources)

	return capped, stats
}
