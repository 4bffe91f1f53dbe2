package selection

import (
	"math"
	"sort"
	"time"

	"polarity/internal/core"
)

// Constraints are the hard selection rules the validator guarantees.
// The selection service is told about them, but its output is never trusted:
// the validator re-derives a compliant list no matter what came back.
type Constraints struct {
	TargetSelected       int           // Number of articles to select
	MaxPerSource         int           // Hard cap per publisher
	MaxTimeConcentration float64       // Max fraction of selections inside the recent window
	RecentWindow         time.Duration // "Recent" lookback, typically 6h
}

// Validate deterministically repairs a raw id list from the selection
// service into a compliant selection. It is a pure function of
// (candidates, rawIDs, constraints, now) and guarantees that:
//   - every returned article is a candidate, and none repeats;
//   - no source exceeds MaxPerSource;
//   - no dup group contributes more than one article;
//   - at most floor(targetLen * MaxTimeConcentration) articles are recent,
//     where targetLen = min(TargetSelected, len(candidates));
//   - the result has exactly targetLen articles whenever the constraints
//     leave that many candidates admissible.
func Validate(candidates []core.ArticleRecord, rawIDs []int, c Constraints, now time.Time) []core.ArticleRecord {
	targetLen := c.TargetSelected
	if len(candidates) < targetLen {
		targetLen = len(candidates)
	}
	recentCap := int(math.Floor(float64(targetLen) * c.MaxTimeConcentration))
	cutoff := now.Add(-c.RecentWindow)

	perSource := make(map[string]int)
	seenGroup := make(map[string]bool)
	seenIdx := make(map[int]bool)

	// Pass 1: keep service-picked ids, in input order, that exist and do not
	// break the per-source cap or dup-group uniqueness.
	var selected []core.ArticleRecord
	for _, id := range rawIDs {
		if id < 0 || id >= len(candidates) || seenIdx[id] {
			continue
		}
		a := candidates[id]
		if perSource[a.Source] >= c.MaxPerSource {
			continue
		}
		if a.DupGroupID != "" && seenGroup[a.DupGroupID] {
			continue
		}
		seenIdx[id] = true
		perSource[a.Source]++
		if a.DupGroupID != "" {
			seenGroup[a.DupGroupID] = true
		}
		selected = append(selected, a)
	}

	// Pass 2: enforce time concentration. Excess recent articles leave
	// lowest-score-first.
	recentCount := 0
	for _, a := range selected {
		if a.PublishedAt.After(cutoff) {
			recentCount++
		}
	}
	if recentCount > recentCap {
		excess := recentCount - recentCap
		doomed := lowestScoredRecent(selected, cutoff, excess)
		kept := selected[:0]
		for i, a := range selected {
			if doomed[i] {
				perSource[a.Source]--
				if a.DupGroupID != "" {
					seenGroup[a.DupGroupID] = false
				}
				continue
			}
			kept = append(kept, a)
		}
		selected = kept
		recentCount = recentCap
	}

	// Pass 3: deterministic top-up by density score, respecting all three
	// constraints, until the target size is reached or candidates run out.
	if len(selected) < targetLen {
		order := byScoreDesc(candidates)
		for _, id := range order {
			if len(selected) >= targetLen {
				break
			}
			if seenIdx[id] {
				continue
			}
			a := candidates[id]
			if perSource[a.Source] >= c.MaxPerSource {
				continue
			}
			if a.DupGroupID != "" && seenGroup[a.DupGroupID] {
				continue
			}
			recent := a.PublishedAt.After(cutoff)
			if recent && recentCount >= recentCap {
				continue
			}
			seenIdx[id] = true
			perSource[a.Source]++
			if a.DupGroupID != "" {
				seenGroup[a.DupGroupID] = true
			}
			if recent {
				recentCount++
			}
			selected = append(selected, a)
		}
	}

	if len(selected) > targetLen {
		selected = selected[:targetLen]
	}
	return selected
}

// Fallback returns a compliant selection without any service input: the raw
// id list is simply every candidate in score order, and Validate applies the
// constraints. Used when the selection call fails after retries.
func Fallback(candidates []core.ArticleRecord, c Constraints, now time.Time) []core.ArticleRecord {
	return Validate(candidates, byScoreDesc(candidates), c, now)
}

// lowestScoredRecent marks the n lowest-scored recent entries of selected.
// Returns a set of positions in the selected slice.
func lowestScoredRecent(selected []core.ArticleRecord, cutoff time.Time, n int) map[int]bool {
	type scored struct {
		pos   int
		score float64
	}
	var recent []scored
	for i, a := range selected {
		if a.PublishedAt.After(cutoff) {
			recent = append(recent, scored{pos: i, score: a.DensityScore})
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].score < recent[j].score
	})

	doomed := make(map[int]bool, n)
	for i := 0; i < n && i < len(recent); i++ {
		doomed[recent[i].pos] = true
	}
	return doomed
}

// byScoreDesc returns candidate indexes ordered by density score descending,
// ID ascending on ties, so the top-up order is reproducible.
func byScoreDesc(candidates []core.ArticleRecord) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := candidates[order[i]], candidates[order[j]]
		if a.DensityScore != b.DensityScore {
			return a.DensityScore > b.DensityScore
		}
		return a.ID < b.ID
	})
	return order
}
