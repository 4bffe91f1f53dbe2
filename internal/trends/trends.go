// Package trends tracks theme lifecycle across analysis runs. A theme seen
// for the first time is NEW; one refreshed recently is STABLE; one whose
// last update has aged past the fading window is FADING.
package trends

import (
	"time"

	"github.com/google/uuid"

	"polarity/internal/core"
)

// Params controls lifecycle classification.
type Params struct {
	FadingAfter time.Duration // Age of LastUpdated beyond which a theme is FADING
}

// DefaultParams returns the production lifecycle window.
func DefaultParams() Params {
	return Params{FadingAfter: 72 * time.Hour}
}

// Resolve classifies a theme given its previously persisted record, or nil
// when the theme has never been seen before.
func Resolve(previous *core.Theme, now time.Time, p Params) core.TrendStatus {
	if previous == nil {
		return core.TrendNew
	}
	if now.Sub(previous.LastUpdated) <= p.FadingAfter {
		return core.TrendStable
	}
	return core.TrendFading
}

// Merge folds a freshly extracted theme into its persisted predecessor.
// Identity (ID, FirstDetected) comes from the predecessor; evidence and
// conclusions (citations, sentiment, confidence, reasoning) come from the
// current run. MentionCount accumulates across runs.
func Merge(current core.Theme, previous *core.Theme, now time.Time, p Params) core.Theme {
	current.TrendStatus = Resolve(previous, now, p)
	current.LastUpdated = now

	if previous == nil {
		if current.ID == "" {
			current.ID = uuid.New().String()
		}
		current.FirstDetected = now
		current.MentionCount = 1
		return current
	}

	current.ID = previous.ID
	current.FirstDetected = previous.FirstDetected
	current.MentionCount = previous.MentionCount + 1
	return current
}
