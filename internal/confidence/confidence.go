// Package confidence derives a theme's confidence from its verified evidence
// rather than trusting the label the extraction service proposed.
package confidence

import (
	"time"

	"polarity/internal/core"
)

// Scoring weights. The score is built only from verified citations, so a
// theme cannot talk its way into high confidence.
const (
	perCitation    = 15
	citationCap    = 60
	threeSourceAdd = 20
	twoSourceAdd   = 10
	perTierOne     = 10
	tierOneCap     = 20
	proximityAdd   = 10
	proximityGap   = 6 * time.Hour
	maxScore       = 100

	demoteHighBelow = 50
	demoteAllBelow  = 30
)

// Score computes the evidence-derived confidence score and label for a set
// of verified citations, then reconciles against the label the extraction
// service claimed. The claimed label can only be demoted, never promoted.
func Score(citations []core.Citation, claimed core.ConfidenceLabel) (int, core.ConfidenceLabel) {
	verified := make([]core.Citation, 0, len(citations))
	for _, c := range citations {
		if c.IsVerified {
			verified = append(verified, c)
		}
	}

	if len(verified) == 0 {
		return 0, core.ConfidenceLow
	}

	score := 0

	if pts := len(verified) * perCitation; pts > citationCap {
		score += citationCap
	} else {
		score += pts
	}

	sources := make(map[string]struct{})
	tierOne := 0
	for _, c := range verified {
		sources[c.Source] = struct{}{}
		if c.Tier == 1 {
			tierOne++
		}
	}
	switch {
	case len(sources) >= 3:
		score += threeSourceAdd
	case len(sources) == 2:
		score += twoSourceAdd
	}

	if pts := tierOne * perTierOne; pts > tierOneCap {
		score += tierOneCap
	} else {
		score += pts
	}

	if closePair(verified) {
		score += proximityAdd
	}

	if score > maxScore {
		score = maxScore
	}

	return score, reconcile(score, claimed, len(sources))
}

// reconcile applies the hard floors over the claimed label. Independent
// corroboration is non-negotiable: a single-source theme is LOW no matter
// how many citations it stacked from that source.
func reconcile(score int, claimed core.ConfidenceLabel, uniqueSources int) core.ConfidenceLabel {
	if uniqueSources < 2 {
		return core.ConfidenceLow
	}
	if score < demoteAllBelow {
		return core.ConfidenceLow
	}

	label := claimed
	switch label {
	case core.ConfidenceLow, core.ConfidenceMedium, core.ConfidenceHigh:
	default:
		label = core.ConfidenceMedium
	}
	if label == core.ConfidenceHigh && score < demoteHighBelow {
		label = core.ConfidenceMedium
	}
	return label
}

// closePair reports whether any two citations were published within the
// proximity gap of each other, a sign the story broke across outlets at once.
func closePair(citations []core.Citation) bool {
	for i := 0; i < len(citations); i++ {
		for j := i + 1; j < len(citations); j++ {
			gap := citations[i].PublishedAt.Sub(citations[j].PublishedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap <= proximityGap {
				return true
			}
		}
	}
	return false
}
