package confidence

import (
	"testing"
	"time"

	"polarity/internal/core"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func verifiedCitation(source string, tier int, published time.Time) core.Citation {
	return core.Citation{
		Source:      source,
		Tier:        tier,
		PublishedAt: published,
		IsVerified:  true,
	}
}

func TestScore_NoCitationsIsZeroLow(t *testing.T) {
	score, label := Score(nil, core.ConfidenceHigh)
	if score != 0 || label != core.ConfidenceLow {
		t.Errorf("no citations must yield 0/LOW, got %d/%s", score, label)
	}
}

func TestScore_UnverifiedCitationsDoNotCount(t *testing.T) {
	citations := []core.Citation{
		{Source: "reuters", Tier: 1, PublishedAt: base, IsVerified: false},
		{Source: "bloomberg", Tier: 1, PublishedAt: base, IsVerified: false},
	}
	score, label := Score(citations, core.ConfidenceHigh)
	if score != 0 || label != core.ConfidenceLow {
		t.Errorf("unverified-only citations must yield 0/LOW, got %d/%s", score, label)
	}
}

func TestScore_SingleSourceIsAlwaysLow(t *testing.T) {
	citations := []core.Citation{
		verifiedCitation("reuters", 1, base),
		verifiedCitation("reuters", 1, base.Add(-1*time.Hour)),
		verifiedCitation("reuters", 1, base.Add(-2*time.Hour)),
		verifiedCitation("reuters", 1, base.Add(-3*time.Hour)),
	}
	_, label := Score(citations, core.ConfidenceHigh)
	if label != core.ConfidenceLow {
		t.Errorf("single-source theme must be LOW, got %s", label)
	}
}

func TestScore_MoreEvidenceNeverLowersScore(t *testing.T) {
	citations := []core.Citation{
		verifiedCitation("reuters", 1, base),
	}
	prev, _ := Score(citations, core.ConfidenceMedium)
	sources := []string{"bloomberg", "wsj", "ft", "cnbc"}
	for i, source := range sources {
		citations = append(citations, verifiedCitation(source, 2, base.Add(-time.Duration(i+1)*time.Hour)))
		score, _ := Score(citations, core.ConfidenceMedium)
		if score < prev {
			t.Errorf("adding a citation lowered the score: %d -> %d", prev, score)
		}
		prev = score
	}
}

func TestScore_Components(t *testing.T) {
	// 3 citations (45) + 3 sources (20) + 2 tier-1 (20) + proximity (10) = 95.
	citations := []core.Citation{
		verifiedCitation("reuters", 1, base),
		verifiedCitation("bloomberg", 1, base.Add(-2*time.Hour)),
		verifiedCitation("wsj", 2, base.Add(-30*time.Hour)),
	}
	score, label := Score(citations, core.ConfidenceHigh)
	if score != 95 {
		t.Errorf("expected score 95, got %d", score)
	}
	if label != core.ConfidenceHigh {
		t.Errorf("strong evidence should keep the HIGH label, got %s", label)
	}
}

func TestScore_CitationCountCapped(t *testing.T) {
	var citations []core.Citation
	for i := 0; i < 10; i++ {
		source := "reuters"
		if i%2 == 0 {
			source = "bloomberg"
		}
		// Spread far apart in time, tier 2, so only the count component fires.
		citations = append(citations, verifiedCitation(source, 2, base.Add(-time.Duration(i*24)*time.Hour)))
	}
	score, _ := Score(citations, core.ConfidenceMedium)
	// Capped count (60) + two sources (10); no tier-1, no proximity.
	if score != 70 {
		t.Errorf("expected capped score 70, got %d", score)
	}
}

func TestScore_DemotesClaimedHighOnWeakEvidence(t *testing.T) {
	// 2 citations (30) + 2 sources (10) = 40: below the HIGH floor of 50.
	citations := []core.Citation{
		verifiedCitation("reuters", 2, base),
		verifiedCitation("bloomberg", 2, base.Add(-30*time.Hour)),
	}
	score, label := Score(citations, core.ConfidenceHigh)
	if score != 40 {
		t.Errorf("expected score 40, got %d", score)
	}
	if label != core.ConfidenceMedium {
		t.Errorf("claimed HIGH with score 40 should demote to MEDIUM, got %s", label)
	}
}

func TestScore_NeverPromotesClaimedLabel(t *testing.T) {
	citations := []core.Citation{
		verifiedCitation("reuters", 1, base),
		verifiedCitation("bloomberg", 1, base.Add(-1*time.Hour)),
		verifiedCitation("wsj", 1, base.Add(-2*time.Hour)),
	}
	_, label := Score(citations, core.ConfidenceLow)
	if label != core.ConfidenceLow {
		t.Errorf("claimed LOW must never be raised, got %s", label)
	}
}

func TestScore_ClampedAt100(t *testing.T) {
	var citations []core.Citation
	sources := []string{"reuters", "bloomberg", "wsj", "ft", "cnbc"}
	for i, source := range sources {
		citations = append(citations, verifiedCitation(source, 1, base.Add(-time.Duration(i)*time.Hour)))
	}
	score, _ := Score(citations, core.ConfidenceHigh)
	if score != 100 {
		t.Errorf("expected clamped 100, got %d", score)
	}
}
