package selection

import (
	"fmt"
	"testing"
	"time"

	"polarity/internal/core"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func defaultConstraints() Constraints {
	return Constraints{
		TargetSelected:       80,
		MaxPerSource:         10,
		MaxTimeConcentration: 0.4,
		RecentWindow:         6 * time.Hour,
	}
}

// adversarialPool builds 200 candidates: 20 from src0, 10 each from
// src1..src18, with the first 60 published inside the recent window.
func adversarialPool() []core.ArticleRecord {
	candidates := make([]core.ArticleRecord, 200)
	for i := range candidates {
		source := "src0"
		if i >= 20 {
			source = fmt.Sprintf("src%d", 1+(i-20)/10)
		}
		published := testNow.Add(-24 * time.Hour)
		if i < 60 {
			published = testNow.Add(-1 * time.Hour)
		}
		candidates[i] = core.ArticleRecord{
			ID:           fmt.Sprintf("a%03d", i),
			Source:       source,
			PublishedAt:  published,
			DensityScore: 100 - float64(i)*0.3,
		}
	}
	return candidates
}

func TestValidate_RepairsAdversarialSelection(t *testing.T) {
	candidates := adversarialPool()
	c := defaultConstraints()

	// Service over-returns: 85 ids, 20 of them from src0, 50 recent.
	rawIDs := make([]int, 85)
	for i := range rawIDs {
		rawIDs[i] = i
	}

	selected := Validate(candidates, rawIDs, c, testNow)

	if len(selected) != 80 {
		t.Fatalf("expected exactly 80 selections, got %d", len(selected))
	}
	assertCompliant(t, selected, c)
}

func assertCompliant(t *testing.T, selected []core.ArticleRecord, c Constraints) {
	t.Helper()

	perSource := map[string]int{}
	seenID := map[string]bool{}
	seenGroup := map[string]bool{}
	recent := 0
	cutoff := testNow.Add(-c.RecentWindow)
	for _, a := range selected {
		if seenID[a.ID] {
			t.Errorf("article %s selected twice", a.ID)
		}
		seenID[a.ID] = true
		perSource[a.Source]++
		if a.DupGroupID != "" {
			if seenGroup[a.DupGroupID] {
				t.Errorf("dup group %s contributed twice", a.DupGroupID)
			}
			seenGroup[a.DupGroupID] = true
		}
		if a.PublishedAt.After(cutoff) {
			recent++
		}
	}
	for source, n := range perSource {
		if n > c.MaxPerSource {
			t.Errorf("source %s exceeds cap: %d > %d", source, n, c.MaxPerSource)
		}
	}
	recentCap := int(float64(c.TargetSelected) * c.MaxTimeConcentration)
	if recent > recentCap {
		t.Errorf("recent count %d exceeds cap %d", recent, recentCap)
	}
}

func TestValidate_DropsUnknownAndRepeatedIDs(t *testing.T) {
	candidates := []core.ArticleRecord{
		{ID: "a0", Source: "s0", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 90},
		{ID: "a1", Source: "s1", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 80},
	}
	c := Constraints{TargetSelected: 2, MaxPerSource: 1, MaxTimeConcentration: 1, RecentWindow: 6 * time.Hour}

	selected := Validate(candidates, []int{0, 0, -1, 99, 1}, c, testNow)

	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}
	if selected[0].ID != "a0" || selected[1].ID != "a1" {
		t.Errorf("unexpected selections: %s, %s", selected[0].ID, selected[1].ID)
	}
}

func TestValidate_DupGroupUniqueness(t *testing.T) {
	candidates := []core.ArticleRecord{
		{ID: "a0", Source: "s0", DupGroupID: "g1", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 90},
		{ID: "a1", Source: "s1", DupGroupID: "g1", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 85},
		{ID: "a2", Source: "s2", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 50},
	}
	c := Constraints{TargetSelected: 2, MaxPerSource: 5, MaxTimeConcentration: 1, RecentWindow: 6 * time.Hour}

	selected := Validate(candidates, []int{0, 1, 2}, c, testNow)

	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}
	if selected[0].ID != "a0" || selected[1].ID != "a2" {
		t.Errorf("syndicated copy should be skipped: got %s, %s", selected[0].ID, selected[1].ID)
	}
}

func TestValidate_RemovesExcessRecentLowestScoreFirst(t *testing.T) {
	// Target 4 at 50% concentration allows 2 recent; the service picked 3.
	candidates := []core.ArticleRecord{
		{ID: "r-low", Source: "s0", PublishedAt: testNow.Add(-1 * time.Hour), DensityScore: 40},
		{ID: "r-mid", Source: "s1", PublishedAt: testNow.Add(-2 * time.Hour), DensityScore: 60},
		{ID: "r-high", Source: "s2", PublishedAt: testNow.Add(-3 * time.Hour), DensityScore: 80},
		{ID: "old-1", Source: "s3", PublishedAt: testNow.Add(-20 * time.Hour), DensityScore: 70},
		{ID: "old-2", Source: "s4", PublishedAt: testNow.Add(-22 * time.Hour), DensityScore: 65},
	}
	c := Constraints{TargetSelected: 4, MaxPerSource: 1, MaxTimeConcentration: 0.5, RecentWindow: 6 * time.Hour}

	selected := Validate(candidates, []int{0, 1, 2, 3}, c, testNow)

	if len(selected) != 4 {
		t.Fatalf("expected 4 selections, got %d", len(selected))
	}
	ids := map[string]bool{}
	for _, a := range selected {
		ids[a.ID] = true
	}
	if ids["r-low"] {
		t.Error("lowest-scored recent article should have been removed")
	}
	if !ids["old-2"] {
		t.Error("top-up should have added the remaining older article")
	}
}

func TestValidate_TargetShrinksToCandidatePool(t *testing.T) {
	candidates := []core.ArticleRecord{
		{ID: "a0", Source: "s0", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 90},
	}
	c := defaultConstraints()

	selected := Validate(candidates, []int{0}, c, testNow)

	if len(selected) != 1 {
		t.Errorf("expected the whole 1-article pool, got %d", len(selected))
	}
}

func TestFallback_ProducesCompliantFullSelection(t *testing.T) {
	candidates := adversarialPool()
	c := defaultConstraints()

	selected := Fallback(candidates, c, testNow)

	if len(selected) != 80 {
		t.Fatalf("fallback should fill the target, got %d", len(selected))
	}
	assertCompliant(t, selected, c)
}

func TestFallback_PrefersHigherScores(t *testing.T) {
	candidates := []core.ArticleRecord{
		{ID: "low", Source: "s0", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 10},
		{ID: "high", Source: "s1", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 90},
		{ID: "mid", Source: "s2", PublishedAt: testNow.Add(-24 * time.Hour), DensityScore: 50},
	}
	c := Constraints{TargetSelected: 2, MaxPerSource: 1, MaxTimeConcentration: 1, RecentWindow: 6 * time.Hour}

	selected := Fallback(candidates, c, testNow)

	if len(selected) != 2 || selected[0].ID != "high" || selected[1].ID != "mid" {
		t.Errorf("fallback should take top scores in order, got %v", selectedIDs(selected))
	}
}

func selectedIDs(selected []core.ArticleRecord) []string {
	ids := make([]string, len(selected))
	for i, a := range selected {
		ids[i] = a.ID
	}
	return ids
}
