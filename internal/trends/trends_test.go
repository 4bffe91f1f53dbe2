package trends

import (
	"testing"
	"time"

	"polarity/internal/core"
)

var runTime = time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

func TestResolve_NeverSeenIsNew(t *testing.T) {
	if got := Resolve(nil, runTime, DefaultParams()); got != core.TrendNew {
		t.Errorf("expected NEW, got %s", got)
	}
}

func TestResolve_RecentlyUpdatedIsStable(t *testing.T) {
	previous := &core.Theme{LastUpdated: runTime.Add(-24 * time.Hour)}
	if got := Resolve(previous, runTime, DefaultParams()); got != core.TrendStable {
		t.Errorf("expected STABLE, got %s", got)
	}
}

func TestResolve_StaleIsFading(t *testing.T) {
	previous := &core.Theme{LastUpdated: runTime.Add(-96 * time.Hour)}
	if got := Resolve(previous, runTime, DefaultParams()); got != core.TrendFading {
		t.Errorf("expected FADING, got %s", got)
	}
}

func TestResolve_BoundaryIsStable(t *testing.T) {
	previous := &core.Theme{LastUpdated: runTime.Add(-72 * time.Hour)}
	if got := Resolve(previous, runTime, DefaultParams()); got != core.TrendStable {
		t.Errorf("exactly at the window should be STABLE, got %s", got)
	}
}

func TestMerge_FirstSighting(t *testing.T) {
	current := core.Theme{Name: "AI capex supercycle", ConfidenceScore: 70}

	merged := Merge(current, nil, runTime, DefaultParams())

	if merged.TrendStatus != core.TrendNew {
		t.Errorf("expected NEW, got %s", merged.TrendStatus)
	}
	if merged.ID == "" {
		t.Error("first sighting should be assigned an ID")
	}
	if !merged.FirstDetected.Equal(runTime) || !merged.LastUpdated.Equal(runTime) {
		t.Error("timestamps should be set to the run time")
	}
	if merged.MentionCount != 1 {
		t.Errorf("expected mention count 1, got %d", merged.MentionCount)
	}
}

func TestMerge_KeepsIdentityAccumulatesMentions(t *testing.T) {
	firstSeen := runTime.Add(-48 * time.Hour)
	previous := &core.Theme{
		ID:            "theme-1",
		Name:          "AI capex supercycle",
		FirstDetected: firstSeen,
		LastUpdated:   runTime.Add(-24 * time.Hour),
		MentionCount:  3,
	}
	current := core.Theme{
		ID:              "fresh-uuid",
		Name:            "AI capex supercycle",
		Sentiment:       core.SentimentBullish,
		ConfidenceScore: 85,
	}

	merged := Merge(current, previous, runTime, DefaultParams())

	if merged.ID != "theme-1" {
		t.Errorf("identity should come from the predecessor, got %s", merged.ID)
	}
	if !merged.FirstDetected.Equal(firstSeen) {
		t.Error("first detection time must be preserved")
	}
	if merged.MentionCount != 4 {
		t.Errorf("expected mention count 4, got %d", merged.MentionCount)
	}
	if merged.TrendStatus != core.TrendStable {
		t.Errorf("expected STABLE, got %s", merged.TrendStatus)
	}
	if merged.ConfidenceScore != 85 {
		t.Error("current run's evidence should win")
	}
	if !merged.LastUpdated.Equal(runTime) {
		t.Error("last updated should move to the run time")
	}
}

func TestMerge_ResurfacedThemeIsFading(t *testing.T) {
	previous := &core.Theme{
		ID:            "theme-2",
		Name:          "Shipping rate spike",
		FirstDetected: runTime.Add(-240 * time.Hour),
		LastUpdated:   runTime.Add(-120 * time.Hour),
		MentionCount:  2,
	}
	merged := Merge(core.Theme{Name: "Shipping rate spike"}, previous, runTime, DefaultParams())

	if merged.TrendStatus != core.TrendFading {
		t.Errorf("expected FADING, got %s", merged.TrendStatus)
	}
}
