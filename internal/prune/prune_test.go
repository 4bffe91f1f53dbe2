package prune

import (
	"fmt"
	"testing"

	"polarity/internal/core"
)

func scored(id, source, hash string, score float64) core.ArticleRecord {
	return core.ArticleRecord{
		ID:           id,
		Source:       source,
		ContentHash:  hash,
		DensityScore: score,
	}
}

func TestCandidates_DensityFloor(t *testing.T) {
	articles := []core.ArticleRecord{
		scored("a1", "reuters", "h1", 80),
		scored("a2", "reuters", "h2", 10),
		scored("a3", "bloomberg", "h3", 25),
	}
	p := Params{DensityFloor: 25, CandidatePoolSize: 10, MaxPerSource: 10}

	out, stats := Candidates(articles, p)

	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if stats.BelowFloor != 1 {
		t.Errorf("expected 1 below floor, got %d", stats.BelowFloor)
	}
	for _, a := range out {
		if a.DensityScore < p.DensityFloor {
			t.Errorf("article %s below floor survived with score %f", a.ID, a.DensityScore)
		}
	}
}

func TestCandidates_HashDedupKeepsFirst(t *testing.T) {
	articles := []core.ArticleRecord{
		scored("a1", "reuters", "same", 50),
		scored("a2", "bloomberg", "same", 90),
		scored("a3", "wsj", "other", 60),
	}
	p := Params{DensityFloor: 0, CandidatePoolSize: 10, MaxPerSource: 10}

	out, stats := Candidates(articles, p)

	if stats.DuplicateHashes != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.DuplicateHashes)
	}
	for _, a := range out {
		if a.ID == "a2" {
			t.Error("later duplicate a2 should have been dropped; first occurrence wins")
		}
	}
}

func TestCandidates_SoftCapAndTruncation(t *testing.T) {
	var articles []core.ArticleRecord
	// 12 from one source outranking everything, then filler from others.
	for i := 0; i < 12; i++ {
		articles = append(articles, scored(fmt.Sprintf("loud%02d", i), "loudwire", fmt.Sprintf("lh%d", i), 90))
	}
	for i := 0; i < 10; i++ {
		articles = append(articles, scored(fmt.Sprintf("quiet%02d", i), fmt.Sprintf("src%d", i), fmt.Sprintf("qh%d", i), 50))
	}
	p := Params{DensityFloor: 0, CandidatePoolSize: 15, MaxPerSource: 5}

	out, stats := Candidates(articles, p)

	if len(out) != 15 {
		t.Fatalf("expected pool of 15, got %d", len(out))
	}
	perSource := map[string]int{}
	for _, a := range out {
		perSource[a.Source]++
	}
	if perSource["loudwire"] > 10 {
		t.Errorf("soft cap of 2x%d breached: %d from one source", p.MaxPerSource, perSource["loudwire"])
	}
	if stats.SoftCapDropped != 2 {
		t.Errorf("expected 2 soft-cap drops, got %d", stats.SoftCapDropped)
	}
	if stats.Truncated != 5 {
		t.Errorf("expected 5 truncated, got %d", stats.Truncated)
	}
}

func TestCandidates_OrderedByScoreThenID(t *testing.T) {
	articles := []core.ArticleRecord{
		scored("b", "s1", "h1", 70),
		scored("a", "s2", "h2", 70),
		scored("c", "s3", "h3", 90),
	}
	p := Params{DensityFloor: 0, CandidatePoolSize: 10, MaxPerSource: 10}

	out, _ := Candidates(articles, p)

	want := []string{"c", "a", "b"}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("position %d: want %s, got %s", i, id, out[i].ID)
		}
	}
}

func TestCandidates_Stats(t *testing.T) {
	articles := []core.ArticleRecord{
		scored("a1", "reuters", "h1", 80),
		scored("a2", "bloomberg", "h2", 60),
	}
	_, stats := Candidates(articles, Params{DensityFloor: 0, CandidatePoolSize: 10, MaxPerSource: 10})

	if stats.Input != 2 || stats.Output != 2 {
		t.Errorf("stats input/output wrong: %+v", stats)
	}
	if stats.DistinctSources != 2 {
		t.Errorf("expected 2 distinct sources, got %d", stats.DistinctSources)
	}
}

func TestCandidates_EmptyInput(t *testing.T) {
	out, stats := Candidates(nil, Params{DensityFloor: 25, CandidatePoolSize: 10, MaxPerSource: 10})
	if len(out) != 0 || stats.Output != 0 {
		t.Errorf("empty input should produce empty output, got %d", len(out))
	}
}
