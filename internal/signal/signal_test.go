package signal

import (
	"fmt"
	"strings"
	"testing"

	"polarity/internal/core"
)

func validCluster(sources ...string) core.Cluster {
	articles := make([]core.ArticleRecord, len(sources))
	unique := map[string]struct{}{}
	for i, s := range sources {
		articles[i] = core.ArticleRecord{ID: fmt.Sprintf("a%d", i), Source: s}
		unique[s] = struct{}{}
	}
	return core.Cluster{Articles: articles, UniquePublisherCount: len(unique)}
}

func selectedArticles(total, summaryOnly int) []core.ArticleRecord {
	articles := make([]core.ArticleRecord, total)
	for i := range articles {
		articles[i] = core.ArticleRecord{ID: fmt.Sprintf("s%d", i), ContentMode: core.ContentFull}
		if i < summaryOnly {
			articles[i].ContentMode = core.ContentSummaryOnly
		}
	}
	return articles
}

func TestDetect_HealthyDay(t *testing.T) {
	clusters := []core.Cluster{
		validCluster("reuters", "bloomberg", "wsj"),
		validCluster("ft", "cnbc", "reuters"),
		validCluster("wsj", "bloomberg", "ft"),
		validCluster("reuters", "wsj", "cnbc"),
		validCluster("bloomberg", "ft", "reuters"),
	}
	a := Detect(selectedArticles(50, 10), clusters, DefaultThresholds())

	if a.IsLowSignal {
		t.Errorf("healthy day flagged low-signal: %v", a.Reasons)
	}
}

func TestDetect_ThinAndShallowDay(t *testing.T) {
	// 3 valid clusters and 70% summary-only: exactly two reasons fire.
	clusters := []core.Cluster{
		validCluster("reuters", "bloomberg", "wsj"),
		validCluster("ft", "cnbc", "reuters"),
		validCluster("wsj", "bloomberg", "ft"),
	}
	a := Detect(selectedArticles(10, 7), clusters, DefaultThresholds())

	if !a.IsLowSignal {
		t.Fatal("expected low-signal day")
	}
	if len(a.Reasons) != 2 {
		t.Fatalf("expected exactly 2 reasons, got %d: %v", len(a.Reasons), a.Reasons)
	}
	if !strings.Contains(a.Reasons[0], "valid clusters") {
		t.Errorf("first reason should be cluster count, got %q", a.Reasons[0])
	}
	if !strings.Contains(a.Reasons[1], "summary-only") {
		t.Errorf("second reason should be content depth, got %q", a.Reasons[1])
	}
}

func TestDetect_InvalidClustersDoNotCount(t *testing.T) {
	// Five clusters, but only one passes the diversity gate.
	clusters := []core.Cluster{
		validCluster("reuters", "bloomberg", "wsj"),
		validCluster("reuters", "reuters", "reuters"),
		validCluster("bloomberg", "bloomberg", "bloomberg"),
		{Articles: []core.ArticleRecord{{ID: "solo", Source: "ft"}}, UniquePublisherCount: 1},
		{Articles: []core.ArticleRecord{{ID: "duo1", Source: "cnbc"}, {ID: "duo2", Source: "wsj"}}, UniquePublisherCount: 2},
	}
	a := Detect(selectedArticles(20, 0), clusters, DefaultThresholds())

	if !a.IsLowSignal {
		t.Fatal("expected low-signal day")
	}
	found := false
	for _, r := range a.Reasons {
		if strings.Contains(r, "only 1 valid clusters") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected valid-cluster reason counting only gated clusters, got %v", a.Reasons)
	}
}

func TestDetect_NarrowSourceBase(t *testing.T) {
	clusters := []core.Cluster{
		validCluster("reuters", "bloomberg", "reuters"),
		validCluster("reuters", "bloomberg", "bloomberg"),
		validCluster("bloomberg", "reuters", "reuters"),
		validCluster("reuters", "bloomberg", "reuters"),
		validCluster("bloomberg", "reuters", "bloomberg"),
	}
	a := Detect(selectedArticles(30, 0), clusters, DefaultThresholds())

	if !a.IsLowSignal {
		t.Fatal("expected low-signal day")
	}
	if len(a.Reasons) != 1 || !strings.Contains(a.Reasons[0], "unique sources") {
		t.Errorf("expected only the source-breadth reason, got %v", a.Reasons)
	}
}

func TestDetect_EmptyRun(t *testing.T) {
	a := Detect(nil, nil, DefaultThresholds())

	if !a.IsLowSignal {
		t.Fatal("an empty run is the definition of a low-signal day")
	}
	// Cluster count and source breadth fire; the summary-only check is
	// skipped with nothing selected.
	if len(a.Reasons) != 2 {
		t.Errorf("expected 2 reasons, got %v", a.Reasons)
	}
}
