package cost

import (
	"strings"
	"testing"
)

func TestEstimateTokenCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello", 2},                       // ceil(5 / 3.5)
		{strings.Repeat("a", 35), 10},      // exactly 35 / 3.5
		{"line one\nline two", 5},          // newline collapsed, 17 chars
	}
	for _, tc := range cases {
		if got := EstimateTokenCount(tc.text); got != tc.want {
			t.Errorf("EstimateTokenCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestTracker_Accumulates(t *testing.T) {
	tr := NewTracker("gemini-2.5-flash", "gemini-embedding-001")

	if usd := tr.EstimatedUSD(); usd != 0 {
		t.Errorf("fresh tracker should estimate $0, got %f", usd)
	}

	tr.RecordGeneration(strings.Repeat("p", 3500), strings.Repeat("r", 350))
	tr.RecordEmbedding([]string{strings.Repeat("e", 3500)})

	// 1000 input tokens, 100 output tokens, 1000 embedding tokens.
	want := 1000.0/1e6*0.30 + 100.0/1e6*2.50 + 1000.0/1e6*0.15
	got := tr.EstimatedUSD()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("estimated %f, want %f", got, want)
	}
}

func TestTracker_UnknownModelFallsBackToFlashRate(t *testing.T) {
	tr := NewTracker("gemini-9-experimental", "gemini-embedding-001")
	tr.RecordGeneration(strings.Repeat("p", 3500), "")

	want := 1000.0 / 1e6 * 0.30
	got := tr.EstimatedUSD()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("estimated %f, want %f", got, want)
	}
}
