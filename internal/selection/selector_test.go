package selection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"polarity/internal/core"
)

type fakeCompletion struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeCompletion) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func smallPool() []core.ArticleRecord {
	return []core.ArticleRecord{
		{ID: "a0", Source: "s0", PublishedAt: testNow.Add(-20 * time.Hour), DensityScore: 90},
		{ID: "a1", Source: "s1", PublishedAt: testNow.Add(-21 * time.Hour), DensityScore: 80},
		{ID: "a2", Source: "s2", PublishedAt: testNow.Add(-22 * time.Hour), DensityScore: 70},
	}
}

func smallConstraints() Constraints {
	return Constraints{TargetSelected: 2, MaxPerSource: 1, MaxTimeConcentration: 1, RecentWindow: 6 * time.Hour}
}

func TestSelect_UsesServiceSelection(t *testing.T) {
	client := &fakeCompletion{response: `{"selected_ids":[2,0],"source_counts":{"s2":1,"s0":1},"recent_count":0}`}
	s := NewSelector(client, smallConstraints())

	selected := s.Select(context.Background(), smallPool(), testNow)

	if client.calls != 1 {
		t.Fatalf("expected one call, got %d", client.calls)
	}
	if len(selected) != 2 || selected[0].ID != "a2" || selected[1].ID != "a0" {
		t.Errorf("service order should be honored, got %v", selectedIDs(selected))
	}
}

func TestSelect_RepairsFencedResponse(t *testing.T) {
	client := &fakeCompletion{response: "```json\n{\"selected_ids\":[1,2]}\n```"}
	s := NewSelector(client, smallConstraints())

	selected := s.Select(context.Background(), smallPool(), testNow)

	if len(selected) != 2 || selected[0].ID != "a1" || selected[1].ID != "a2" {
		t.Errorf("fenced response should be repaired, got %v", selectedIDs(selected))
	}
}

func TestSelect_FallsBackOnCallFailure(t *testing.T) {
	client := &fakeCompletion{err: errors.New("service unavailable")}
	s := NewSelector(client, smallConstraints())

	selected := s.Select(context.Background(), smallPool(), testNow)

	// Deterministic fallback: top scores in order.
	if len(selected) != 2 || selected[0].ID != "a0" || selected[1].ID != "a1" {
		t.Errorf("expected score-ordered fallback, got %v", selectedIDs(selected))
	}
}

func TestSelect_FallsBackOnGarbageResponse(t *testing.T) {
	client := &fakeCompletion{response: "not json at all"}
	s := NewSelector(client, smallConstraints())

	selected := s.Select(context.Background(), smallPool(), testNow)

	if len(selected) != 2 || selected[0].ID != "a0" {
		t.Errorf("expected fallback selection, got %v", selectedIDs(selected))
	}
}

func TestSelect_PromptCarriesCardsAndRules(t *testing.T) {
	client := &fakeCompletion{response: `{"selected_ids":[0,1]}`}
	s := NewSelector(client, smallConstraints())

	s.Select(context.Background(), smallPool(), testNow)

	for _, want := range []string{"a0", "a1", "a2", "dup_group_id", "density_score"} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSelect_EmptyCandidates(t *testing.T) {
	client := &fakeCompletion{response: `{"selected_ids":[0]}`}
	s := NewSelector(client, smallConstraints())

	if selected := s.Select(context.Background(), nil, testNow); selected != nil {
		t.Errorf("empty candidates should yield nil, got %v", selectedIDs(selected))
	}
	if client.calls != 0 {
		t.Error("no call should be made for empty candidates")
	}
}
