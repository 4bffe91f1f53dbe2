// Package selection picks the target-sized article subset for clustering.
// One external completion call proposes a selection; a deterministic
// validator enforces the hard constraints regardless of what came back.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"polarity/internal/core"
	"polarity/internal/llm"
	"polarity/internal/logger"
)

// CompletionClient is the slice of the LLM client the selector needs.
type CompletionClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Response is the wire shape the selection service returns. Only
// selected_ids is load-bearing; the counts are the service's own claim of
// compliance and are never trusted.
type Response struct {
	SelectedIDs  []int          `json:"selected_ids"`
	SourceCounts map[string]int `json:"source_counts"`
	RecentCount  int            `json:"recent_count"`
}

// Selector runs the constrained selection stage.
type Selector struct {
	client      CompletionClient
	constraints Constraints
}

// NewSelector creates a selector bound to a completion client and constraints.
func NewSelector(client CompletionClient, constraints Constraints) *Selector {
	return &Selector{client: client, constraints: constraints}
}

// Select returns a compliant selection of candidates. The service call is
// attempted once (with the client's internal retry budget); on failure the
// selector falls back to a pure top-by-score selection. Either way the
// result passes through Validate, so the constraint guarantees hold.
func (s *Selector) Select(ctx context.Context, candidates []core.ArticleRecord, now time.Time) []core.ArticleRecord {
	if len(candidates) == 0 {
		return nil
	}

	cards := BuildCards(candidates)
	prompt, err := buildSelectionPrompt(cards, s.constraints, now)
	if err != nil {
		logger.Error("failed to build selection prompt, using fallback", err)
		return Fallback(candidates, s.constraints, now)
	}

	raw, err := s.client.GenerateJSON(ctx, prompt, selectionSchema())
	if err != nil {
		logger.Warn("selection call failed, using deterministic fallback", "error", err.Error())
		return Fallback(candidates, s.constraints, now)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		logger.Warn("selection response unusable, using deterministic fallback", "error", err.Error())
		return Fallback(candidates, s.constraints, now)
	}

	return Validate(candidates, resp.SelectedIDs, s.constraints, now)
}

// parseResponse decodes the service response, applying the one bounded
// repair attempt (markdown fence stripping) before giving up.
func parseResponse(raw string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		repaired := llm.StripFences(raw)
		if err2 := json.Unmarshal([]byte(repaired), &resp); err2 != nil {
			return nil, fmt.Errorf("failed to parse selection response: %w", err)
		}
	}
	if len(resp.SelectedIDs) == 0 {
		return nil, fmt.Errorf("selection response contains no ids")
	}
	return &resp, nil
}

// selectionSchema is the response schema sent with the selection request.
func selectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"selected_ids": {
				Type:        genai.TypeArray,
				Description: "Indexes of the selected candidate cards",
				Items:       &genai.Schema{Type: genai.TypeInteger},
			},
			"source_counts": {
				Type:        genai.TypeObject,
				Description: "Per-publisher counts of the selection (informational)",
			},
			"recent_count": {
				Type:        genai.TypeInteger,
				Description: "How many selected articles were published in the recent window (informational)",
			},
		},
		Required: []string{"selected_ids"},
	}
}

// buildSelectionPrompt renders the candidate cards and the constraint rules
// into one prompt. The rules are stated for the model's benefit, but
// compliance is enforced by the validator, not assumed.
func buildSelectionPrompt(cards []core.ArticleCard, c Constraints, now time.Time) (string, error) {
	encoded, err := json.Marshal(cards)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidate cards: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are selecting news articles for an investment-theme analysis run.\n\n")
	fmt.Fprintf(&sb, "From the %d candidate cards below, select exactly %d articles (or all of them if fewer are available).\n\n", len(cards), c.TargetSelected)
	sb.WriteString("Selection rules (hard constraints):\n")
	fmt.Fprintf(&sb, "1. No more than %d articles from any single source.\n", c.MaxPerSource)
	fmt.Fprintf(&sb, "2. No more than %.0f%% of your selection may be published within the last %s (relative to %s).\n",
		c.MaxTimeConcentration*100, c.RecentWindow, now.UTC().Format(time.RFC3339))
	sb.WriteString("3. At most one article per dup_group_id; articles sharing a dup_group_id are syndicated copies of the same story.\n\n")
	sb.WriteString("Prefer higher density_score, factual reporting over commentary, and breadth across sources and industries.\n\n")
	sb.WriteString("Candidate cards:\n")
	sb.Write(encoded)
	sb.WriteString("\n\nReturn JSON with the selected card indexes as selected_ids, plus your source_counts and recent_count.")

	return sb.String(), nil
}
