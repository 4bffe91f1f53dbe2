// Package cost estimates the per-run spend on Gemini calls. Estimates are
// for audit reporting only; nothing in the pipeline budgets against them.
package cost

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"
)

// ModelPricing holds per-million-token rates in USD.
type ModelPricing struct {
	InputCostPer1MTokens  float64
	OutputCostPer1MTokens float64
}

// PricingTable contains Gemini rates as of mid-2025. Unknown models fall
// back to the flash rate, the cheapest plausible assumption.
var PricingTable = map[string]ModelPricing{
	"gemini-2.5-flash": {
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
	},
	"gemini-2.5-pro": {
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
	},
	"gemini-embedding-001": {
		InputCostPer1MTokens:  0.15,
		OutputCostPer1MTokens: 0,
	},
}

var fallbackPricing = PricingTable["gemini-2.5-flash"]

// EstimateTokenCount approximates tokens from rune count. English text runs
// roughly 4 characters per token; 3.5 leaves headroom for formatting tokens.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}

// Tracker accumulates token estimates over one run. Safe for concurrent use
// by the extraction workers.
type Tracker struct {
	mu              sync.Mutex
	generationModel string
	embeddingModel  string
	inputTokens     int
	outputTokens    int
	embeddingTokens int
}

// NewTracker creates a tracker priced for the given models.
func NewTracker(generationModel, embeddingModel string) *Tracker {
	return &Tracker{generationModel: generationModel, embeddingModel: embeddingModel}
}

// RecordGeneration accounts one completion call by its prompt and response text.
func (t *Tracker) RecordGeneration(prompt, response string) {
	in := EstimateTokenCount(prompt)
	out := EstimateTokenCount(response)
	t.mu.Lock()
	t.inputTokens += in
	t.outputTokens += out
	t.mu.Unlock()
}

// RecordEmbedding accounts one embedding batch by its input texts.
func (t *Tracker) RecordEmbedding(texts []string) {
	total := 0
	for _, s := range texts {
		total += EstimateTokenCount(s)
	}
	t.mu.Lock()
	t.embeddingTokens += total
	t.mu.Unlock()
}

// EstimatedUSD returns the run's estimated spend so far.
func (t *Tracker) EstimatedUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	gen := pricingFor(t.generationModel)
	emb := pricingFor(t.embeddingModel)

	total := float64(t.inputTokens) / 1e6 * gen.InputCostPer1MTokens
	total += float64(t.outputTokens) / 1e6 * gen.OutputCostPer1MTokens
	total += float64(t.embeddingTokens) / 1e6 * emb.InputCostPer1MTokens
	return total
}

func pricingFor(model string) ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	return fallbackPricing
}
