// Package density computes a deterministic 0-100 quality score estimating an
// article's factual substance. The score is a pure function of the article
// text, so identical input always produces an identical score.
package density

import (
	"math"
	"regexp"
	"strings"

	"polarity/internal/core"
)

// Params holds density-scorer thresholds.
type Params struct {
	MinWordCount int // Articles shorter than this take the short-length penalty
}

// DefaultParams returns the standard scorer thresholds.
func DefaultParams() Params {
	return Params{MinWordCount: 300}
}

// Component weights. The positive components are capped so that no single
// signal can dominate; penalties are flat deductions.
const (
	baseScore      = 35.0
	numericScale   = 400.0 // numbersRatio multiplier before capping
	numericCap     = 30.0
	entityWeight   = 3.0
	entityCap      = 20.0
	causalWeight   = 5.0
	causalCap      = 15.0
	maxScore       = 100.0
)

var (
	currencyPattern = regexp.MustCompile(`\$\d[\d,]*(?:\.\d+)?`)
	percentPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)
	largeIntPattern = regexp.MustCompile(`\b\d{4,}\b`)
	tickerPattern   = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

	causalMarkers = []string{
		"because", "due to", "driven by", "as a result", "led to",
		"caused by", "resulting in", "amid", "on the back of", "following",
	}

	// Uppercase tokens that look like tickers but are ordinary words.
	tickerStopwords = map[string]bool{
		"A": true, "I": true, "THE": true, "AND": true, "FOR": true,
		"NEW": true, "CEO": true, "CFO": true, "USA": true, "GDP": true,
		"API": true, "NOT": true, "ALL": true, "ITS": true, "HAS": true,
		"WAS": true, "ARE": true, "YOU": true, "OUT": true, "TOP": true,
	}
)

// Breakdown shows how each component and penalty contributed to the score.
type Breakdown struct {
	WordCount    int
	NumbersRatio float64
	EntityHits   int
	CausalHits   int
	Penalties    []string // Names of penalty rules that fired
	Score        float64
}

// penaltyRule is one named language-pattern check folded into the score.
// Rules are evaluated in order; each fires at most once.
type penaltyRule struct {
	name   string
	weight float64
	detect func(lower string, a *core.ArticleRecord, p Params) bool
}

var penaltyRules = []penaltyRule{
	{
		name:   "opinion_language",
		weight: 10,
		detect: func(lower string, _ *core.ArticleRecord, _ Params) bool {
			return containsAny(lower, []string{
				"i think", "in my opinion", "we believe", "arguably",
				"i believe", "my take", "it seems to me",
			})
		},
	},
	{
		name:   "listicle_phrasing",
		weight: 10,
		detect: func(lower string, a *core.ArticleRecord, _ Params) bool {
			title := strings.ToLower(a.Title)
			if listiclePattern.MatchString(title) {
				return true
			}
			return containsAny(lower, []string{"reasons why", "things to know", "stocks to watch", "here are the top"})
		},
	},
	{
		name:   "newsletter_language",
		weight: 15,
		detect: func(lower string, _ *core.ArticleRecord, _ Params) bool {
			return containsAny(lower, []string{
				"subscribe", "sign up for", "newsletter", "sponsored",
				"click here", "unsubscribe", "promotional",
			})
		},
	},
	{
		name:   "short_length",
		weight: 10,
		detect: func(_ string, a *core.ArticleRecord, p Params) bool {
			return a.WordCount < p.MinWordCount
		},
	},
	{
		name:   "summary_only",
		weight: 10,
		detect: func(_ string, a *core.ArticleRecord, _ Params) bool {
			return a.ContentMode == core.ContentSummaryOnly
		},
	},
}

var listiclePattern = regexp.MustCompile(`\b(top|best)\s+\d+\b|\b\d+\s+(things|reasons|ways|stocks|tips)\b`)

// ScoreArticle scores one article and attaches the score and word count to
// the record. It returns the full breakdown for observability.
func ScoreArticle(a *core.ArticleRecord, p Params) Breakdown {
	text := a.Text()
	a.WordCount = len(strings.Fields(text))
	b := scoreText(text, a, p)
	a.DensityScore = b.Score
	return b
}

// scoreText computes the breakdown for the given text. Pure.
func scoreText(text string, a *core.ArticleRecord, p Params) Breakdown {
	b := Breakdown{WordCount: a.WordCount}
	if b.WordCount == 0 {
		return b
	}

	numericHits := len(currencyPattern.FindAllString(text, -1)) +
		len(percentPattern.FindAllString(text, -1)) +
		len(largeIntPattern.FindAllString(text, -1))
	b.NumbersRatio = float64(numericHits) / float64(b.WordCount)

	b.EntityHits = countDistinctTickers(text)

	lower := strings.ToLower(text)
	for _, marker := range causalMarkers {
		b.CausalHits += strings.Count(lower, marker)
	}

	raw := baseScore +
		math.Min(b.NumbersRatio*numericScale, numericCap) +
		math.Min(float64(b.EntityHits)*entityWeight, entityCap) +
		math.Min(float64(b.CausalHits)*causalWeight, causalCap)

	for _, rule := range penaltyRules {
		if rule.detect(lower, a, p) {
			raw -= rule.weight
			b.Penalties = append(b.Penalties, rule.name)
		}
	}

	b.Score = math.Max(0, math.Min(maxScore, raw))
	return b
}

// countDistinctTickers counts distinct uppercase ticker-like tokens,
// excluding common English words that happen to be uppercase.
func countDistinctTickers(text string) int {
	seen := make(map[string]bool)
	for _, match := range tickerPattern.FindAllString(text, -1) {
		if tickerStopwords[match] {
			continue
		}
		seen[match] = true
	}
	return len(seen)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
