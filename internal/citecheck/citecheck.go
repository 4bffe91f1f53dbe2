// Package citecheck verifies that claimed citation quotes actually appear in
// the article text they reference. Verification is layered: an exact match
// check, a word-anchor check for long quotes, and a bounded fuzzy match for
// minor transcription drift. Every accepted quote must also carry over the
// numbers it cites.
package citecheck

import (
	"regexp"
	"strings"
)

// Params tunes the fuzzy layer.
type Params struct {
	FuzzyThreshold float64 // Minimum normalized similarity for a fuzzy accept
	AnchorWords    int     // Length of the verbatim word run the anchor layer requires
}

// DefaultParams returns the production verification parameters.
func DefaultParams() Params {
	return Params{
		FuzzyThreshold: 0.85,
		AnchorWords:    8,
	}
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// Normalize collapses runs of whitespace to single spaces and lowercases the
// text. Both quote and article pass through this before any comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " ")))
}

// Verify reports whether quote is supported by articleText. A quote passes
// when any one of the three text layers matches AND its numeric tokens all
// appear in the article. A quote with no numeric tokens only needs a text
// layer; a quote whose numbers are absent fails regardless of text match.
func Verify(quote, articleText string, p Params) bool {
	nq := Normalize(quote)
	na := Normalize(articleText)
	if nq == "" || na == "" {
		return false
	}

	if !matchText(nq, na, p) {
		return false
	}
	return numbersPresent(nq, na)
}

func matchText(nq, na string, p Params) bool {
	if strings.Contains(na, nq) {
		return true
	}
	if anchorMatch(nq, na, p.AnchorWords) {
		return true
	}
	return fuzzyMatch(nq, na, p.FuzzyThreshold)
}

// anchorMatch applies only to quotes of at least anchorWords words: some
// anchorWords-word contiguous run of the quote must appear verbatim in the
// article. The window slides over the whole quote, so a verbatim run
// anywhere inside it counts. Short quotes skip this layer; exact or fuzzy
// must carry them.
func anchorMatch(nq, na string, anchorWords int) bool {
	words := strings.Fields(nq)
	if len(words) < anchorWords {
		return false
	}
	for i := 0; i+anchorWords <= len(words); i++ {
		if strings.Contains(na, strings.Join(words[i:i+anchorWords], " ")) {
			return true
		}
	}
	return false
}

// fuzzyMatch slides a quote-sized window over the article and accepts when
// any window's normalized edit similarity reaches the threshold. A coarse
// pass finds the most similar region, then a rune-by-rune pass around it
// settles the alignment, keeping the scan near-linear in article length.
func fuzzyMatch(nq, na string, threshold float64) bool {
	const coarseStep = 16

	quote := []rune(nq)
	article := []rune(na)
	window := len(quote)
	if window == 0 || len(article) < window {
		return false
	}

	last := len(article) - window
	bestStart, bestSim := 0, -1.0
	for start := 0; start <= last; start += coarseStep {
		if sim := similarity(quote, article[start:start+window]); sim > bestSim {
			bestSim, bestStart = sim, start
		}
	}
	if sim := similarity(quote, article[last:]); sim > bestSim {
		bestSim, bestStart = sim, last
	}
	if bestSim >= threshold {
		return true
	}

	lo := bestStart - coarseStep
	if lo < 0 {
		lo = 0
	}
	hi := bestStart + coarseStep
	if hi > last {
		hi = last
	}
	for start := lo; start <= hi; start++ {
		if similarity(quote, article[start:start+window]) >= threshold {
			return true
		}
	}
	return false
}

// similarity is 1 - levenshtein/maxLen over rune slices.
func similarity(a, b []rune) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// numericTokenPattern matches the numeric forms quotes cite: currency
// amounts, percentages, and plain numbers (including decimals and years).
var numericTokenPattern = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?%?`)

// numbersPresent checks that every numeric token in the quote appears in the
// article, with comma grouping ignored on both sides. This is what catches a
// quote inventing "$4.2 billion" when the article says "$3.8 billion".
func numbersPresent(nq, na string) bool {
	tokens := numericTokenPattern.FindAllString(nq, -1)
	if len(tokens) == 0 {
		return true
	}
	articleNums := make(map[string]struct{})
	for _, t := range numericTokenPattern.FindAllString(na, -1) {
		articleNums[stripCommas(t)] = struct{}{}
	}
	for _, t := range tokens {
		if _, ok := articleNums[stripCommas(t)]; !ok {
			return false
		}
	}
	return true
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
