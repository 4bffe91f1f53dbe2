package selection

import (
	"regexp"
	"strings"

	"polarity/internal/core"
)

const (
	snippetRunes    = 150
	maxKeySentences = 2
)

var sentenceSplit = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
var digitPattern = regexp.MustCompile(`\d`)

// BuildCards projects candidates into the compact cards sent to the
// selection service. Card indexes are the candidate ordinals, so the
// service's selected_ids map straight back into the candidate slice.
func BuildCards(candidates []core.ArticleRecord) []core.ArticleCard {
	cards := make([]core.ArticleCard, len(candidates))
	for i, a := range candidates {
		cards[i] = core.ArticleCard{
			Index:        i,
			ID:           a.ID,
			Source:       a.Source,
			Tier:         a.Tier,
			PublishedAt:  a.PublishedAt,
			Title:        a.Title,
			Snippet:      truncateRunes(a.Text(), snippetRunes),
			KeySentences: keySentences(a.Summary),
			DensityScore: a.DensityScore,
			DupGroupID:   a.DupGroupID,
			ContentMode:  string(a.ContentMode),
		}
	}
	return cards
}

// keySentences picks 1-2 representative sentences from the summary,
// preferring sentences that carry a numeric token.
func keySentences(summary string) []string {
	sentences := splitSentences(summary)
	if len(sentences) == 0 {
		return nil
	}

	var picked []string
	for _, s := range sentences {
		if digitPattern.MatchString(s) {
			picked = append(picked, s)
			if len(picked) == maxKeySentences {
				return picked
			}
		}
	}
	// Fall back to leading sentences when nothing numeric was found.
	for _, s := range sentences {
		if len(picked) == maxKeySentences {
			break
		}
		if !contains(picked, s) {
			picked = append(picked, s)
		}
	}
	return picked
}

func splitSentences(text string) []string {
	var sentences []string
	for _, m := range sentenceSplit.FindAllStringSubmatch(strings.TrimSpace(text), -1) {
		s := strings.TrimSpace(m[1])
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
