// Package extract turns valid clusters into investment themes. Each cluster
// costs exactly one completion call; calls run concurrently with a bounded
// worker count, and a failed cluster is skipped rather than failing the run.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"polarity/internal/citecheck"
	"polarity/internal/confidence"
	"polarity/internal/core"
	"polarity/internal/llm"
	"polarity/internal/logger"
)

// CompletionClient is the slice of the LLM client the extractor needs.
type CompletionClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Extractor runs theme extraction over clusters.
type Extractor struct {
	client      CompletionClient
	citeParams  citecheck.Params
	concurrency int
}

// NewExtractor creates an extractor. concurrency bounds how many clusters
// are in flight at once; values below 1 are treated as 1.
func NewExtractor(client CompletionClient, citeParams citecheck.Params, concurrency int) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{client: client, citeParams: citeParams, concurrency: concurrency}
}

// Result reports the run's extraction outcome.
type Result struct {
	Themes []core.Theme
	Failed int // Clusters whose extraction call or parse failed
}

// ExtractAll processes every valid cluster; invalid clusters are skipped
// without issuing any call. Theme order follows cluster order regardless of
// which call finished first.
func (e *Extractor) ExtractAll(ctx context.Context, clusters []core.Cluster, now time.Time) *Result {
	valid := make([]core.Cluster, 0, len(clusters))
	for i := range clusters {
		if clusters[i].Valid() {
			valid = append(valid, clusters[i])
		}
	}
	if len(valid) == 0 {
		return &Result{}
	}

	themes := make([]*core.Theme, len(valid))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range valid {
		g.Go(func() error {
			theme, err := e.extractOne(gctx, &valid[i], now)
			if err != nil {
				logger.Warn("cluster extraction failed, skipping",
					"cluster_id", valid[i].ID,
					"articles", len(valid[i].Articles),
					"error", err.Error())
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			themes[i] = theme
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	_ = g.Wait()

	result := &Result{Failed: failed}
	for _, t := range themes {
		if t != nil {
			result.Themes = append(result.Themes, *t)
		}
	}
	return result
}

// extractOne issues the cluster's single extraction call and converts the
// response into a theme with validated citations.
func (e *Extractor) extractOne(ctx context.Context, cluster *core.Cluster, now time.Time) (*core.Theme, error) {
	prompt := buildExtractionPrompt(cluster)

	raw, err := e.client.GenerateJSON(ctx, prompt, extractionSchema())
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var resp themeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		repaired := llm.StripFences(raw)
		if err2 := json.Unmarshal([]byte(repaired), &resp); err2 != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}
	if strings.TrimSpace(resp.ThemeName) == "" {
		return nil, fmt.Errorf("extraction response has no theme name")
	}

	citations := e.validateCitations(resp.Citations, cluster)
	score, label := confidence.Score(citations, parseConfidence(resp.Confidence))

	return &core.Theme{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(resp.ThemeName),
		Sentiment:       parseSentiment(resp.Sentiment),
		Reasoning:       strings.TrimSpace(resp.Reasoning),
		Industries:      resp.Industries,
		Citations:       citations,
		Confidence:      label,
		ConfidenceScore: score,
		FirstDetected:   now,
		LastUpdated:     now,
		MentionCount:    1,
		TrendStatus:     core.TrendNew,
	}, nil
}

// validateCitations checks every claimed quote against the article it
// references. A citation naming an unknown URL, or whose quote fails
// verification, is dropped; survivors are marked verified and enriched with
// the article's metadata.
func (e *Extractor) validateCitations(claimed []citationResponse, cluster *core.Cluster) []core.Citation {
	byURL := make(map[string]*core.ArticleRecord, len(cluster.Articles))
	for i := range cluster.Articles {
		byURL[cluster.Articles[i].URL] = &cluster.Articles[i]
	}

	var verified []core.Citation
	for _, c := range claimed {
		article, ok := byURL[strings.TrimSpace(c.URL)]
		if !ok {
			logger.Debug("citation references unknown URL, dropping", "url", c.URL)
			continue
		}
		if !citecheck.Verify(c.Quote, article.Text(), e.citeParams) {
			logger.Debug("citation quote failed verification, dropping",
				"article_id", article.ID, "quote", c.Quote)
			continue
		}
		verified = append(verified, core.Citation{
			ArticleID:    article.ID,
			ArticleTitle: article.Title,
			Quote:        c.Quote,
			URL:          article.URL,
			Source:       article.Source,
			Tier:         article.Tier,
			PublishedAt:  article.PublishedAt,
			IsVerified:   true,
		})
	}
	return verified
}

// themeResponse is the wire shape of one extraction response.
type themeResponse struct {
	ThemeName  string             `json:"theme_name"`
	Industries []string           `json:"industries"`
	Reasoning  string             `json:"reasoning"`
	Citations  []citationResponse `json:"citations"`
	Confidence string             `json:"confidence"`
	Sentiment  string             `json:"sentiment"`
}

type citationResponse struct {
	ArticleTitle string `json:"article_title"`
	Quote        string `json:"quote"`
	URL          string `json:"url"`
}

func parseSentiment(s string) core.Sentiment {
	switch core.Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case core.SentimentBullish:
		return core.SentimentBullish
	case core.SentimentBearish:
		return core.SentimentBearish
	default:
		return core.SentimentNeutral
	}
}

func parseConfidence(s string) core.ConfidenceLabel {
	switch core.ConfidenceLabel(strings.ToUpper(strings.TrimSpace(s))) {
	case core.ConfidenceHigh:
		return core.ConfidenceHigh
	case core.ConfidenceLow:
		return core.ConfidenceLow
	default:
		return core.ConfidenceMedium
	}
}

// extractionSchema constrains the extraction response.
func extractionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"theme_name": {
				Type:        genai.TypeString,
				Description: "Short name of the investment theme",
			},
			"industries": {
				Type:        genai.TypeArray,
				Description: "Industries the theme affects",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"reasoning": {
				Type:        genai.TypeString,
				Description: "Why these articles form one investable theme",
			},
			"citations": {
				Type:        genai.TypeArray,
				Description: "Verbatim quotes supporting the theme, one article each",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"article_title": {Type: genai.TypeString},
						"quote":         {Type: genai.TypeString, Description: "Exact verbatim quote from the article text"},
						"url":           {Type: genai.TypeString, Description: "URL of the cited article"},
					},
					Required: []string{"quote", "url"},
				},
			},
			"confidence": {
				Type:        genai.TypeString,
				Description: "LOW, MEDIUM, or HIGH",
				Enum:        []string{"LOW", "MEDIUM", "HIGH"},
			},
			"sentiment": {
				Type:        genai.TypeString,
				Description: "BULLISH, NEUTRAL, or BEARISH",
				Enum:        []string{"BULLISH", "NEUTRAL", "BEARISH"},
			},
		},
		Required: []string{"theme_name", "reasoning", "citations", "confidence", "sentiment"},
	}
}

// buildExtractionPrompt renders one cluster's articles into the extraction
// prompt. Full article text goes in so quotes can be literal.
func buildExtractionPrompt(cluster *core.Cluster) string {
	var sb strings.Builder
	sb.WriteString("You are a financial analyst extracting one investment theme from a group of related news articles.\n\n")
	fmt.Fprintf(&sb, "The group centers on: %q\n\n", cluster.CentroidText)
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Every citation quote must be copied VERBATIM from the article text, including all numbers. Quotes are checked against the source; altered or invented quotes are discarded.\n")
	sb.WriteString("2. Each citation must name the url of the article the quote came from.\n")
	sb.WriteString("3. Prefer quotes containing concrete figures (amounts, percentages, dates).\n\n")

	for i := range cluster.Articles {
		a := &cluster.Articles[i]
		fmt.Fprintf(&sb, "--- Article %d ---\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", a.Title)
		fmt.Fprintf(&sb, "Source: %s (tier %d)\n", a.Source, a.Tier)
		fmt.Fprintf(&sb, "Published: %s\n", a.PublishedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "URL: %s\n", a.URL)
		fmt.Fprintf(&sb, "Text:\n%s\n\n", a.Text())
	}

	sb.WriteString("Return JSON describing the single strongest investment theme this group supports.")
	return sb.String()
}
