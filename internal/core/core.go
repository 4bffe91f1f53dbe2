// Package core defines the shared data model for the analysis pipeline.
package core

import "time"

// ContentMode indicates how much of an article's body was captured at ingestion.
type ContentMode string

const (
	// ContentFull means the full article text was captured.
	ContentFull ContentMode = "FULL"
	// ContentSummaryOnly means only the feed summary was captured (paywall fallback).
	ContentSummaryOnly ContentMode = "SUMMARY_ONLY"
)

// ConfidenceLabel is the coarse confidence bucket attached to a theme.
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "LOW"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceHigh   ConfidenceLabel = "HIGH"
)

// Sentiment is the directional read of a theme.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentNeutral Sentiment = "NEUTRAL"
	SentimentBearish Sentiment = "BEARISH"
)

// TrendStatus describes where a theme sits in its lifecycle across runs.
type TrendStatus string

const (
	TrendNew    TrendStatus = "NEW"
	TrendStable TrendStatus = "STABLE"
	TrendFading TrendStatus = "FADING"
)

// ArticleRecord is one collected news article. It is created by the ingestion
// collaborator and is immutable after ingestion except for DensityScore and
// WordCount, which the density scorer attaches.
type ArticleRecord struct {
	ID          string      `json:"id"`           // Unique identifier for the article
	URL         string      `json:"url"`          // Canonical article URL (citation anchor)
	Source      string      `json:"source"`       // Publisher name
	Tier        int         `json:"tier"`         // Source quality rank: 1 (highest) or 2
	PublishedAt time.Time   `json:"published_at"` // Publication timestamp
	Title       string      `json:"title"`        // Article title
	Summary     string      `json:"summary"`      // Feed summary / abstract
	FullText    string      `json:"full_text"`    // Full body text (empty when summary-only)
	ContentMode ContentMode `json:"content_mode"` // FULL or SUMMARY_ONLY
	ContentHash string      `json:"content_hash"` // Content identity for duplicate detection
	DupGroupID  string      `json:"dup_group_id"` // Syndication group; empty when not grouped

	// Attached by the density scorer; never mutated downstream.
	DensityScore float64 `json:"density_score"`
	WordCount    int     `json:"word_count"`
}

// Text returns the text the pipeline scores and validates against:
// the full text when present, otherwise the summary.
func (a *ArticleRecord) Text() string {
	if a.FullText != "" {
		return a.FullText
	}
	return a.Summary
}

// ArticleCard is the compact read-only projection of an ArticleRecord sent to
// the selection service. It keeps request size bounded regardless of how long
// the full text is.
type ArticleCard struct {
	Index        int       `json:"index"`         // Candidate ordinal within one selection request
	ID           string    `json:"id"`            // Underlying article ID
	Source       string    `json:"source"`        // Publisher name
	Tier         int       `json:"tier"`          // Source quality rank
	PublishedAt  time.Time `json:"published_at"`  // Publication timestamp
	Title        string    `json:"title"`         // Article title
	Snippet      string    `json:"snippet"`       // First 150 chars of the text
	KeySentences []string  `json:"key_sentences"` // 1-2 representative sentences
	DensityScore float64   `json:"density_score"` // Deterministic quality score
	DupGroupID   string    `json:"dup_group_id"`  // Syndication group, if any
	ContentMode  string    `json:"content_mode"`  // FULL or SUMMARY_ONLY
}

// Cluster is a group of semantically related articles treated as one
// candidate theme. It is valid for extraction only when it holds at least
// three articles from at least two publishers.
type Cluster struct {
	ID                   string          `json:"id"`
	Articles             []ArticleRecord `json:"articles"`
	UniquePublisherCount int             `json:"unique_publisher_count"`
	CentroidText         string          `json:"centroid_text"` // Title of the best-tier article, used for prompt framing only
}

// Valid reports whether the cluster passes the publisher-diversity gate.
func (c *Cluster) Valid() bool {
	return len(c.Articles) >= 3 && c.UniquePublisherCount >= 2
}

// Citation is a claimed verbatim quote backing a theme, tied to one article
// by URL. IsVerified is set only after the quote passes validation.
type Citation struct {
	ArticleID    string    `json:"article_id"`
	ArticleTitle string    `json:"article_title"`
	Quote        string    `json:"quote"`
	URL          string    `json:"url"`
	Source       string    `json:"source"`
	Tier         int       `json:"tier"`
	PublishedAt  time.Time `json:"published_at"`
	IsVerified   bool      `json:"is_verified"`
}

// Theme is one synthesized investment theme. Themes are created per analysis
// run and merged by name into the long-lived registry.
type Theme struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Sentiment       Sentiment       `json:"sentiment"`
	Reasoning       string          `json:"reasoning"`
	Industries      []string        `json:"industries"`
	Citations       []Citation      `json:"citations"`
	Confidence      ConfidenceLabel `json:"confidence"`
	ConfidenceScore int             `json:"confidence_score"` // 0-100, evidence-derived
	FirstDetected   time.Time       `json:"first_detected"`
	LastUpdated     time.Time       `json:"last_updated"`
	MentionCount    int             `json:"mention_count"`
	TrendStatus     TrendStatus     `json:"trend_status"`
}

// RunStats is the write-once record describing one pipeline execution, used
// for audit and cost accounting.
type RunStats struct {
	RunDate           string    `json:"run_date"` // YYYY-MM-DD key
	StartedAt         time.Time `json:"started_at"`
	CollectedCount    int       `json:"collected_count"`
	UniqueCount       int       `json:"unique_count"`    // After content-hash dedup
	CandidateCount    int       `json:"candidate_count"` // After pruning
	SelectedCount     int       `json:"selected_count"`
	ClusterCount      int       `json:"cluster_count"`
	ValidClusterCount int       `json:"valid_cluster_count"`
	ThemeCount        int       `json:"theme_count"`
	SelectionCalls    int       `json:"selection_calls"`
	ExtractionCalls   int       `json:"extraction_calls"`
	EmbeddingCalls    int       `json:"embedding_calls"`
	FailedExtractions int       `json:"failed_extractions"`
	EstimatedCostUSD  float64   `json:"estimated_cost_usd"`
	IsLowSignalDay    bool      `json:"is_low_signal_day"`
	LowSignalReasons  []string  `json:"low_signal_reasons"`
}
