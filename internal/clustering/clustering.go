// Package clustering groups selected articles into candidate theme clusters
// using embedding similarity and agglomerative merging.
package clustering

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"polarity/internal/core"
	"polarity/internal/logger"
)

// Embedder is the slice of the LLM client the cluster builder needs.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Params controls cluster formation and the validity gate.
type Params struct {
	DistanceThreshold float64 // Maximum average cosine distance to merge two clusters
	MinClusterSize    int     // Minimum articles for a valid cluster
	MinPublishers     int     // Minimum distinct publishers for a valid cluster
	SummaryTruncate   int     // Rune cap on the summary portion of the embedding input
}

// DefaultParams returns the production clustering parameters.
func DefaultParams() Params {
	return Params{
		DistanceThreshold: 0.35,
		MinClusterSize:    3,
		MinPublishers:     2,
		SummaryTruncate:   400,
	}
}

// Builder turns selected articles into clusters.
type Builder struct {
	embedder Embedder
	params   Params
}

// NewBuilder creates a cluster builder.
func NewBuilder(embedder Embedder, params Params) *Builder {
	return &Builder{embedder: embedder, params: params}
}

// Result carries all clusters plus the count of valid ones, so callers can
// report both without re-walking the slice.
type Result struct {
	Clusters   []core.Cluster
	ValidCount int
}

// Build embeds the articles and runs average-linkage agglomerative clustering
// with a fixed distance threshold. All clusters are returned, including
// singletons and clusters that fail the diversity gate; callers filter with
// Cluster.Valid. A total embedding failure is a hard error because every
// downstream stage depends on grouping.
func (b *Builder) Build(ctx context.Context, articles []core.ArticleRecord) (*Result, error) {
	if len(articles) == 0 {
		return &Result{}, nil
	}

	inputs := make([]string, len(articles))
	for i := range articles {
		inputs[i] = embeddingInput(&articles[i], b.params.SummaryTruncate)
	}

	embeddings, err := b.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to embed articles for clustering: %w", err)
	}
	if len(embeddings) != len(articles) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d articles", len(embeddings), len(articles))
	}

	groups := agglomerate(embeddings, b.params.DistanceThreshold)

	result := &Result{Clusters: make([]core.Cluster, 0, len(groups))}
	for _, members := range groups {
		cluster := buildCluster(articles, members)
		if cluster.Valid() {
			result.ValidCount++
		}
		result.Clusters = append(result.Clusters, cluster)
	}

	logger.Info("clustering complete",
		"articles", len(articles),
		"clusters", len(result.Clusters),
		"valid_clusters", result.ValidCount)

	return result, nil
}

// embeddingInput is the text embedded per article: the title plus a bounded
// slice of the summary, so request size stays flat regardless of body length.
func embeddingInput(a *core.ArticleRecord, truncate int) string {
	summary := a.Summary
	if runes := []rune(summary); len(runes) > truncate {
		summary = string(runes[:truncate])
	}
	if summary == "" {
		return a.Title
	}
	return a.Title + "\n\n" + summary
}

// buildCluster assembles a core.Cluster for the given member indexes. The
// centroid text is the title of the best-tier article, with ties broken by
// earliest publication then ID, so the extraction framing is deterministic.
func buildCluster(articles []core.ArticleRecord, members []int) core.Cluster {
	sort.Ints(members)

	clustered := make([]core.ArticleRecord, 0, len(members))
	publishers := make(map[string]struct{})
	best := -1
	for _, idx := range members {
		a := articles[idx]
		clustered = append(clustered, a)
		publishers[a.Source] = struct{}{}
		if best == -1 || betterCentroid(&a, &articles[best]) {
			best = idx
		}
	}

	return core.Cluster{
		ID:                   uuid.New().String(),
		Articles:             clustered,
		UniquePublisherCount: len(publishers),
		CentroidText:         articles[best].Title,
	}
}

func betterCentroid(a, b *core.ArticleRecord) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	return a.ID < b.ID
}

// agglomerate runs average-linkage agglomerative clustering: every point
// starts as its own cluster, and the closest pair of clusters is merged
// repeatedly until the smallest inter-cluster distance exceeds the threshold.
// Average linkage is the mean cosine distance over all cross-cluster pairs.
func agglomerate(embeddings [][]float64, threshold float64) [][]int {
	n := len(embeddings)
	if n == 0 {
		return nil
	}

	// Pairwise point distances, computed once.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := cosineDistance(embeddings[i], embeddings[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestD := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := averageLinkage(clusters[i], clusters[j], dist)
				if d < bestD {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}
		if bestD > threshold {
			break
		}
		clusters[bestI] = append(clusters[bestI], clusters[bestJ]...)
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	return clusters
}

func averageLinkage(a, b []int, dist [][]float64) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}

// cosineDistance is 1 minus cosine similarity, clamped against floating
// point drift. Mismatched or zero vectors are treated as maximally distant.
func cosineDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		return 1.0
	}

	var dot, mag1, mag2 float64
	for i := range x1 {
		dot += x1[i] * x2[i]
		mag1 += x1[i] * x1[i]
		mag2 += x2[i] * x2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 1.0
	}

	similarity := dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}
