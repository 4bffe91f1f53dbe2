// Package llm wraps the Gemini SDK behind the two call shapes the pipeline
// needs: schema-constrained JSON generation and text embedding. Every call
// carries a per-attempt timeout and bounded exponential backoff that retries
// transient failures only.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"polarity/internal/config"
	"polarity/internal/cost"
)

const (
	// DefaultModel is the default Gemini model for selection and extraction.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
)

// Client is a Gemini client with retry, timeout, and call accounting.
type Client struct {
	gClient        *genai.Client
	modelName      string
	embeddingModel string
	temperature    float32
	timeout        time.Duration
	maxRetries     int
	baseDelay      time.Duration

	mu       sync.Mutex
	counters CallCounts
	costs    *cost.Tracker
}

// CallCounts tracks how many external calls the client has issued.
type CallCounts struct {
	Generate int
	Embed    int
}

// NewClient creates a new Gemini client from configuration. The API key must
// already be present; config validation rejects a missing key before any
// caller gets this far.
func NewClient(cfg config.Gemini) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		gClient:        gClient,
		modelName:      modelName,
		embeddingModel: embeddingModel,
		temperature:    cfg.Temperature,
		timeout:        cfg.RequestTimeout(),
		maxRetries:     cfg.MaxRetries,
		baseDelay:      cfg.BaseDelay(),
	}, nil
}

// SetCostTracker attaches a cost tracker; every subsequent call records its
// token estimate there. A nil tracker disables accounting.
func (c *Client) SetCostTracker(t *cost.Tracker) {
	c.mu.Lock()
	c.costs = t
	c.mu.Unlock()
}

// Counts returns a snapshot of the call counters.
func (c *Client) Counts() CallCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// GenerateJSON sends one prompt expecting a JSON response constrained by the
// given schema. Transient failures are retried with exponential backoff up to
// the configured attempt budget; non-transient failures return immediately.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	var text string
	err := c.retry(ctx, func(ctx context.Context) error {
		out, err := c.generate(ctx, prompt, schema)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// retry runs one attempt of fn per iteration, each under the configured
// timeout, backing off between attempts. Non-transient errors end the loop
// immediately.
func (c *Client) retry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.baseDelay, attempt); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
	}

	return fmt.Errorf("gemini call failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// generate performs one GenerateContent call.
func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	c.mu.Lock()
	c.counters.Generate++
	c.mu.Unlock()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := c.temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if schema != nil {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = schema
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	c.mu.Lock()
	if c.costs != nil {
		c.costs.RecordGeneration(prompt, text)
	}
	c.mu.Unlock()

	return text, nil
}

// EmbedTexts generates one embedding per text using the embedding model.
// Uses Matryoshka truncation to 768 dimensions. Transient failures retry with
// the same backoff budget as generation.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embeddings [][]float64
	err := c.retry(ctx, func(ctx context.Context) error {
		out, err := c.embed(ctx, texts)
		if err != nil {
			return err
		}
		embeddings = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// embed performs one EmbedContent call.
func (c *Client) embed(ctx context.Context, texts []string) ([][]float64, error) {
	c.mu.Lock()
	c.counters.Embed++
	if c.costs != nil {
		c.costs.RecordEmbedding(texts)
	}
	c.mu.Unlock()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	dims := DefaultEmbeddingDimensions
	embedConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Embeddings))
	}

	embeddings := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for text %d", i)
		}
		values := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			values[j] = float64(v)
		}
		embeddings[i] = values
	}

	return embeddings, nil
}

// IsTransient reports whether an error is worth retrying: rate limits and
// service overload are; auth failures and other permanent 4xx are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "unavailable")
}

// StripFences removes a markdown code fence wrapper from a model response.
// This is the single bounded repair attempt applied to malformed JSON before
// a call is declared failed.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// sleepBackoff waits baseDelay * 2^(attempt-1) plus jitter, or returns early
// if the context is cancelled.
func sleepBackoff(ctx context.Context, baseDelay time.Duration, attempt int) error {
	delay := baseDelay << uint(attempt-1)
	var jitter time.Duration
	if half := int64(baseDelay) / 2; half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay + jitter):
		return nil
	}
}
