package ollama

import (
	"context"
	"fmt"
	"math"

	"github.com/bridgewise/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

// Embed creates a vector embedding for text using the configured model.
// Blank text yields a zero vector without contacting the server.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedBatch embeds all texts in a single request.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	idxMap := make([]int, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t, err := ai.TruncateTokens(t, ai.DefaultEncoding, c.maxTokens)
		if err != nil {
			return nil, err
		}
		if t == "" {
			out[i] = make([]float32, max(c.dimensions, 0))
			continue
		}
		idxMap = append(idxMap, i)
		inputs = append(inputs, t)
	}
	if len(inputs) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.model,
		Input: inputs,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingUnavailable, err)
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingUnavailable, err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		Requests:    1,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(inputs))
	}
	for i, v := range res.Embeddings {
		out[idxMap[i]] = ai.FitDimensions(v, c.dimensions)
	}
	return out, nil
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *EmbeddingClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *EmbeddingClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *EmbeddingClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.Requests += m.Requests
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

var _ ai.BatchEmbedder = (*EmbeddingClient)(nil)
