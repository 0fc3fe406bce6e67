package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bridgewise/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// Embed creates a vector embedding for text.
//
// Example:
//
//	vec, err := client.Embed(ctx, "data engineer, spark, airflow")
//	if err != nil {
//		log.Fatal(err)
//	}
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// EmbedBatch creates embeddings for multiple inputs in a single request.
// Blank inputs are not sent and yield a zero vector.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.Client == nil {
		return nil, fmt.Errorf("%w: openai client not configured", ai.ErrEmbeddingUnavailable)
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

	vecs, err := c.embedStrings(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		out[idxMap[i]] = vecs[i]
	}
	return out, nil
}

func (c *EmbeddingClient) embedStrings(ctx context.Context, inputs []string) ([][]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: c.model,
	}

	if err := c.embeddingLock.Acquire(rCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingUnavailable, err)
	}
	defer c.embeddingLock.Release(1)

	start := time.Now()
	response, err := c.Client.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingUnavailable, err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		Requests:    1,
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, embedding := range response.Data {
		dataIdx := int(embedding.Index)
		if dataIdx < 0 || dataIdx >= len(inputs) {
			return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
		}
		vec := make([]float32, len(embedding.Embedding))
		for i, v := range embedding.Embedding {
			vec[i] = float32(v)
		}
		out[dataIdx] = ai.FitDimensions(vec, c.dimensions)
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return out, nil
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *EmbeddingClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated usage since the last reset.
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

var (
	_ ai.BatchEmbedder   = (*EmbeddingClient)(nil)
	_ ai.MetricsReporter = (*EmbeddingClient)(nil)
)
