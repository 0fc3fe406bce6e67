package ai

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when no embedding could be produced,
// either because the provider failed or because it did not answer in time.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder turns a text into a vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds several texts in one request. The result has the same
// length and order as texts.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	Requests       int     `json:"requests"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// MetricsReporter is implemented by provider clients that track usage.
type MetricsReporter interface {
	ResetMetrics()
	GetMetrics() ModelMetrics
}

// EmbedAll embeds texts using a batch request when e supports it and falls
// back to one request per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b, ok := e.(BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// FitDimensions truncates or zero pads vec to dim values. dim <= 0 leaves vec
// unchanged.
func FitDimensions(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	if len(vec) > dim {
		return vec[:dim]
	}
	padded := make([]float32, dim)
	copy(padded, vec)
	return padded
}
