package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles calls to the wrapped Embedder.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond requests per second with the given
// burst. perSecond <= 0 disables limiting.
func NewRateLimitedEmbedder(next Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	return EmbedAll(ctx, r.next, texts)
}
