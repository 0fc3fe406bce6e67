package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/ai"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ResolveEmbeddingsParams configures ResolveEmbeddings.
type ResolveEmbeddingsParams struct {
	Embedder    ai.Embedder
	Cache       EmbeddingCache
	Model       string
	BatchSize   int
	Parallelism int
	// Retry applies per batch. The zero value sends each batch once.
	Retry       util.RetryPolicy
}

// ResolveEmbeddings fills Person.Embedding for every person with a
// description. Cached vectors are reused by description hash; missing ones
// are embedded in batches and written back to the cache. Persons without a
// description keep a nil embedding, persons that already carry one keep
// theirs. The returned count is the number of
// vectors that had to be computed.
func ResolveEmbeddings(ctx context.Context, persons []common.Person, params ResolveEmbeddingsParams) (int, error) {
	if params.Embedder == nil {
		return 0, nil
	}

	byHash := map[string][]int{}
	texts := map[string]string{}
	for i, p := range persons {
		text := strings.TrimSpace(p.DescriptionText)
		if text == "" || len(p.Embedding) > 0 {
			continue
		}
		h := common.DescriptionHash(text)
		byHash[h] = append(byHash[h], i)
		texts[h] = text
	}
	if len(byHash) == 0 {
		return 0, nil
	}

	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}

	cached := map[string][]float32{}
	if params.Cache != nil {
		var err error
		cached, err = params.Cache.GetEmbeddings(ctx, hashes)
		if err != nil {
			logger.Warn("[Store] Failed to read embedding cache", "err", err)
			cached = map[string][]float32{}
		}
	}

	var missing []string
	for _, h := range hashes {
		if _, ok := cached[h]; !ok {
			missing = append(missing, h)
		}
	}

	computed := map[string][]float32{}
	if len(missing) > 0 {
		var mu sync.Mutex
		eg, ectx := errgroup.WithContext(ctx)
		if params.Parallelism > 0 {
			eg.SetLimit(params.Parallelism)
		}
		batch := params.BatchSize
		if batch <= 0 {
			batch = 64
		}
		_ = ChunkRange(len(missing), batch, func(start, end int) error {
			chunk := missing[start:end]
			eg.Go(func() error {
				in := make([]string, len(chunk))
				for i, h := range chunk {
					in[i] = texts[h]
				}
				vecs, err := util.Retry(ectx, params.Retry, func(ctx context.Context) ([][]float32, error) {
					return ai.EmbedAll(ctx, params.Embedder, in)
				})
				if err != nil {
					return err
				}
				if len(vecs) != len(chunk) {
					return fmt.Errorf("embedding result size mismatch: got %d want %d", len(vecs), len(chunk))
				}
				mu.Lock()
				for i, h := range chunk {
					computed[h] = vecs[i]
				}
				mu.Unlock()
				return nil
			})
			return nil
		})
		if err := eg.Wait(); err != nil {
			return 0, fmt.Errorf("failed to embed descriptions: %w", err)
		}
		if params.Cache != nil {
			if err := params.Cache.PutEmbeddings(ctx, params.Model, computed); err != nil {
				logger.Warn("[Store] Failed to write embedding cache", "err", err)
			}
		}
	}

	for h, idx := range byHash {
		vec, ok := cached[h]
		if !ok {
			vec = computed[h]
		}
		for _, i := range idx {
			persons[i].Embedding = vec
		}
	}
	logger.Info("[Store] Resolved embeddings", "unique", len(byHash), "cached", len(byHash)-len(missing), "computed", len(missing))
	return len(missing), nil
}
