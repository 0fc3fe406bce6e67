package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bridgewise/backend/pkg/common"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder keeps recently computed vectors in a process wide LRU keyed
// by the hash of the text. Concurrent requests for the same text share one
// provider call.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := common.DescriptionHash(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Memo memoises embeddings for the lifetime of one request or batch. Every
// distinct text is embedded at most once; failures are remembered too.
type Memo struct {
	next Embedder
	mu   sync.Mutex
	jobs map[string]*memoEntry
}

type memoEntry struct {
	once sync.Once
	vec  []float32
	err  error
}

func NewMemo(next Embedder) *Memo {
	return &Memo{next: next, jobs: map[string]*memoEntry{}}
}

func (m *Memo) Embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	m.mu.Lock()
	e, ok := m.jobs[key]
	if !ok {
		e = &memoEntry{}
		m.jobs[key] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		e.vec, e.err = m.next.Embed(ctx, text)
	})
	return e.vec, e.err
}
