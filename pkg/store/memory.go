package store

import (
	"context"
	"sync"
)

// MemoryCache is an in-process EmbeddingCache used when no database is
// configured.
type MemoryCache struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{vecs: map[string][]float32{}}
}

func (m *MemoryCache) GetEmbeddings(_ context.Context, hashes []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32, len(hashes))
	for _, h := range hashes {
		if v, ok := m.vecs[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

func (m *MemoryCache) PutEmbeddings(_ context.Context, _ string, embeddings map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, v := range embeddings {
		m.vecs[h] = v
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}
