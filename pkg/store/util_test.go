package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/ai"
	"github.com/bridgewise/backend/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRange(t *testing.T) {
	var spans [][2]int
	err := ChunkRange(5, 2, func(start, end int) error {
		spans = append(spans, [2]int{start, end})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, spans)
	assert.NoError(t, ChunkRange(0, 2, func(int, int) error { return errors.New("unreachable") }))
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DedupeStrings([]string{"a", "", "b", "a"}))
	assert.Nil(t, DedupeStrings(nil))
}

func TestResolveEmbeddings(t *testing.T) {
	var calls atomic.Int32
	e := ai.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return []float32{float32(len(text))}, nil
	})
	cache := NewMemoryCache()
	require.NoError(t, cache.PutEmbeddings(context.Background(), "m", map[string][]float32{
		common.DescriptionHash("cached text"): {42},
	}))

	persons := []common.Person{
		{ID: "a", DescriptionText: "cached text"},
		{ID: "b", DescriptionText: "fresh"},
		{ID: "c", DescriptionText: " fresh "},
		{ID: "d"},
		{ID: "e", DescriptionText: "has one", Embedding: []float32{7}},
	}
	n, err := ResolveEmbeddings(context.Background(), persons, ResolveEmbeddingsParams{
		Embedder: e, Cache: cache, Model: "m", BatchSize: 1, Parallelism: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, calls.Load(), "identical descriptions are embedded once")

	assert.Equal(t, []float32{42}, persons[0].Embedding)
	assert.Equal(t, []float32{5}, persons[1].Embedding)
	assert.Equal(t, []float32{5}, persons[2].Embedding)
	assert.Nil(t, persons[3].Embedding)
	assert.Equal(t, []float32{7}, persons[4].Embedding)
	assert.Equal(t, 2, cache.Len())

	// a second pass is served from the cache
	persons[1].Embedding, persons[2].Embedding = nil, nil
	n, err = ResolveEmbeddings(context.Background(), persons, ResolveEmbeddingsParams{Embedder: e, Cache: cache})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, calls.Load())
}

func TestResolveEmbeddingsError(t *testing.T) {
	e := ai.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, ai.ErrEmbeddingUnavailable
	})
	_, err := ResolveEmbeddings(context.Background(), []common.Person{{ID: "a", DescriptionText: "x"}}, ResolveEmbeddingsParams{Embedder: e})
	assert.ErrorIs(t, err, ai.ErrEmbeddingUnavailable)

	n, err := ResolveEmbeddings(context.Background(), []common.Person{{ID: "a", DescriptionText: "x"}}, ResolveEmbeddingsParams{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolveEmbeddingsRetriesFailedBatch(t *testing.T) {
	var calls atomic.Int32
	e := ai.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return []float32{float32(len(text))}, nil
	})
	persons := []common.Person{{ID: "a", DescriptionText: "golang"}}

	n, err := ResolveEmbeddings(context.Background(), persons, ResolveEmbeddingsParams{
		Embedder: e, Retry: util.RetryPolicy{Attempts: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []float32{6}, persons[0].Embedding)
}
