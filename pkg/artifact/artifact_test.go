package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id string, builtAt time.Time) *common.GraphArtifact {
	label := "SoftwareEngineer"
	return &common.GraphArtifact{
		ID:      id,
		BuiltAt: builtAt,
		Nodes: []common.Person{
			{ID: "a", Name: "Ada", Title: "Backend Engineer", Skills: []string{"go", "machine learning"}},
			{ID: "b", Name: "Bob", Title: "Software Developer", Skills: []string{"go", "sql"}},
			{ID: "c", Name: "Cy", Skills: []string{"figma"}},
		},
		Edges:      []common.Edge{{Source: "a", Target: "b", Weight: 2, SharedSkills: []string{"go"}}},
		Clusters:   []common.Cluster{{ID: 0, Members: []string{"a", "b"}, JobTitleLabel: &label}, {ID: 1, Members: []string{"c"}}},
		Modularity: 0.25,
		Metrics:    map[string]common.NodeMetrics{"a": {Degree: 1, StructGlobal: 0.5}},
		Parameters: map[string]any{"weightMode": "count"},
	}
}

func TestEncodeDecode(t *testing.T) {
	a := sample("art1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, a.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, a.Edges, got.Edges)
	assert.Equal(t, a.Clusters, got.Clusters)

	_, err = Decode(strings.NewReader("not gzip"))
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 0)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sample("first", time.Now())))
	require.NoError(t, s.Save(ctx, sample("second", time.Now())))

	latest, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.ID)

	first, err := s.Load(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", first.ID)

	_, err = s.Load(ctx, "../etc")
	assert.Error(t, err)
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.FileExists(t, filepath.Join(dir, "second.params.json"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files are cleaned up")
	}
}

func TestFileStorePrune(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 2)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("a%d", i)
		require.NoError(t, s.Save(ctx, sample(id, base)))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, id+".json.gz"), mod, mod))
	}
	require.NoError(t, s.Save(ctx, sample("a4", base)))

	var left []string
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json.gz") {
			left = append(left, strings.TrimSuffix(e.Name(), ".json.gz"))
		}
	}
	sort.Strings(left)
	assert.Len(t, left, 2)
	assert.Contains(t, left, "a4")
}

type memBlobs struct {
	mu   sync.Mutex
	objs map[string][]byte

	// failPuts makes the next n Put calls fail.
	failPuts int
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts > 0 {
		m.failPuts--
		return errors.New("503 slow down")
	}
	m.objs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memBlobs) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objs, k)
	}
	return nil
}

func TestBlobStore(t *testing.T) {
	blobs := &memBlobs{objs: map[string][]byte{}}
	s := NewBlobStore(blobs, "/artifacts/", 2)
	ctx := context.Background()

	_, err := s.LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, sample(fmt.Sprintf("b%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	latest, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b2", latest.ID)

	_, err = s.Load(ctx, "b0")
	assert.ErrorIs(t, err, ErrNotFound, "oldest artifact is pruned")
	_, err = s.Load(ctx, "b1")
	assert.NoError(t, err)
	assert.Contains(t, blobs.objs, "artifacts/latest")
}

func TestBlobStoreRetriesUploads(t *testing.T) {
	ctx := context.Background()
	a := sample("r1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	blobs := &memBlobs{objs: map[string][]byte{}, failPuts: 1}
	s := NewBlobStore(blobs, "", 0)
	s.retry = util.RetryPolicy{Attempts: 2}
	require.NoError(t, s.Save(ctx, a))
	latest, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", latest.ID)

	blobs = &memBlobs{objs: map[string][]byte{}, failPuts: 2}
	s = NewBlobStore(blobs, "", 0)
	s.retry = util.RetryPolicy{Attempts: 2}
	assert.Error(t, s.Save(ctx, a))
	assert.NotContains(t, blobs.objs, "latest", "pointer is not written when the upload failed")
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot(sample("snap", time.Now()), nil)

	assert.Equal(t, "snap", s.ID())
	p, ok := s.Person("b")
	require.True(t, ok)
	assert.Equal(t, "Bob", p.Name)
	_, ok = s.Person("zz")
	assert.False(t, ok)

	assert.Equal(t, "SoftwareEngineer", s.Title("a"))
	assert.Equal(t, "", s.Title("c"))

	c, ok := s.ClusterOf("c")
	require.True(t, ok)
	assert.Equal(t, 1, c)
	cl, ok := s.Cluster(0)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, cl.Members)

	assert.True(t, s.HasSkill("machine learning"))
	assert.False(t, s.HasSkill("rust"))
	assert.Equal(t, 4, s.VocabularySize())
	assert.Equal(t, 0.5, s.Metrics("a").StructGlobal)
	assert.Equal(t, 1, s.Index.EdgeCount())
}

func TestSnapshotSummaries(t *testing.T) {
	s := NewSnapshot(sample("snap", time.Now()), nil)
	sum := s.Summaries(1)
	require.Len(t, sum, 2)
	assert.Equal(t, 2, sum[0].Size)
	assert.Equal(t, []string{"go"}, sum[0].TopSkills)
	assert.Equal(t, []string{"SoftwareEngineer"}, sum[0].TopTitles)
	assert.Nil(t, sum[1].JobTitle)
}

func TestHolderSwap(t *testing.T) {
	var h Holder
	assert.Nil(t, h.Load())

	first := NewSnapshot(sample("one", time.Now()), nil)
	assert.Nil(t, h.Swap(first))
	second := NewSnapshot(sample("two", time.Now()), nil)
	assert.Same(t, first, h.Swap(second))
	assert.Equal(t, "two", h.Load().ID())
}
