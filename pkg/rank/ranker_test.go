package rank

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bridgewise/backend/pkg/ai"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture: me knows a and b, c is only reachable through a or b.
func fixture() *artifact.Holder {
	a := &common.GraphArtifact{
		ID:      "art-1",
		BuiltAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Nodes: []common.Person{
			{ID: "a", Name: "Ada", Title: "ML Engineer", Skills: []string{"machine learning", "python"}, Embedding: []float32{1, 0}},
			{ID: "b", Name: "Bob", Title: "Backend Developer", Skills: []string{"go", "sql"}, Embedding: []float32{0, 1}},
			{ID: "c", Name: "Cy", Title: "Recruiter"},
			{ID: "me", Name: "Me", Title: "Product Manager", Skills: []string{"go"}},
		},
		Edges: []common.Edge{
			{Source: "a", Target: "c", Weight: 1},
			{Source: "a", Target: "me", Weight: 1},
			{Source: "b", Target: "c", Weight: 1},
			{Source: "b", Target: "me", Weight: 2},
		},
		Clusters: []common.Cluster{{ID: 0, Members: []string{"a", "b", "c", "me"}}},
		Metrics: map[string]common.NodeMetrics{
			"a":  {StructGlobal: 0.2, BridgePotential: 0.1},
			"b":  {StructGlobal: 0.2},
			"c":  {StructGlobal: 1},
			"me": {StructGlobal: 0.5},
		},
	}
	h := &artifact.Holder{}
	h.Swap(artifact.NewSnapshot(a, nil))
	return h
}

func staticEmbedder(vec []float32) ai.Embedder {
	return ai.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return vec, nil
	})
}

type recordingWriter struct {
	mu      sync.Mutex
	records []store.RankRecord
	err     error
}

func (w *recordingWriter) WriteRanks(_ context.Context, records []store.RankRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	return w.err
}

func newRanker(t *testing.T, params NewRankerParams) *Ranker {
	t.Helper()
	if params.Holder == nil {
		params.Holder = fixture()
	}
	r, err := NewRanker(params)
	require.NoError(t, err)
	return r
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestRankSkillsAndVectors(t *testing.T) {
	r := newRanker(t, NewRankerParams{Embedder: staticEmbedder([]float32{1, 0})})

	res, err := r.Rank(context.Background(), Request{
		RequesterID: "me",
		QueryText:   "Python / machine learning mentor",
		TopK:        10,
	})
	require.NoError(t, err)

	assert.Equal(t, "art-1", res.ArtifactID)
	assert.True(t, res.VecSimAvailable)
	assert.Equal(t, []string{"machine learning", "python"}, res.Query.Skills)
	assert.Equal(t, 3, res.CandidateCount)
	require.Equal(t, []string{"a", "b", "c"}, ids(res.Results))

	top := res.Results[0]
	assert.InDelta(t, 1.0, top.Components.SkillMatch, 1e-9)
	assert.InDelta(t, 1.0, top.Components.VecSim, 1e-9)
	assert.True(t, top.Components.VecSimAvailable)
	assert.InDelta(t, 0.6875, top.Score, 1e-9)

	assert.InDelta(t, 0.5, res.Results[1].Components.VecSim, 1e-9)
	assert.False(t, res.Results[2].Components.VecSimAvailable, "c has no embedding")
	assert.Zero(t, res.Results[2].Components.VecSim)
}

func TestRankEmptyQueryIsStructural(t *testing.T) {
	r := newRanker(t, NewRankerParams{})

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", TopK: 3})
	require.NoError(t, err)

	assert.False(t, res.VecSimAvailable)
	assert.True(t, res.Query.Empty())
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "c", res.Results[0].ID)
	for _, x := range res.Results {
		assert.Zero(t, x.Components.SkillMatch)
		assert.Zero(t, x.Components.JobMatch)
	}
}

func TestRankOrderingAndTopK(t *testing.T) {
	r := newRanker(t, NewRankerParams{Embedder: staticEmbedder([]float32{1, 1})})

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", QueryText: "anything", TopK: 2})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for i := 1; i < len(res.Results); i++ {
		prev, cur := res.Results[i-1], res.Results[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.ID < cur.ID))
	}
	for _, x := range res.Results {
		assert.NotEqual(t, "me", x.ID)
		assert.GreaterOrEqual(t, x.Score, 0.0)
		assert.LessOrEqual(t, x.Score, 1.0)
	}
}

func TestRankExclude(t *testing.T) {
	r := newRanker(t, NewRankerParams{})

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", TopK: 10, Exclude: []string{"c", "missing"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(res.Results))
	assert.Equal(t, 2, res.CandidateCount)
}

func TestRankErrors(t *testing.T) {
	ctx := context.Background()
	r := newRanker(t, NewRankerParams{})

	_, err := r.Rank(ctx, Request{RequesterID: "nobody", TopK: 5})
	assert.ErrorIs(t, err, ErrPersonNotFound)

	for _, k := range []int{0, -1, DefaultMaxTopK + 1} {
		_, err = r.Rank(ctx, Request{RequesterID: "me", TopK: k})
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "topK %d", k)
	}

	_, err = r.Rank(ctx, Request{RequesterID: " ", TopK: 5})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	bad := Weights{AlphaSkills: 0.6, BetaJob: 0.3, GammaStruct: 0.3}
	_, err = r.Rank(ctx, Request{RequesterID: "me", TopK: 5, Weights: &bad})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	empty := newRanker(t, NewRankerParams{Holder: &artifact.Holder{}})
	_, err = empty.Rank(ctx, Request{RequesterID: "me", TopK: 5})
	assert.ErrorIs(t, err, ErrArtifactMissing)

	_, err = NewRanker(NewRankerParams{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = NewRanker(NewRankerParams{Holder: fixture(), EgoMetric: "closeness"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRankEmbeddingTimeout(t *testing.T) {
	slow := ai.EmbedderFunc(func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := newRanker(t, NewRankerParams{Embedder: slow, EmbedTimeout: 20 * time.Millisecond})

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", QueryText: "python", TopK: 10})
	require.NoError(t, err)
	assert.False(t, res.VecSimAvailable)
	for _, x := range res.Results {
		assert.Zero(t, x.Components.VecSim)
		assert.False(t, x.Components.VecSimAvailable)
	}
	assert.Equal(t, "a", res.Results[0].ID)
}

func TestRankEmbeddingError(t *testing.T) {
	failing := ai.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("provider down")
	})
	r := newRanker(t, NewRankerParams{Embedder: failing})

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", QueryText: "python", TopK: 10})
	require.NoError(t, err)
	assert.False(t, res.VecSimAvailable)
}

func TestRankExplicitSkillsAndTitle(t *testing.T) {
	r := newRanker(t, NewRankerParams{})
	title := "Senior Backend Engineer"

	res, err := r.Rank(context.Background(), Request{
		RequesterID: "me",
		QueryTitle:  &title,
		QuerySkills: []string{"Go", "Kubernetes"},
		TopK:        10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "kubernetes"}, res.Query.Skills)
	assert.Equal(t, "SoftwareEngineer", res.Query.TitleCanon)
	require.Equal(t, "b", res.Results[0].ID)
	assert.InDelta(t, 0.5, res.Results[0].Components.SkillMatch, 1e-9)
	assert.InDelta(t, 1.0, res.Results[0].Components.JobMatch, 1e-9)
}

func TestRankWriteBack(t *testing.T) {
	w := &recordingWriter{}
	r := newRanker(t, NewRankerParams{Writer: w})
	goal := strings.Repeat("x", 250)

	res, err := r.Rank(context.Background(), Request{RequesterID: "me", QueryText: goal, TopK: 2, WriteBack: true})
	require.NoError(t, err)

	require.Len(t, w.records, 2)
	assert.Equal(t, res.Results[0].ID, w.records[0].PersonID)
	assert.Len(t, w.records[0].Goal, 200)
	assert.InDelta(t, res.Results[0].Score, w.records[0].Score, 1e-12)

	w.err = errors.New("db down")
	_, err = r.Rank(context.Background(), Request{RequesterID: "me", TopK: 2, WriteBack: true})
	assert.NoError(t, err, "write back failures never fail the ranking")
}

func TestRankDeterministic(t *testing.T) {
	r := newRanker(t, NewRankerParams{Embedder: staticEmbedder([]float32{0.3, 0.7})})
	req := Request{RequesterID: "me", QueryText: "go sql engineer", TopK: 10}

	first, err := r.Rank(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Rank(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Results, again.Results)
	}
}

func TestRankBatchSharesEmbeddings(t *testing.T) {
	var calls atomic.Int32
	e := ai.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		calls.Add(1)
		return []float32{1, 0}, nil
	})
	r := newRanker(t, NewRankerParams{Embedder: e})

	out, err := r.RankBatch(context.Background(), BatchRequest{
		Request: Request{RequesterID: "me", TopK: 2},
		Queries: []string{"python", " python ", "sql"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "sql", out[2].Query)
	assert.Equal(t, ids(out[0].Results), ids(out[1].Results))
	assert.EqualValues(t, 2, calls.Load())

	_, err = r.RankBatch(context.Background(), BatchRequest{Request: Request{RequesterID: "ghost", TopK: 2}, Queries: []string{"x"}})
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestExplain(t *testing.T) {
	r := newRanker(t, NewRankerParams{})

	ex, err := r.Explain(context.Background(), Request{RequesterID: "me", QueryText: "sql developer"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"sql"}, ex.Parsed.Skills)
	assert.Equal(t, []string{"developer"}, ex.Parsed.JobTokens)
	assert.Equal(t, 1, ex.CandidateCount)
	assert.Equal(t, []string{"b"}, ex.CandidateSample)

	ex, err = r.Explain(context.Background(), Request{RequesterID: "me"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, ex.CandidateCount)
	assert.Equal(t, []string{"a", "b"}, ex.CandidateSample)

	_, err = r.Explain(context.Background(), Request{RequesterID: "nobody"}, 2)
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestIntroPath(t *testing.T) {
	r := newRanker(t, NewRankerParams{})
	ctx := context.Background()

	path, err := r.IntroPath(ctx, "me", "c", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"me", "a", "c"}, path)

	path, err = r.IntroPath(ctx, "me", "c", 1)
	require.NoError(t, err)
	assert.Nil(t, path)

	_, err = r.IntroPath(ctx, "me", "ghost", 4)
	assert.ErrorIs(t, err, ErrPersonNotFound)
	_, err = r.IntroPath(ctx, "me", "c", 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestSubgraph(t *testing.T) {
	r := newRanker(t, NewRankerParams{})

	view, err := r.Subgraph(context.Background(), Request{RequesterID: "me", TopK: 2})
	require.NoError(t, err)
	assert.False(t, view.Fallback)
	require.Len(t, view.Nodes, 3)

	var me *GraphNode
	for i := range view.Nodes {
		if view.Nodes[i].IsMe {
			me = &view.Nodes[i]
		}
	}
	require.NotNil(t, me)
	assert.Equal(t, "me", me.ID)
	require.NotNil(t, me.Community)
	assert.Equal(t, 0, *me.Community)

	present := map[string]bool{}
	for _, n := range view.Nodes {
		present[n.ID] = true
	}
	for _, l := range view.Links {
		assert.True(t, present[l.Source] && present[l.Target])
		assert.Less(t, l.Source, l.Target)
	}

	_, err = r.Subgraph(context.Background(), Request{RequesterID: "ghost", TopK: 2})
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestSubgraphFallback(t *testing.T) {
	r := newRanker(t, NewRankerParams{Embedder: staticEmbedder([]float32{1, 0})})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	view, err := r.Subgraph(ctx, Request{RequesterID: "me", QueryText: "python", TopK: 2})
	require.NoError(t, err)
	assert.True(t, view.Fallback)
	assert.NotEmpty(t, view.Error)

	got := map[string]bool{}
	for _, n := range view.Nodes {
		got[n.ID] = true
	}
	assert.Equal(t, map[string]bool{"me": true, "a": true, "b": true}, got)
}

func TestRecords(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := Records("  goal  ", at, []Result{{
		ID:    "a",
		Score: 0.7,
		Components: Components{
			VecSim: 0.9, SkillMatch: 0.5, JobMatch: 1, StructGlobal: 0.2, StructEgo: 0.6,
		},
	}})
	require.Len(t, recs, 1)
	assert.Equal(t, store.RankRecord{
		PersonID: "a", Goal: "goal", Score: 0.7, VecSim: 0.9, SkillSim: 0.5, JobSim: 1, Struct: 0.4, At: at,
	}, recs[0])
}

func TestRankGoal(t *testing.T) {
	w := &recordingWriter{}
	r := newRanker(t, NewRankerParams{Writer: w})

	title := "ML Engineer"
	res, err := r.RankGoal(context.Background(), GoalRequest{QueryTitle: &title, QuerySkills: []string{"python"}, TopK: 2, WriteBack: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "a", res.Results[0].ID)
	assert.Equal(t, 4, res.CandidateCount, "nobody is excluded without a requester")
	for _, x := range res.Results {
		assert.Zero(t, x.Components.StructEgo)
	}
	require.Len(t, w.records, 4)
	assert.Equal(t, "ML Engineer", w.records[0].Goal)

	_, err = r.RankGoal(context.Background(), GoalRequest{TopK: 0})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	res, err = r.RankGoal(context.Background(), GoalRequest{QueryTitle: &title, TopK: 4, Exclude: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CandidateCount)
	for _, x := range res.Results {
		assert.NotEqual(t, "a", x.ID)
	}
}
