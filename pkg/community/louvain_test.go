package community

import (
	"context"
	"testing"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(a, b string, w float64) common.Edge {
	return common.Edge{Source: a, Target: b, Weight: w}
}

// two 4-cliques joined by one weak edge
func twoCliques() *graph.Index {
	ids := []string{"a1", "a2", "a3", "a4", "b1", "b2", "b3", "b4"}
	var edges []common.Edge
	for _, group := range [][]string{ids[:4], ids[4:]} {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				edges = append(edges, edge(group[i], group[j], 1))
			}
		}
	}
	edges = append(edges, edge("a4", "b1", 0.1))
	return graph.NewIndex(ids, edges)
}

func TestDetectTwoCliques(t *testing.T) {
	titles := map[string]string{
		"a1": "SoftwareEngineer", "a2": "SoftwareEngineer", "a3": "Product",
		"b1": "Design", "b2": "Design",
	}
	res, err := Detect(context.Background(), twoCliques(), titles, Options{})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, res.Clusters[0].Members)
	assert.Equal(t, []string{"b1", "b2", "b3", "b4"}, res.Clusters[1].Members)
	assert.Equal(t, 0, res.Clusters[0].ID)
	require.NotNil(t, res.Clusters[0].JobTitleLabel)
	assert.Equal(t, "SoftwareEngineer", *res.Clusters[0].JobTitleLabel)
	require.NotNil(t, res.Clusters[1].JobTitleLabel)
	assert.Equal(t, "Design", *res.Clusters[1].JobTitleLabel)

	assert.Greater(t, res.Modularity, 0.4)
	assert.True(t, res.Converged)
	assert.Equal(t, 8, res.NodeCount)
	assert.Equal(t, 13, res.EdgeCount)
}

func TestDetectPartitionInvariants(t *testing.T) {
	res, err := Detect(context.Background(), twoCliques(), nil, Options{})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, c := range res.Clusters {
		assert.NotEmpty(t, c.Members)
		assert.Nil(t, c.JobTitleLabel, "no titles means no label")
		for _, m := range c.Members {
			seen[m]++
		}
	}
	assert.Len(t, seen, 8)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	for i := 1; i < len(res.Levels); i++ {
		assert.GreaterOrEqual(t, res.Levels[i], res.Levels[i-1])
	}
}

func TestDetectDeterministic(t *testing.T) {
	x := twoCliques()
	a, err := Detect(context.Background(), x, nil, Options{})
	require.NoError(t, err)
	b, err := Detect(context.Background(), x, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Clusters, b.Clusters)
	assert.Equal(t, a.Modularity, b.Modularity)
}

func TestDetectNoEdges(t *testing.T) {
	x := graph.NewIndex([]string{"c", "a", "b"}, nil)
	res, err := Detect(context.Background(), x, nil, Options{})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 3)
	for _, c := range res.Clusters {
		assert.Len(t, c.Members, 1)
	}
	assert.Equal(t, []string{"a"}, res.Clusters[0].Members)
	assert.Equal(t, 0.0, res.Modularity)
}

func TestDetectEmpty(t *testing.T) {
	res, err := Detect(context.Background(), graph.NewIndex(nil, nil), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
	assert.NotNil(t, res.Clusters)
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detect(ctx, twoCliques(), nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	o := Options{}
	require.NoError(t, o.Validate())
	assert.Equal(t, DefaultMaxIterations, o.MaxIterations)
	assert.Equal(t, DefaultResolution, o.Resolution)

	bad := Options{Resolution: -1}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)
	bad = Options{LabelDominance: 1.5}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)
}

func TestLabel(t *testing.T) {
	titles := map[string]string{"a": "Design", "b": "Product", "c": "Design", "d": "Product"}

	l := Label([]string{"a", "b", "c", "d", "e"}, titles, 0)
	require.NotNil(t, l)
	assert.Equal(t, "Design", *l, "ties go to the smaller title")

	assert.Nil(t, Label([]string{"a", "b", "c", "d"}, titles, 0.6))
	assert.Nil(t, Label([]string{"e"}, titles, 0))
}

func TestResultClusterOf(t *testing.T) {
	res, err := Detect(context.Background(), twoCliques(), nil, Options{})
	require.NoError(t, err)
	lookup := res.ClusterOf()
	assert.Equal(t, lookup["a1"], lookup["a4"])
	assert.NotEqual(t, lookup["a1"], lookup["b1"])
}
