package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/bridgewise/backend/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(id string, skills ...string) common.Person {
	return common.Person{ID: id, Name: id, Skills: skills}
}

func mustBuilder(t *testing.T, params NewBuilderParams) *Builder {
	t.Helper()
	b, err := NewBuilder(params)
	require.NoError(t, err)
	return b
}

func TestBuildSharedSkillScenario(t *testing.T) {
	persons := []common.Person{
		person("a", "Go", "SQL", "Kafka", "Docker"),
		person("b", "go", "sql", "kafka", "react"),
		person("c", "figma"),
	}
	b := mustBuilder(t, NewBuilderParams{MinSharedSkills: 2, WeightMode: WeightCount, Parallelism: 2})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)

	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, "a", e.Source)
	assert.Equal(t, "b", e.Target)
	assert.Equal(t, 3.0, e.Weight)
	assert.Equal(t, []string{"go", "kafka", "sql"}, e.SharedSkills)
	assert.Len(t, g.Nodes, 3, "isolated nodes are kept by default")
}

func TestBuildJaccardAndThreshold(t *testing.T) {
	persons := []common.Person{
		person("a", "go", "sql", "kafka", "docker"),
		person("b", "go", "sql", "kafka", "react"),
		person("c", "go", "figma"),
	}
	b := mustBuilder(t, NewBuilderParams{MinSharedSkills: 2, WeightMode: WeightJaccard})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)

	require.Len(t, g.Edges, 1, "a-c and b-c share a single skill")
	assert.InDelta(t, 3.0/5.0, g.Edges[0].Weight, 1e-9)
}

func TestBuildBoostsAndJobLayer(t *testing.T) {
	persons := []common.Person{
		{ID: "a", Company: "Acme", Schools: []string{"MIT"}, Title: "Backend Developer"},
		{ID: "b", Company: "acme", Title: "Software Engineer II"},
		{ID: "c", Schools: []string{"mit"}, Title: "Product Manager"},
		{ID: "d", Title: "Senior Product Manager"},
	}
	b := mustBuilder(t, NewBuilderParams{CompanyBoost: 1.0, SchoolBoost: 0.5, JobEdgeWeight: 0.25})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)

	weights := map[string]float64{}
	for _, e := range g.Edges {
		weights[e.Source+"-"+e.Target] = e.Weight
	}
	assert.Equal(t, map[string]float64{
		"a-b": 1.25,
		"a-c": 0.5,
		"c-d": 0.25,
	}, weights)
	assert.Equal(t, "SoftwareEngineer", g.Titles["a"])
	assert.Equal(t, "Product", g.Titles["d"])
}

func TestBuildExcludesIDs(t *testing.T) {
	persons := []common.Person{
		person("a", "go", "sql"),
		person("b", "go", "sql"),
		person("me", "go", "sql"),
	}
	b := mustBuilder(t, NewBuilderParams{MinSharedSkills: 1, ExcludeIDs: []string{"me"}})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)

	for _, p := range g.Nodes {
		assert.NotEqual(t, "me", p.ID)
	}
	for _, e := range g.Edges {
		assert.NotEqual(t, "me", e.Source)
		assert.NotEqual(t, "me", e.Target)
	}
	require.Len(t, g.Edges, 1)
}

func TestBuildEdgeInvariants(t *testing.T) {
	skills := []string{"go", "sql", "kafka", "react", "docker", "aws"}
	var persons []common.Person
	for i := 0; i < 40; i++ {
		var s []string
		for k, sk := range skills {
			if (i+k)%3 != 0 {
				s = append(s, sk)
			}
		}
		persons = append(persons, common.Person{
			ID:      fmt.Sprintf("p%02d", i),
			Skills:  s,
			Company: fmt.Sprintf("c%d", i%5),
		})
	}
	b := mustBuilder(t, NewBuilderParams{MinSharedSkills: 2, CompanyBoost: 1, Parallelism: 3})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)
	require.NotEmpty(t, g.Edges)

	seen := map[string]bool{}
	for _, e := range g.Edges {
		assert.Less(t, e.Source, e.Target, "canonical orientation, no self loops")
		assert.Greater(t, e.Weight, 0.0)
		key := e.Source + "|" + e.Target
		assert.False(t, seen[key], "duplicate edge %s", key)
		seen[key] = true
	}

	again, err := mustBuilder(t, NewBuilderParams{MinSharedSkills: 2, CompanyBoost: 1, Parallelism: 7}).
		Build(context.Background(), persons)
	require.NoError(t, err)
	assert.Equal(t, g.Edges, again.Edges, "parallelism must not change the result")
}

func TestBuildEmbeddingEdges(t *testing.T) {
	persons := []common.Person{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0.1}},
		{ID: "c", Embedding: []float32{-1, 0}},
	}
	b := mustBuilder(t, NewBuilderParams{EmbedTopN: 1, EmbedScale: 2})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)

	require.Len(t, g.Edges, 1, "negative similarity never creates an edge")
	assert.Equal(t, "a", g.Edges[0].Source)
	assert.Equal(t, "b", g.Edges[0].Target)
	assert.InDelta(t, 2*Cosine(persons[0].Embedding, persons[1].Embedding), g.Edges[0].Weight, 1e-9)
}

func TestBuildDropIsolated(t *testing.T) {
	persons := []common.Person{person("a", "go"), person("b", "go"), person("c", "rust")}
	b := mustBuilder(t, NewBuilderParams{MinSharedSkills: 1, DropIsolated: true})

	g, err := b.Build(context.Background(), persons)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, NodesFromPersons(g.Nodes))
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(NewBuilderParams{WeightMode: "cosine"})
	assert.Error(t, err)

	_, err = NewBuilder(NewBuilderParams{CompanyBoost: -1})
	assert.Error(t, err)
}

func TestBuildEmptyInput(t *testing.T) {
	g, err := mustBuilder(t, NewBuilderParams{}).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
