package graph

import (
	"testing"

	"github.com/bridgewise/backend/pkg/common"

	"github.com/stretchr/testify/assert"
)

func chain() *Index {
	return NewIndex([]string{"a", "b", "c", "d", "e", "z"}, []common.Edge{
		edge("a", "b", 1), edge("b", "c", 1), edge("c", "d", 1), edge("d", "e", 1), edge("a", "c", 1),
	})
}

func ids(x *Index, path []int) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = x.ID(p)
	}
	return out
}

func TestShortestPath(t *testing.T) {
	x := chain()
	pos := func(id string) int { p, _ := x.Position(id); return p }

	tests := []struct {
		name     string
		src, dst string
		maxDepth int
		want     []string
	}{
		{name: "shortcut", src: "a", dst: "d", maxDepth: 4, want: []string{"a", "c", "d"}},
		{name: "same node", src: "b", dst: "b", maxDepth: 4, want: []string{"b"}},
		{name: "too deep", src: "a", dst: "e", maxDepth: 2, want: nil},
		{name: "exact depth", src: "a", dst: "e", maxDepth: 3, want: []string{"a", "c", "d", "e"}},
		{name: "unreachable", src: "a", dst: "z", maxDepth: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShortestPath(x, pos(tt.src), pos(tt.dst), tt.maxDepth)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(x, got))
		})
	}
}

func TestDistances(t *testing.T) {
	x := chain()
	a, _ := x.Position("a")
	d, _ := x.Position("d")
	e, _ := x.Position("e")

	all := Distances(x, a, 0)
	assert.Len(t, all, 5)
	assert.Equal(t, 2, all[d])
	assert.Equal(t, 3, all[e])

	near := Distances(x, a, 2)
	_, ok := near[e]
	assert.False(t, ok)
	assert.Equal(t, 0, near[a])
}
