package graph

import (
	"sort"

	"github.com/bridgewise/backend/pkg/common"
)

// Neighbor is one adjacency entry of an Index.
type Neighbor struct {
	Node   int
	Weight float64
}

// Index is a read-only adjacency view over a node list and an edge set.
// Nodes are addressed by their position in the sorted id list so that every
// algorithm iterating over an Index visits nodes in the same order.
type Index struct {
	ids         []string
	pos         map[string]int
	adj         [][]Neighbor
	strength    []float64
	totalWeight float64
}

// NewIndex builds an Index. Edges referencing unknown ids are ignored, as are
// self loops and non-positive weights. Parallel edges are merged by summing.
func NewIndex(ids []string, edges []common.Edge) *Index {
	sorted := make([]string, 0, len(ids))
	pos := make(map[string]int, len(ids))
	for _, id := range ids {
		if _, ok := pos[id]; ok {
			continue
		}
		pos[id] = -1
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	for i, id := range sorted {
		pos[id] = i
	}

	merged := make([]map[int]float64, len(sorted))
	for _, e := range edges {
		a, okA := pos[e.Source]
		b, okB := pos[e.Target]
		if !okA || !okB || a == b || e.Weight <= 0 {
			continue
		}
		if merged[a] == nil {
			merged[a] = map[int]float64{}
		}
		if merged[b] == nil {
			merged[b] = map[int]float64{}
		}
		merged[a][b] += e.Weight
		merged[b][a] += e.Weight
	}

	x := &Index{
		ids:      sorted,
		pos:      pos,
		adj:      make([][]Neighbor, len(sorted)),
		strength: make([]float64, len(sorted)),
	}
	for i, m := range merged {
		if len(m) == 0 {
			continue
		}
		nbrs := make([]Neighbor, 0, len(m))
		for j, w := range m {
			nbrs = append(nbrs, Neighbor{Node: j, Weight: w})
			x.strength[i] += w
		}
		sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].Node < nbrs[b].Node })
		x.adj[i] = nbrs
		x.totalWeight += x.strength[i]
	}
	x.totalWeight /= 2
	return x
}

// NodesFromPersons returns the ids of the given persons.
func NodesFromPersons(persons []common.Person) []string {
	ids := make([]string, len(persons))
	for i, p := range persons {
		ids[i] = p.ID
	}
	return ids
}

func (x *Index) Len() int { return len(x.ids) }

func (x *Index) ID(i int) string { return x.ids[i] }

func (x *Index) IDs() []string { return x.ids }

// Position returns the node position of id.
func (x *Index) Position(id string) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

func (x *Index) Neighbors(i int) []Neighbor { return x.adj[i] }

func (x *Index) Degree(i int) int { return len(x.adj[i]) }

// Strength is the weighted degree of node i.
func (x *Index) Strength(i int) float64 { return x.strength[i] }

// TotalWeight is the sum of all edge weights.
func (x *Index) TotalWeight() float64 { return x.totalWeight }

// EdgeCount is the number of distinct undirected edges.
func (x *Index) EdgeCount() int {
	n := 0
	for _, a := range x.adj {
		n += len(a)
	}
	return n / 2
}

// Weight returns the weight of the edge between i and j, or 0.
func (x *Index) Weight(i, j int) float64 {
	nbrs := x.adj[i]
	k := sort.Search(len(nbrs), func(k int) bool { return nbrs[k].Node >= j })
	if k < len(nbrs) && nbrs[k].Node == j {
		return nbrs[k].Weight
	}
	return 0
}
