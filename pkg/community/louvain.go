package community

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"
	"github.com/bridgewise/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/bridgewise/backend/pkg/community")

const (
	DefaultMaxIterations = 20
	DefaultMaxSweeps     = 100
	DefaultResolution    = 1.0
	DefaultMinGain       = 1e-10
)

var ErrInvalidOptions = errors.New("invalid community options")

// Options configures Louvain community detection.
type Options struct {
	// MaxIterations limits the number of levels (local moves followed by
	// aggregation). Default: 20
	MaxIterations int

	// MaxSweeps limits local move passes within one level. Default: 100
	MaxSweeps int

	// Resolution scales the null model. Higher values give smaller
	// communities. Default: 1.0
	Resolution float64

	// MinGain is the smallest modularity gain accepted for a move.
	MinGain float64

	// LabelDominance is the minimum share of the most common title among a
	// cluster's titled members for the cluster to be labeled. 0 always
	// labels with the majority title.
	LabelDominance float64
}

// Validate applies defaults and rejects out of range values.
func (o *Options) Validate() error {
	if o.MaxIterations < 0 || o.MaxSweeps < 0 || o.Resolution < 0 || o.MinGain < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidOptions)
	}
	if o.LabelDominance < 0 || o.LabelDominance > 1 {
		return fmt.Errorf("%w: label dominance must be within [0,1]", ErrInvalidOptions)
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxSweeps == 0 {
		o.MaxSweeps = DefaultMaxSweeps
	}
	if o.Resolution == 0 {
		o.Resolution = DefaultResolution
	}
	if o.MinGain == 0 {
		o.MinGain = DefaultMinGain
	}
	return nil
}

// Result is the output of Detect.
type Result struct {
	Clusters []common.Cluster `json:"clusters"`

	// Modularity is the modularity of the final partition.
	Modularity float64 `json:"modularity"`

	// Levels holds the modularity reached after every level; it never decreases.
	Levels []float64 `json:"levels"`

	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
	NodeCount  int  `json:"nodeCount"`
	EdgeCount  int  `json:"edgeCount"`
}

// ClusterOf returns a node id to cluster id lookup.
func (r *Result) ClusterOf() map[string]int {
	out := map[string]int{}
	for _, c := range r.Clusters {
		for _, m := range c.Members {
			out[m] = c.ID
		}
	}
	return out
}

// level is the working graph of one Louvain level. Node i of a level stands
// for a set of original nodes; self holds the weight of edges inside it.
type level struct {
	adj  [][]graph.Neighbor
	self []float64
	k    []float64
}

func baseLevel(x *graph.Index) *level {
	n := x.Len()
	l := &level{
		adj:  make([][]graph.Neighbor, n),
		self: make([]float64, n),
		k:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		l.adj[i] = x.Neighbors(i)
		l.k[i] = x.Strength(i)
	}
	return l
}

// Detect partitions the graph into communities with the Louvain method and
// labels each community with its dominant canonical title. Nodes are visited
// in sorted id order and ties resolve to the smallest community, so the same
// input always yields the same partition.
func Detect(ctx context.Context, x *graph.Index, titles map[string]string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "community.Detect")
	defer span.End()
	span.SetAttributes(
		attribute.Int("community.nodes", x.Len()),
		attribute.Float64("community.resolution", opts.Resolution),
	)

	n := x.Len()
	res := &Result{NodeCount: n, EdgeCount: x.EdgeCount(), Levels: []float64{}}
	if n == 0 {
		res.Clusters = []common.Cluster{}
		res.Converged = true
		return res, nil
	}

	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	m2 := 2 * x.TotalWeight()
	if m2 == 0 {
		res.Clusters = buildClusters(x, membership, titles, opts.LabelDominance)
		res.Converged = true
		return res, nil
	}

	lvl := baseLevel(x)
	res.Modularity = modularity(lvl, identity(n), m2, opts.Resolution)

	for it := 0; it < opts.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		comm, moved, err := localMoves(ctx, lvl, m2, opts)
		if err != nil {
			return nil, err
		}
		res.Iterations = it + 1
		if !moved {
			res.Converged = true
			break
		}

		comm, count := renumber(comm)
		q := modularity(lvl, comm, m2, opts.Resolution)
		if q+opts.MinGain < res.Modularity {
			// numerical noise only; keep the previous partition
			res.Converged = true
			break
		}
		res.Modularity = q
		res.Levels = append(res.Levels, q)
		for i := range membership {
			membership[i] = comm[membership[i]]
		}
		logger.Debug("[Community] Level done", "level", it, "communities", count, "modularity", q)

		lvl = aggregate(lvl, comm, count)
		if count == 1 {
			res.Converged = true
			break
		}
	}

	res.Clusters = buildClusters(x, membership, titles, opts.LabelDominance)
	span.SetAttributes(
		attribute.Int("community.clusters", len(res.Clusters)),
		attribute.Float64("community.modularity", res.Modularity),
	)
	logger.Info("[Community] Detected communities",
		"clusters", len(res.Clusters),
		"modularity", res.Modularity,
		"iterations", res.Iterations,
	)
	return res, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// localMoves repeatedly moves single nodes to the neighbouring community with
// the largest modularity gain until a sweep makes no move.
func localMoves(ctx context.Context, l *level, m2 float64, opts Options) ([]int, bool, error) {
	n := len(l.adj)
	comm := identity(n)
	tot := make([]float64, n)
	copy(tot, l.k)

	moved := false
	weights := make(map[int]float64)
	for sweep := 0; sweep < opts.MaxSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		changes := 0
		for i := 0; i < n; i++ {
			clear(weights)
			for _, nb := range l.adj[i] {
				weights[comm[nb.Node]] += nb.Weight
			}

			cur := comm[i]
			tot[cur] -= l.k[i]
			gain := func(c int) float64 {
				return weights[c] - opts.Resolution*tot[c]*l.k[i]/m2
			}

			best, bestGain := cur, gain(cur)
			cands := make([]int, 0, len(weights))
			for c := range weights {
				cands = append(cands, c)
			}
			sort.Ints(cands)
			for _, c := range cands {
				if c == cur {
					continue
				}
				if g := gain(c); g > bestGain+opts.MinGain {
					best, bestGain = c, g
				}
			}

			tot[best] += l.k[i]
			if best != cur {
				comm[i] = best
				changes++
			}
		}
		if changes == 0 {
			break
		}
		moved = true
	}
	return comm, moved, nil
}

// renumber maps community labels to 0..k-1 in order of first appearance.
func renumber(comm []int) ([]int, int) {
	ids := map[int]int{}
	out := make([]int, len(comm))
	for i, c := range comm {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out, len(ids)
}

func modularity(l *level, comm []int, m2, resolution float64) float64 {
	in := map[int]float64{}
	tot := map[int]float64{}
	for i := range l.adj {
		c := comm[i]
		tot[c] += l.k[i]
		in[c] += 2 * l.self[i]
		for _, nb := range l.adj[i] {
			if comm[nb.Node] == c {
				in[c] += nb.Weight
			}
		}
	}
	keys := make([]int, 0, len(tot))
	for c := range tot {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	q := 0.0
	for _, c := range keys {
		share := tot[c] / m2
		q += in[c]/m2 - resolution*share*share
	}
	return q
}

func aggregate(l *level, comm []int, count int) *level {
	next := &level{
		adj:  make([][]graph.Neighbor, count),
		self: make([]float64, count),
		k:    make([]float64, count),
	}
	links := make([]map[int]float64, count)
	for i := range l.adj {
		c := comm[i]
		next.k[c] += l.k[i]
		next.self[c] += l.self[i]
		for _, nb := range l.adj[i] {
			d := comm[nb.Node]
			if d == c {
				// every internal edge is seen from both ends
				next.self[c] += nb.Weight / 2
				continue
			}
			if links[c] == nil {
				links[c] = map[int]float64{}
			}
			links[c][d] += nb.Weight
		}
	}
	for c, m := range links {
		nbrs := make([]graph.Neighbor, 0, len(m))
		for d, w := range m {
			nbrs = append(nbrs, graph.Neighbor{Node: d, Weight: w})
		}
		sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].Node < nbrs[b].Node })
		next.adj[c] = nbrs
	}
	return next
}
