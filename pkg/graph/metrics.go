package graph

import (
	"context"
	"fmt"
	"runtime"

	"github.com/bridgewise/backend/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// GlobalMetric selects how NodeMetrics.StructGlobal is derived.
type GlobalMetric string

const (
	// GlobalBridge averages min-max normalized betweenness, bridge potential
	// and bridge coefficient.
	GlobalBridge      GlobalMetric = "bridge"
	GlobalDegree      GlobalMetric = "degree"
	GlobalBetweenness GlobalMetric = "betweenness"
)

// ParseGlobalMetric validates a metric name. Empty selects GlobalBridge.
func ParseGlobalMetric(s string) (GlobalMetric, error) {
	switch GlobalMetric(s) {
	case "":
		return GlobalBridge, nil
	case GlobalBridge, GlobalDegree, GlobalBetweenness:
		return GlobalMetric(s), nil
	}
	return "", fmt.Errorf("unknown global metric %q", s)
}

// ComputeMetrics computes the structural signals of every node. The
// betweenness pass is split into a fixed number of source blocks whose
// partial sums are combined in block order, so results do not depend on
// scheduling.
func ComputeMetrics(ctx context.Context, x *Index, policy GlobalMetric, parallelism int) (map[string]common.NodeMetrics, error) {
	ctx, span := tracer.Start(ctx, "graph.ComputeMetrics")
	defer span.End()
	span.SetAttributes(attribute.Int("graph.nodes", x.Len()))

	bc, err := Betweenness(ctx, x, parallelism)
	if err != nil {
		return nil, err
	}
	coeff := BridgeCoefficients(x)

	n := x.Len()
	potential := make([]float64, n)
	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		potential[i] = bc[i] * coeff[i]
		degree[i] = float64(x.Degree(i))
	}

	var global []float64
	switch policy {
	case GlobalDegree:
		global = MinMax(degree)
	case GlobalBetweenness:
		global = MinMax(bc)
	default:
		nb, np, nc := MinMax(bc), MinMax(potential), MinMax(coeff)
		global = make([]float64, n)
		for i := range global {
			global[i] = (nb[i] + np[i] + nc[i]) / 3
		}
	}

	out := make(map[string]common.NodeMetrics, n)
	for i := 0; i < n; i++ {
		out[x.ID(i)] = common.NodeMetrics{
			Degree:          x.Degree(i),
			WeightedDegree:  x.Strength(i),
			Betweenness:     bc[i],
			BridgeCoeff:     coeff[i],
			BridgePotential: potential[i],
			StructGlobal:    global[i],
		}
	}
	return out, nil
}

// Betweenness returns normalized unweighted betweenness centrality using
// Brandes' algorithm. Values are scaled by 1/((n-1)(n-2)) for n > 2.
func Betweenness(ctx context.Context, x *Index, parallelism int) ([]float64, error) {
	n := x.Len()
	bc := make([]float64, n)
	if n < 3 {
		return bc, nil
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	blocks := min(n, parallelism*4)
	blockSize := (n + blocks - 1) / blocks
	partial := make([][]float64, blocks)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for blk := 0; blk < blocks; blk++ {
		start := blk * blockSize
		end := min(start+blockSize, n)
		if start >= end {
			continue
		}
		eg.Go(func() error {
			acc := make([]float64, n)
			st := newBrandesState(n)
			for s := start; s < end; s++ {
				if err := ectx.Err(); err != nil {
					return err
				}
				st.accumulate(x, s, acc)
			}
			partial[blk] = acc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, acc := range partial {
		for i, v := range acc {
			bc[i] += v
		}
	}
	scale := 1.0 / float64((n-1)*(n-2))
	for i := range bc {
		bc[i] *= scale
	}
	return bc, nil
}

type brandesState struct {
	stack []int
	queue []int
	preds [][]int
	sigma []float64
	dist  []int
	delta []float64
}

func newBrandesState(n int) *brandesState {
	return &brandesState{
		stack: make([]int, 0, n),
		queue: make([]int, 0, n),
		preds: make([][]int, n),
		sigma: make([]float64, n),
		dist:  make([]int, n),
		delta: make([]float64, n),
	}
}

func (st *brandesState) accumulate(x *Index, s int, acc []float64) {
	n := x.Len()
	st.stack = st.stack[:0]
	st.queue = st.queue[:0]
	for i := 0; i < n; i++ {
		st.preds[i] = st.preds[i][:0]
		st.sigma[i] = 0
		st.dist[i] = -1
		st.delta[i] = 0
	}
	st.sigma[s] = 1
	st.dist[s] = 0
	st.queue = append(st.queue, s)

	for head := 0; head < len(st.queue); head++ {
		v := st.queue[head]
		st.stack = append(st.stack, v)
		for _, nb := range x.Neighbors(v) {
			w := nb.Node
			if st.dist[w] < 0 {
				st.dist[w] = st.dist[v] + 1
				st.queue = append(st.queue, w)
			}
			if st.dist[w] == st.dist[v]+1 {
				st.sigma[w] += st.sigma[v]
				st.preds[w] = append(st.preds[w], v)
			}
		}
	}

	for k := len(st.stack) - 1; k >= 0; k-- {
		w := st.stack[k]
		for _, v := range st.preds[w] {
			st.delta[v] += st.sigma[v] / st.sigma[w] * (1 + st.delta[w])
		}
		if w != s {
			acc[w] += st.delta[w]
		}
	}
}

// BridgeCoefficients returns (1/deg(v)) / Σ_{u∈N(v)} 1/deg(u) for every node;
// isolated nodes get 0.
func BridgeCoefficients(x *Index) []float64 {
	out := make([]float64, x.Len())
	for v := range out {
		deg := x.Degree(v)
		if deg == 0 {
			continue
		}
		inv := 0.0
		for _, nb := range x.Neighbors(v) {
			if d := x.Degree(nb.Node); d > 0 {
				inv += 1 / float64(d)
			}
		}
		if inv > 0 {
			out[v] = (1 / float64(deg)) / inv
		}
	}
	return out
}

// EgoBridgeCoefficients computes the bridge coefficient inside the ego
// network of center: the subgraph induced by center's neighbours, center
// excluded. Nodes outside the ego network are absent from the result.
func EgoBridgeCoefficients(x *Index, center int) map[int]float64 {
	ego := map[int]struct{}{}
	for _, nb := range x.Neighbors(center) {
		ego[nb.Node] = struct{}{}
	}
	egoDeg := make(map[int]int, len(ego))
	for v := range ego {
		d := 0
		for _, nb := range x.Neighbors(v) {
			if _, ok := ego[nb.Node]; ok {
				d++
			}
		}
		egoDeg[v] = d
	}
	out := make(map[int]float64, len(ego))
	for v := range ego {
		deg := egoDeg[v]
		if deg == 0 {
			out[v] = 0
			continue
		}
		inv := 0.0
		for _, nb := range x.Neighbors(v) {
			if _, ok := ego[nb.Node]; !ok {
				continue
			}
			if d := egoDeg[nb.Node]; d > 0 {
				inv += 1 / float64(d)
			}
		}
		if inv > 0 {
			out[v] = (1 / float64(deg)) / inv
		}
	}
	return out
}
