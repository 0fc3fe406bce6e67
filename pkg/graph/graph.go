package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/bridgewise/backend/pkg/graph")

// Graph is the output of a Builder run: the retained persons sorted by id,
// the canonical edge set and the canonical job title of every node.
type Graph struct {
	Nodes  []common.Person
	Edges  []common.Edge
	Titles map[string]string
}

// Index returns an adjacency Index over the graph.
func (g *Graph) Index() *Index {
	return NewIndex(NodesFromPersons(g.Nodes), g.Edges)
}

type nodeFeatures struct {
	skills    []string
	companies []string
	schools   []string
	title     string
}

type pairKey struct {
	a, b int
}

// Build computes the similarity graph for persons. Excluded ids are dropped
// before any edge is scored. The result only depends on the input and the
// builder configuration, not on scheduling.
func (b *Builder) Build(ctx context.Context, persons []common.Person) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "graph.Build")
	defer span.End()

	nodes := b.prepareNodes(persons)
	span.SetAttributes(attribute.Int("graph.nodes", len(nodes)))
	logger.Info("[Graph] Building similarity graph", "nodes", len(nodes), "mode", string(b.weightMode))

	feats := make([]nodeFeatures, len(nodes))
	titles := make(map[string]string, len(nodes))
	for i, p := range nodes {
		canon := CanonicalTitle(p.CurrentTitle(), b.synonyms)
		feats[i] = nodeFeatures{
			skills:    p.Skills,
			companies: p.Companies(),
			schools:   common.NormalizeSkills(p.Schools),
			title:     canon,
		}
		if canon != "" {
			titles[p.ID] = canon
		}
	}

	edges, err := b.scorePairs(ctx, nodes, feats)
	if err != nil {
		return nil, fmt.Errorf("failed to score pairs: %w", err)
	}

	if b.embedTopN > 0 {
		edges, err = b.addEmbeddingEdges(ctx, nodes, edges)
		if err != nil {
			return nil, fmt.Errorf("failed to add embedding edges: %w", err)
		}
	}

	if b.dropIsolated {
		nodes = dropIsolated(nodes, edges)
	}

	span.SetAttributes(attribute.Int("graph.edges", len(edges)))
	logger.Info("[Graph] Built similarity graph", "nodes", len(nodes), "edges", len(edges))

	return &Graph{Nodes: nodes, Edges: edges, Titles: titles}, nil
}

func (b *Builder) prepareNodes(persons []common.Person) []common.Person {
	seen := make(map[string]struct{}, len(persons))
	nodes := make([]common.Person, 0, len(persons))
	for _, p := range persons {
		if p.ID == "" {
			continue
		}
		if _, ok := b.exclude[p.ID]; ok {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			logger.Warn("[Graph] Duplicate person id, keeping first", "id", p.ID)
			continue
		}
		seen[p.ID] = struct{}{}
		p.Skills = common.NormalizeSkills(p.Skills)
		nodes = append(nodes, p)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

func invert(feats []nodeFeatures, get func(nodeFeatures) []string) map[string][]int {
	idx := map[string][]int{}
	for i, f := range feats {
		for _, v := range get(f) {
			idx[v] = append(idx[v], i)
		}
	}
	return idx
}

// scorePairs runs the skill, company, school and job title layers. Each
// unordered pair is scored exactly once, by the row of its smaller node.
func (b *Builder) scorePairs(ctx context.Context, nodes []common.Person, feats []nodeFeatures) ([]common.Edge, error) {
	n := len(nodes)
	if n < 2 {
		return []common.Edge{}, nil
	}

	skillIdx := invert(feats, func(f nodeFeatures) []string { return f.skills })
	var companyIdx, schoolIdx, titleIdx map[string][]int
	if b.companyBoost > 0 {
		companyIdx = invert(feats, func(f nodeFeatures) []string { return f.companies })
	}
	if b.schoolBoost > 0 {
		schoolIdx = invert(feats, func(f nodeFeatures) []string { return f.schools })
	}
	if b.jobEdgeWeight > 0 {
		titleIdx = invert(feats, func(f nodeFeatures) []string {
			if f.title == "" {
				return nil
			}
			return []string{f.title}
		})
	}

	blocks := min(n, b.parallelism*4)
	blockSize := (n + blocks - 1) / blocks
	out := make([][]common.Edge, blocks)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallelism)
	for blk := 0; blk < blocks; blk++ {
		start := blk * blockSize
		end := min(start+blockSize, n)
		if start >= end {
			continue
		}
		eg.Go(func() error {
			var local []common.Edge
			for i := start; i < end; i++ {
				if err := ectx.Err(); err != nil {
					return err
				}
				local = append(local, b.scoreRow(i, nodes, feats, skillIdx, companyIdx, schoolIdx, titleIdx)...)
			}
			out[blk] = local
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, blk := range out {
		total += len(blk)
	}
	edges := make([]common.Edge, 0, total)
	for _, blk := range out {
		edges = append(edges, blk...)
	}
	return edges, nil
}

func (b *Builder) scoreRow(
	i int,
	nodes []common.Person,
	feats []nodeFeatures,
	skillIdx, companyIdx, schoolIdx, titleIdx map[string][]int,
) []common.Edge {
	shared := map[int][]string{}
	for _, s := range feats[i].skills {
		for _, j := range skillIdx[s] {
			if j > i {
				shared[j] = append(shared[j], s)
			}
		}
	}
	mark := func(idx map[string][]int, values []string) map[int]struct{} {
		if idx == nil {
			return nil
		}
		hits := map[int]struct{}{}
		for _, v := range values {
			for _, j := range idx[v] {
				if j > i {
					hits[j] = struct{}{}
				}
			}
		}
		return hits
	}
	companies := mark(companyIdx, feats[i].companies)
	schools := mark(schoolIdx, feats[i].schools)
	var sameTitle map[int]struct{}
	if feats[i].title != "" {
		sameTitle = mark(titleIdx, []string{feats[i].title})
	}

	candidates := make([]int, 0, len(shared)+len(companies)+len(schools)+len(sameTitle))
	seen := map[int]struct{}{}
	for _, set := range []map[int]struct{}{companies, schools, sameTitle} {
		for j := range set {
			if _, ok := seen[j]; !ok {
				seen[j] = struct{}{}
				candidates = append(candidates, j)
			}
		}
	}
	for j := range shared {
		if _, ok := seen[j]; !ok {
			seen[j] = struct{}{}
			candidates = append(candidates, j)
		}
	}
	sort.Ints(candidates)

	var edges []common.Edge
	for _, j := range candidates {
		w := 0.0
		sharedSkills := shared[j]
		if c := len(sharedSkills); c >= b.minSharedSkills {
			switch b.weightMode {
			case WeightJaccard:
				union := len(feats[i].skills) + len(feats[j].skills) - c
				if union > 0 {
					w += float64(c) / float64(union)
				}
			default:
				w += float64(c)
			}
		}
		if _, ok := companies[j]; ok {
			w += b.companyBoost
		}
		if _, ok := schools[j]; ok {
			w += b.schoolBoost
		}
		if _, ok := sameTitle[j]; ok {
			w += b.jobEdgeWeight
		}
		if w <= 0 {
			continue
		}
		edges = append(edges, common.Edge{
			Source:       nodes[i].ID,
			Target:       nodes[j].ID,
			Weight:       w,
			SharedSkills: sharedSkills,
		})
	}
	return edges
}

// addEmbeddingEdges adds scale * cosine for the union of every node's top-N
// most similar nodes. A pair found from both sides is counted once.
func (b *Builder) addEmbeddingEdges(ctx context.Context, nodes []common.Person, edges []common.Edge) ([]common.Edge, error) {
	n := len(nodes)
	top := make([][]scoredNode, n)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallelism)
	for i := 0; i < n; i++ {
		if len(nodes[i].Embedding) == 0 {
			continue
		}
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			top[i] = nearest(i, nodes, b.embedTopN)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sims := map[pairKey]float64{}
	for i, list := range top {
		for _, s := range list {
			k := pairKey{min(i, s.node), max(i, s.node)}
			sims[k] = s.score
		}
	}
	if len(sims) == 0 {
		return edges, nil
	}

	pos := make(map[string]int, n)
	for i, p := range nodes {
		pos[p.ID] = i
	}
	existing := make(map[pairKey]int, len(edges))
	for k, e := range edges {
		existing[pairKey{pos[e.Source], pos[e.Target]}] = k
	}

	added := 0
	for k, sim := range sims {
		w := b.embedScale * sim
		if w <= 0 {
			continue
		}
		if at, ok := existing[k]; ok {
			edges[at].Weight += w
			continue
		}
		edges = append(edges, common.Edge{Source: nodes[k.a].ID, Target: nodes[k.b].ID, Weight: w})
		added++
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	logger.Debug("[Graph] Added embedding edges", "pairs", len(sims), "new_edges", added)
	return edges, nil
}

type scoredNode struct {
	node  int
	score float64
}

func nearest(i int, nodes []common.Person, topN int) []scoredNode {
	cands := make([]scoredNode, 0, len(nodes))
	for j := range nodes {
		if j == i || len(nodes[j].Embedding) == 0 {
			continue
		}
		sim := Cosine(nodes[i].Embedding, nodes[j].Embedding)
		if sim <= 0 {
			continue
		}
		cands = append(cands, scoredNode{node: j, score: sim})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].node < cands[b].node
	})
	if len(cands) > topN {
		cands = cands[:topN]
	}
	return cands
}

func dropIsolated(nodes []common.Person, edges []common.Edge) []common.Person {
	linked := make(map[string]struct{}, len(nodes))
	for _, e := range edges {
		linked[e.Source] = struct{}{}
		linked[e.Target] = struct{}{}
	}
	out := nodes[:0:0]
	for _, p := range nodes {
		if _, ok := linked[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
