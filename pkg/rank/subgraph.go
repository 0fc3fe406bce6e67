package rank

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/logger"
)

// MaxFallbackNeighbors bounds the ego network returned when ranking fails.
const MaxFallbackNeighbors = 50

// GraphNode is a node of a renderable subgraph.
type GraphNode struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Skills          []string `json:"skills"`
	Community       *int     `json:"community"`
	BridgePotential float64  `json:"bridgePotential"`
	Score           float64  `json:"score"`
	IsMe            bool     `json:"isMe"`
}

// GraphLink is an edge between two nodes of a subgraph.
type GraphLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// GraphView is a force layout friendly subgraph. Fallback is set when the
// ranking failed and the requester's ego network is returned instead.
type GraphView struct {
	Nodes    []GraphNode `json:"nodes"`
	Links    []GraphLink `json:"links"`
	Fallback bool        `json:"fallback,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Subgraph ranks req and returns the requester, the ranked persons and the
// edges between them. Validation, missing artifact and unknown requester
// errors are returned as is; any other ranking failure yields the
// requester's first degree ego network with Fallback set.
func (r *Ranker) Subgraph(ctx context.Context, req Request) (*GraphView, error) {
	start := time.Now()
	w, err := r.validate(req)
	if err != nil {
		return nil, err
	}
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	me, ok := snap.Index.Position(req.RequesterID)
	if !ok {
		return nil, ErrPersonNotFound
	}

	res, err := r.rankSnapshot(ctx, snap, req, w, r.embedder)
	observe("graph", start, err)
	if err != nil {
		if errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrPersonNotFound) {
			return nil, err
		}
		logger.Warn("[Rank] Ranking failed, returning ego network", "err", err)
		view := egoView(snap, me)
		view.Fallback = true
		view.Error = err.Error()
		return view, nil
	}

	scores := make(map[string]float64, len(res.Results)+1)
	scores[req.RequesterID] = 1
	for _, rr := range res.Results {
		scores[rr.ID] = rr.Score
	}
	return buildView(snap, req.RequesterID, scores), nil
}

func egoView(snap *artifact.Snapshot, me int) *GraphView {
	x := snap.Index
	scores := map[string]float64{x.ID(me): 1}
	for i, nb := range x.Neighbors(me) {
		if i >= MaxFallbackNeighbors {
			break
		}
		scores[x.ID(nb.Node)] = 0
	}
	return buildView(snap, x.ID(me), scores)
}

func buildView(snap *artifact.Snapshot, meID string, scores map[string]float64) *GraphView {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	view := &GraphView{Nodes: make([]GraphNode, 0, len(ids)), Links: []GraphLink{}}
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		p, ok := snap.Person(id)
		if !ok {
			continue
		}
		node := GraphNode{
			ID:              p.ID,
			Name:            p.Name,
			Title:           p.Title,
			Company:         p.Company,
			Skills:          p.Skills,
			BridgePotential: snap.Metrics(id).BridgePotential,
			Score:           scores[id],
			IsMe:            id == meID,
		}
		if c, ok := snap.ClusterOf(id); ok {
			node.Community = &c
		}
		view.Nodes = append(view.Nodes, node)
		if pos, ok := snap.Index.Position(id); ok {
			positions = append(positions, pos)
		}
	}

	x := snap.Index
	for i, a := range positions {
		for _, b := range positions[i+1:] {
			if w := x.Weight(a, b); w > 0 {
				view.Links = append(view.Links, GraphLink{Source: x.ID(a), Target: x.ID(b), Weight: w})
			}
		}
	}
	return view
}
