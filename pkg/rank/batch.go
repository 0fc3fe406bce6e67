package rank

import (
	"context"
	"time"

	"github.com/bridgewise/backend/pkg/ai"
)

// BatchRequest ranks several goals for the same requester. Every query is
// ranked against the same snapshot and each distinct text is embedded once.
type BatchRequest struct {
	Request
	Queries []string
}

// BatchResult is the ranking of one query of a batch.
type BatchResult struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

func (r *Ranker) RankBatch(ctx context.Context, req BatchRequest) ([]BatchResult, error) {
	start := time.Now()
	w, err := r.validate(req.Request)
	if err != nil {
		return nil, err
	}
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	var e ai.Embedder
	if r.embedder != nil {
		e = ai.NewMemo(r.embedder)
	}

	out := make([]BatchResult, 0, len(req.Queries))
	for _, query := range req.Queries {
		single := req.Request
		single.QueryText = query
		res, err := r.rankSnapshot(ctx, snap, single, w, e)
		if err != nil {
			observe("batch", start, err)
			return nil, err
		}
		if req.WriteBack {
			r.writeBack(ctx, query, res.Results)
		}
		out = append(out, BatchResult{Query: query, Results: res.Results})
	}
	observe("batch", start, nil)
	return out, nil
}
