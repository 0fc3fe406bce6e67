package rank

import (
	"context"
	"fmt"
	"time"
)

// GoalRequest ranks every person of the artifact against a goal without a
// requester. Structure comes from the global metric only.
type GoalRequest struct {
	QueryText   string
	QueryTitle  *string
	QuerySkills []string
	TopK        int
	Exclude     []string
	Weights     *Weights
	WriteBack   bool
}

// RankGoal scores all persons for req and returns the best TopK. With
// WriteBack every scored person is persisted, not only the returned ones.
func (r *Ranker) RankGoal(ctx context.Context, req GoalRequest) (*Response, error) {
	start := time.Now()
	if req.TopK <= 0 || req.TopK > r.maxTopK {
		return nil, fmt.Errorf("%w: topK must be within [1,%d], got %d", ErrInvalidConfiguration, r.maxTopK, req.TopK)
	}
	w := r.weights
	if req.Weights != nil {
		w = *req.Weights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.EgoShare = 0

	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	res, err := r.rankSnapshot(ctx, snap, Request{
		QueryText:   req.QueryText,
		QueryTitle:  req.QueryTitle,
		QuerySkills: req.QuerySkills,
		TopK:        max(snap.Index.Len(), 1),
		Exclude:     req.Exclude,
	}, w, r.embedder)
	observe("goal", start, err)
	if err != nil {
		return nil, err
	}

	if req.WriteBack {
		goal := req.QueryText
		if req.QueryTitle != nil && *req.QueryTitle != "" {
			goal = *req.QueryTitle
		}
		if goal == "" {
			goal = "unspecified"
		}
		r.writeBack(ctx, goal, res.Results)
	}
	if len(res.Results) > req.TopK {
		res.Results = res.Results[:req.TopK]
	}
	return res, nil
}
