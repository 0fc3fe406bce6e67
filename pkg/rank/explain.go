package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bridgewise/backend/pkg/graph"
)

// Explanation shows how a goal is interpreted without scoring anyone.
type Explanation struct {
	Query           string      `json:"query"`
	Parsed          ParsedQuery `json:"parsed"`
	CandidateCount  int         `json:"candidateCount"`
	CandidateSample []string    `json:"candidateSample"`
}

// Explain parses the goal and lists the candidates that match at least one
// goal skill or job token. When the goal has neither, every candidate matches.
func (r *Ranker) Explain(_ context.Context, req Request, sample int) (*Explanation, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	x := snap.Index
	me, ok := x.Position(req.RequesterID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, req.RequesterID)
	}
	if sample < 0 {
		return nil, fmt.Errorf("%w: sample must not be negative", ErrInvalidConfiguration)
	}

	q := ParseQuery(snap, r.synonyms, req.QueryText, req.QueryTitle, req.QuerySkills)
	exclude := make(map[string]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		exclude[id] = struct{}{}
	}

	var matching []string
	for i := 0; i < x.Len(); i++ {
		id := x.ID(i)
		if i == me {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		p, _ := snap.Person(id)
		if q.Empty() ||
			skillMatch(q.Skills, p.Skills) > 0 ||
			jaccard(q.JobTokens, candidateTokens(snap, id, p.CurrentTitle())) > 0 ||
			(q.TitleCanon != "" && q.TitleCanon == snap.Title(id)) {
			matching = append(matching, id)
		}
	}
	sort.Strings(matching)

	n := min(sample, len(matching))
	return &Explanation{
		Query:           strings.TrimSpace(req.QueryText),
		Parsed:          q,
		CandidateCount:  len(matching),
		CandidateSample: append([]string{}, matching[:n]...),
	}, nil
}

// IntroPath returns the shortest chain of contacts from src to dst within
// maxDepth hops, or nil when there is none.
func (r *Ranker) IntroPath(_ context.Context, src, dst string, maxDepth int) ([]string, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 || maxDepth > 10 {
		return nil, fmt.Errorf("%w: max depth must be within [1,10]", ErrInvalidConfiguration)
	}
	x := snap.Index
	a, ok := x.Position(src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, src)
	}
	b, ok := x.Position(dst)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, dst)
	}

	path := graph.ShortestPath(x, a, b, maxDepth)
	if path == nil {
		return nil, nil
	}
	ids := make([]string, len(path))
	for i, p := range path {
		ids[i] = x.ID(p)
	}
	return ids, nil
}
