package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/ai"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/graph"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/metrics"
	"github.com/bridgewise/backend/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/bridgewise/backend/pkg/rank")

const (
	DefaultMaxTopK      = 1000
	DefaultEgoRadius    = 3
	DefaultEmbedTimeout = 3 * time.Second
	goalMaxRunes        = 200
)

// Request is a ranking request. Weights overrides the ranker defaults when
// set. WriteBack persists the results through the configured RankWriter.
type Request struct {
	RequesterID string
	QueryText   string
	QueryTitle  *string
	QuerySkills []string
	TopK        int
	Exclude     []string
	Weights     *Weights
	WriteBack   bool
}

// Result is one ranked person.
type Result struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Description string     `json:"description,omitempty"`
	Score       float64    `json:"score"`
	Components  Components `json:"components"`
}

// Response is the outcome of Rank.
type Response struct {
	ArtifactID      string      `json:"artifactId"`
	Results         []Result    `json:"results"`
	Query           ParsedQuery `json:"query"`
	CandidateCount  int         `json:"candidateCount"`
	VecSimAvailable bool        `json:"vecSimAvailable"`
}

// Ranker scores the persons of the current artifact against a goal. It only
// reads immutable snapshots and is safe for concurrent use.
//
// A Ranker should be created using NewRanker.
type Ranker struct {
	holder       *artifact.Holder
	embedder     ai.Embedder
	synonyms     *graph.TitleSynonyms
	writer       store.RankWriter
	weights      Weights
	egoMetric    EgoMetric
	egoRadius    int
	embedTimeout time.Duration
	maxTopK      int
}

// NewRankerParams configures a Ranker. Embedder and Writer are optional.
type NewRankerParams struct {
	Holder       *artifact.Holder
	Embedder     ai.Embedder
	Synonyms     *graph.TitleSynonyms
	Writer       store.RankWriter
	Weights      *Weights
	EgoMetric    EgoMetric
	EgoRadius    int
	EmbedTimeout time.Duration
	MaxTopK      int
}

// NewRanker validates params and creates a Ranker.
//
// Example:
//
//	r, err := rank.NewRanker(rank.NewRankerParams{
//		Holder:   holder,
//		Embedder: embedder,
//	})
//	res, err := r.Rank(ctx, rank.Request{RequesterID: "me", QueryText: "ml mentor", TopK: 10})
func NewRanker(params NewRankerParams) (*Ranker, error) {
	if params.Holder == nil {
		return nil, fmt.Errorf("%w: artifact holder is required", ErrInvalidConfiguration)
	}
	w := DefaultWeights()
	if params.Weights != nil {
		w = *params.Weights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	ego, err := ParseEgoMetric(string(params.EgoMetric))
	if err != nil {
		return nil, err
	}

	r := &Ranker{
		holder:       params.Holder,
		embedder:     params.Embedder,
		synonyms:     params.Synonyms,
		writer:       params.Writer,
		weights:      w,
		egoMetric:    ego,
		egoRadius:    params.EgoRadius,
		embedTimeout: params.EmbedTimeout,
		maxTopK:      params.MaxTopK,
	}
	if r.egoRadius <= 0 {
		r.egoRadius = DefaultEgoRadius
	}
	if r.embedTimeout <= 0 {
		r.embedTimeout = DefaultEmbedTimeout
	}
	if r.maxTopK <= 0 {
		r.maxTopK = DefaultMaxTopK
	}
	return r, nil
}

// Weights returns the default weights of the ranker.
func (r *Ranker) Weights() Weights { return r.weights }

func (r *Ranker) validate(req Request) (Weights, error) {
	if req.TopK <= 0 || req.TopK > r.maxTopK {
		return Weights{}, fmt.Errorf("%w: topK must be within [1,%d], got %d", ErrInvalidConfiguration, r.maxTopK, req.TopK)
	}
	w := r.weights
	if req.Weights != nil {
		w = *req.Weights
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		return Weights{}, fmt.Errorf("%w: requester id is required", ErrInvalidConfiguration)
	}
	return w, nil
}

func (r *Ranker) snapshot() (*artifact.Snapshot, error) {
	snap := r.holder.Load()
	if snap == nil {
		return nil, ErrArtifactMissing
	}
	return snap, nil
}

// Rank scores every eligible person of the current artifact.
func (r *Ranker) Rank(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	w, err := r.validate(req)
	if err != nil {
		return nil, err
	}
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	res, err := r.rankSnapshot(ctx, snap, req, w, r.embedder)
	observe("rank", start, err)
	if err != nil {
		return nil, err
	}

	if req.WriteBack {
		r.writeBack(ctx, req.QueryText, res.Results)
	}
	return res, nil
}

func observe(kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RankDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
}

type embedResult struct {
	vec []float32
	err error
}

// startEmbedding runs the embedding call concurrently with the other
// component computations. The returned channel yields exactly one result.
func (r *Ranker) startEmbedding(ctx context.Context, e ai.Embedder, text string) <-chan embedResult {
	ch := make(chan embedResult, 1)
	if e == nil || strings.TrimSpace(text) == "" {
		ch <- embedResult{err: ai.ErrEmbeddingUnavailable}
		return ch
	}
	go func() {
		eCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()

		vec, err := e.Embed(eCtx, text)
		if err == nil && len(vec) == 0 {
			err = ai.ErrEmbeddingUnavailable
		}
		ch <- embedResult{vec: vec, err: err}
	}()
	return ch
}

func (r *Ranker) rankSnapshot(ctx context.Context, snap *artifact.Snapshot, req Request, w Weights, e ai.Embedder) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "rank.Rank")
	defer span.End()

	x := snap.Index
	me := -1
	if req.RequesterID != "" {
		pos, ok := x.Position(req.RequesterID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, req.RequesterID)
		}
		me = pos
	}

	embedded := r.startEmbedding(ctx, e, req.QueryText)

	q := ParseQuery(snap, r.synonyms, req.QueryText, req.QueryTitle, req.QuerySkills)

	exclude := make(map[string]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		exclude[id] = struct{}{}
	}
	candidates := make([]int, 0, x.Len())
	for i := 0; i < x.Len(); i++ {
		if i == me {
			continue
		}
		if _, skip := exclude[x.ID(i)]; skip {
			continue
		}
		candidates = append(candidates, i)
	}
	span.SetAttributes(
		attribute.Int("rank.candidates", len(candidates)),
		attribute.Int("rank.goal_skills", len(q.Skills)),
	)

	ego := make([]float64, len(candidates))
	if me >= 0 {
		ego = egoScores(x, me, candidates, r.egoMetric, r.egoRadius)
	}
	comps := make([]Components, len(candidates))
	for k, c := range candidates {
		id := x.ID(c)
		p, _ := snap.Person(id)
		comps[k] = Components{
			SkillMatch:   skillMatch(q.Skills, p.Skills),
			JobMatch:     jobMatch(q, snap.Title(id), candidateTokens(snap, id, p.CurrentTitle())),
			StructGlobal: clamp01(snap.Metrics(id).StructGlobal),
			StructEgo:    clamp01(ego[k]),
		}
	}

	var qvec []float32
	select {
	case res := <-embedded:
		if res.err != nil {
			reason := "error"
			switch {
			case strings.TrimSpace(req.QueryText) == "":
				reason = "empty"
			case errors.Is(res.err, context.DeadlineExceeded):
				reason = "timeout"
			}
			metrics.EmbeddingFallbacks.WithLabelValues(reason).Inc()
			if reason != "empty" {
				logger.Warn("[Rank] Embedding unavailable, ranking without vector similarity", "err", res.err)
			}
		} else {
			qvec = res.vec
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	results := make([]Result, len(candidates))
	for k, c := range candidates {
		id := x.ID(c)
		p, _ := snap.Person(id)
		if qvec != nil && len(p.Embedding) > 0 {
			comps[k].VecSim = clamp01((graph.Cosine(qvec, p.Embedding) + 1) / 2)
			comps[k].VecSimAvailable = true
		}
		results[k] = Result{
			ID:          p.ID,
			Name:        p.Name,
			Title:       p.Title,
			Company:     p.Company,
			Description: p.DescriptionText,
			Score:       w.Combine(comps[k]),
			Components:  comps[k],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	return &Response{
		ArtifactID:      snap.ID(),
		Results:         results,
		Query:           q,
		CandidateCount:  len(candidates),
		VecSimAvailable: qvec != nil,
	}, nil
}

// writeBack persists results. Failures are logged; ranking results are
// never affected by them.
func (r *Ranker) writeBack(ctx context.Context, goal string, results []Result) {
	if r.writer == nil || len(results) == 0 {
		return
	}
	if err := r.writer.WriteRanks(ctx, Records(goal, time.Now().UTC(), results)); err != nil {
		logger.Warn("[Rank] Failed to write back ranking", "err", err)
	}
}

// Records converts results into rank records for a RankWriter. The goal is
// cut to its first 200 characters.
func Records(goal string, at time.Time, results []Result) []store.RankRecord {
	goal = util.TruncateRunes(strings.TrimSpace(goal), goalMaxRunes)
	out := make([]store.RankRecord, len(results))
	for i, res := range results {
		out[i] = store.RankRecord{
			PersonID: res.ID,
			Goal:     goal,
			Score:    res.Score,
			VecSim:   res.Components.VecSim,
			SkillSim: res.Components.SkillMatch,
			JobSim:   res.Components.JobMatch,
			Struct:   (res.Components.StructGlobal + res.Components.StructEgo) / 2,
			At:       at,
		}
	}
	return out
}
