package rank

import (
	"fmt"

	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/graph"
)

// Components are the per candidate signals behind a score, each in [0,1].
// VecSimAvailable is false when no vector similarity could be computed, as
// opposed to a similarity that is genuinely low.
type Components struct {
	VecSim          float64 `json:"vecSim"`
	SkillMatch      float64 `json:"skillMatch"`
	JobMatch        float64 `json:"jobMatch"`
	StructGlobal    float64 `json:"structGlobal"`
	StructEgo       float64 `json:"structEgo"`
	VecSimAvailable bool    `json:"vecSimAvailable"`
}

// EgoMetric selects how StructEgo is computed.
type EgoMetric string

const (
	// EgoBlend averages EgoDistance and EgoBridge.
	EgoBlend EgoMetric = "blend"
	// EgoDistance is the inverse hop distance from the requester.
	EgoDistance EgoMetric = "distance"
	// EgoMutual is the share of the requester's neighbours the candidate
	// is also connected to.
	EgoMutual EgoMetric = "mutual"
	// EgoBridge is the bridge coefficient inside the requester's ego
	// network, min-max normalized over the candidates.
	EgoBridge EgoMetric = "bridge"
)

// ParseEgoMetric validates a policy name. Empty selects EgoBlend.
func ParseEgoMetric(s string) (EgoMetric, error) {
	switch EgoMetric(s) {
	case "":
		return EgoBlend, nil
	case EgoBlend, EgoDistance, EgoMutual, EgoBridge:
		return EgoMetric(s), nil
	}
	return "", fmt.Errorf("%w: unknown ego metric %q", ErrInvalidConfiguration, s)
}

func skillMatch(query []string, skills []string) float64 {
	if len(query) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		have[s] = struct{}{}
	}
	n := 0
	for _, q := range query {
		if _, ok := have[q]; ok {
			n++
		}
	}
	return float64(n) / float64(len(query))
}

// jobMatch is 1 for equal canonical titles and the token Jaccard index
// otherwise. "Other" never counts as an equal title.
func jobMatch(q ParsedQuery, canon string, tokens []string) float64 {
	if q.TitleCanon != "" && q.TitleCanon != "Other" && q.TitleCanon == canon {
		return 1
	}
	return jaccard(q.JobTokens, tokens)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = false
	}
	inter := 0
	union := len(set)
	for _, s := range b {
		seen, ok := set[s]
		switch {
		case !ok:
			set[s] = true
			union++
		case !seen:
			set[s] = true
			inter++
		}
	}
	return float64(inter) / float64(union)
}

// candidateTokens returns the title tokens of a person, including the tokens
// of its canonical title.
func candidateTokens(snap *artifact.Snapshot, id, title string) []string {
	tokens := graph.TokenizeTitle(title)
	tokens = append(tokens, graph.TokenizeTitle(snap.Title(id))...)
	return uniqueSorted(tokens)
}

// egoScores computes StructEgo for the given candidate positions.
func egoScores(x *graph.Index, me int, candidates []int, policy EgoMetric, radius int) []float64 {
	out := make([]float64, len(candidates))
	switch policy {
	case EgoDistance:
		return inverseDistance(x, me, candidates, radius)
	case EgoMutual:
		return mutualShare(x, me, candidates)
	case EgoBridge:
		return egoBridge(x, me, candidates)
	default:
		dist := inverseDistance(x, me, candidates, radius)
		bridge := egoBridge(x, me, candidates)
		for i := range out {
			out[i] = (dist[i] + bridge[i]) / 2
		}
	}
	return out
}

func inverseDistance(x *graph.Index, me int, candidates []int, radius int) []float64 {
	dist := graph.Distances(x, me, radius)
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		if d, ok := dist[c]; ok && d > 0 {
			out[i] = 1 / float64(d)
		}
	}
	return out
}

func mutualShare(x *graph.Index, me int, candidates []int) []float64 {
	out := make([]float64, len(candidates))
	deg := x.Degree(me)
	if deg == 0 {
		return out
	}
	mine := make(map[int]struct{}, deg)
	for _, nb := range x.Neighbors(me) {
		mine[nb.Node] = struct{}{}
	}
	for i, c := range candidates {
		n := 0
		for _, nb := range x.Neighbors(c) {
			if _, ok := mine[nb.Node]; ok {
				n++
			}
		}
		out[i] = float64(n) / float64(deg)
	}
	return out
}

func egoBridge(x *graph.Index, me int, candidates []int) []float64 {
	coeff := graph.EgoBridgeCoefficients(x, me)
	raw := make([]float64, len(candidates))
	for i, c := range candidates {
		raw[i] = coeff[c]
	}
	return graph.MinMax(raw)
}
