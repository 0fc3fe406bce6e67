package rank

import (
	"fmt"
	"math"
)

// Weights controls how the component signals are combined.
//
// The composite score is
//
//	clamp01(α·skill + β·job + γ·((1-e)·global + e·ego) + (1-α-β-γ)·vec)
//
// where α = AlphaSkills, β = BetaJob, γ = GammaStruct and e = EgoShare. The
// remainder 1-α-β-γ is the weight of vector similarity. Every weight is
// non-negative, so the score never decreases when a component increases.
type Weights struct {
	AlphaSkills float64 `json:"alphaSkills" validate:"gte=0,lte=1"`
	BetaJob     float64 `json:"betaJob" validate:"gte=0,lte=1"`
	GammaStruct float64 `json:"gammaStruct" validate:"gte=0,lte=1"`
	EgoShare    float64 `json:"egoShare" validate:"gte=0,lte=1"`
}

func DefaultWeights() Weights {
	return Weights{
		AlphaSkills: 0.20,
		BetaJob:     0.15,
		GammaStruct: 0.25,
		EgoShare:    0.5,
	}
}

const weightEpsilon = 1e-9

// Validate reports ErrInvalidConfiguration for weights outside [0,1] or a
// sum of α, β and γ above 1.
func (w Weights) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"alphaSkills", w.AlphaSkills},
		{"betaJob", w.BetaJob},
		{"gammaStruct", w.GammaStruct},
		{"egoShare", w.EgoShare},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfiguration, f.name, f.value)
		}
	}
	if sum := w.AlphaSkills + w.BetaJob + w.GammaStruct; sum > 1+weightEpsilon {
		return fmt.Errorf("%w: alphaSkills+betaJob+gammaStruct must not exceed 1, got %v", ErrInvalidConfiguration, sum)
	}
	return nil
}

// VecWeight is the weight left for vector similarity.
func (w Weights) VecWeight() float64 {
	return math.Max(0, 1-w.AlphaSkills-w.BetaJob-w.GammaStruct)
}

// Combine computes the composite score of c.
func (w Weights) Combine(c Components) float64 {
	structural := (1-w.EgoShare)*c.StructGlobal + w.EgoShare*c.StructEgo
	score := w.AlphaSkills*c.SkillMatch +
		w.BetaJob*c.JobMatch +
		w.GammaStruct*structural +
		w.VecWeight()*c.VecSim
	return clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
