package util

import "fmt"

// RunStep names a stage of a precomputation run.
type RunStep string

const (
	StepLoading    RunStep = "loading"
	StepEmbedding  RunStep = "embedding"
	StepBuilding   RunStep = "building"
	StepClustering RunStep = "clustering"
	StepMetrics    RunStep = "metrics"
	StepSaving     RunStep = "saving"
	StepRanking    RunStep = "ranking"
	StepCompleted  RunStep = "completed"
	StepFailed     RunStep = "failed"
)

var runStepOrder = []RunStep{
	StepLoading,
	StepEmbedding,
	StepBuilding,
	StepClustering,
	StepMetrics,
	StepSaving,
	StepRanking,
}

type RunProgress struct {
	Step       RunStep `json:"step"`
	Detail     string  `json:"detail,omitempty"`
	Percentage int32   `json:"percentage"`
}

// BuildRunProgress converts a step and an optional done/total counter within
// that step into an overall percentage. Each step has equal weight.
func BuildRunProgress(step RunStep, done, total int) RunProgress {
	switch step {
	case StepCompleted:
		return RunProgress{Step: step, Percentage: 100}
	case StepFailed:
		return RunProgress{Step: step}
	}

	idx := -1
	for i, s := range runStepOrder {
		if s == step {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RunProgress{Step: step}
	}

	stepCount := float64(len(runStepOrder))
	within := 0.0
	detail := ""
	if total > 0 {
		done = min(max(done, 0), total)
		within = float64(done) / float64(total)
		detail = fmt.Sprintf("%d/%d", done, total)
	}
	pct := (float64(idx) + within) / stepCount * 100

	return RunProgress{
		Step:       step,
		Detail:     detail,
		Percentage: int32(pct),
	}
}
