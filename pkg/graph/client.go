package graph

import (
	"fmt"
	"runtime"
)

// WeightMode selects how shared skills are turned into an edge weight.
type WeightMode string

const (
	// WeightCount adds 1.0 per shared skill.
	WeightCount WeightMode = "count"
	// WeightJaccard uses |A∩B| / |A∪B| of the two skill sets.
	WeightJaccard WeightMode = "jaccard"
)

// Builder turns a set of persons into a weighted similarity graph.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	minSharedSkills int
	weightMode      WeightMode
	companyBoost    float64
	schoolBoost     float64
	jobEdgeWeight   float64
	exclude         map[string]struct{}
	synonyms        *TitleSynonyms
	embedTopN       int
	embedScale      float64
	dropIsolated    bool
	parallelism     int
}

// NewBuilderParams defines the configuration for a Builder.
//
// MinSharedSkills is the number of shared skills needed before the skill
// layer contributes to an edge. CompanyBoost and SchoolBoost are added once
// per pair sharing at least one company or school. JobEdgeWeight is added for
// pairs with the same canonical job title. EmbedTopN > 0 enables the
// embedding layer which adds EmbedScale * cosine for each node's nearest
// neighbours. Parallelism bounds the number of row blocks scored at once.
type NewBuilderParams struct {
	MinSharedSkills int
	WeightMode      WeightMode
	CompanyBoost    float64
	SchoolBoost     float64
	JobEdgeWeight   float64
	ExcludeIDs      []string
	TitleSynonyms   *TitleSynonyms
	EmbedTopN       int
	EmbedScale      float64
	DropIsolated    bool
	Parallelism     int
}

// NewBuilder creates a Builder configured with the provided parameters.
//
// Example:
//
//	b, err := graph.NewBuilder(graph.NewBuilderParams{
//		MinSharedSkills: 2,
//		WeightMode:      graph.WeightCount,
//		CompanyBoost:    1.0,
//		SchoolBoost:     0.5,
//		JobEdgeWeight:   1.0,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	g, err := b.Build(ctx, persons)
func NewBuilder(params NewBuilderParams) (*Builder, error) {
	mode := params.WeightMode
	if mode == "" {
		mode = WeightCount
	}
	if mode != WeightCount && mode != WeightJaccard {
		return nil, fmt.Errorf("unknown weight mode %q", mode)
	}
	if params.CompanyBoost < 0 || params.SchoolBoost < 0 || params.JobEdgeWeight < 0 || params.EmbedScale < 0 {
		return nil, fmt.Errorf("edge boosts must not be negative")
	}
	minShared := params.MinSharedSkills
	if minShared <= 0 {
		minShared = 1
	}
	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	embedScale := params.EmbedScale
	if params.EmbedTopN > 0 && embedScale == 0 {
		embedScale = 1.0
	}

	exclude := make(map[string]struct{}, len(params.ExcludeIDs))
	for _, id := range params.ExcludeIDs {
		exclude[id] = struct{}{}
	}

	return &Builder{
		minSharedSkills: minShared,
		weightMode:      mode,
		companyBoost:    params.CompanyBoost,
		schoolBoost:     params.SchoolBoost,
		jobEdgeWeight:   params.JobEdgeWeight,
		exclude:         exclude,
		synonyms:        params.TitleSynonyms,
		embedTopN:       max(params.EmbedTopN, 0),
		embedScale:      embedScale,
		dropIsolated:    params.DropIsolated,
		parallelism:     parallelism,
	}, nil
}

// Synonyms returns the title synonym table used for canonical titles.
func (b *Builder) Synonyms() *TitleSynonyms {
	return b.synonyms
}

// Parameters describes the builder configuration for artifact metadata.
func (b *Builder) Parameters() map[string]any {
	return map[string]any{
		"minSharedSkills": b.minSharedSkills,
		"weightMode":      string(b.weightMode),
		"companyBoost":    b.companyBoost,
		"schoolBoost":     b.schoolBoost,
		"jobEdgeWeight":   b.jobEdgeWeight,
		"excludeCount":    len(b.exclude),
		"embedTopN":       b.embedTopN,
		"embedScale":      b.embedScale,
	}
}
