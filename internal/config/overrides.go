package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bridgewise/backend/pkg/graph"
)

// ErrInvalidOverrides wraps every rejected override.
var ErrInvalidOverrides = errors.New("invalid run parameters")

// Overrides replace builder and clustering settings for a single run. Nil
// fields keep the configured value; a non-empty Exclude replaces the
// configured exclusion list.
type Overrides struct {
	MinSharedSkills *int     `json:"min_shared_skills,omitempty"`
	WeightMode      *string  `json:"weight_mode,omitempty"`
	BoostCompany    *float64 `json:"boost_company,omitempty"`
	BoostSchool     *float64 `json:"boost_school,omitempty"`
	JobEdgeWeight   *float64 `json:"job_edge_weight,omitempty"`
	Exclude         []string `json:"exclude,omitempty"`
	MaxIter         *int     `json:"max_iter,omitempty"`
	EmbedTopK       *int     `json:"embed_top_k,omitempty"`
	EmbedScale      *float64 `json:"embed_scale,omitempty"`
}

func nonNegative(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidOverrides, name, *v)
	}
	return nil
}

// Validate reports every invalid field at once.
func (o Overrides) Validate() error {
	var errs []error
	if o.MinSharedSkills != nil && *o.MinSharedSkills < 1 {
		errs = append(errs, fmt.Errorf("%w: min_shared_skills must be at least 1, got %d", ErrInvalidOverrides, *o.MinSharedSkills))
	}
	if o.WeightMode != nil {
		switch graph.WeightMode(strings.ToLower(strings.TrimSpace(*o.WeightMode))) {
		case graph.WeightCount, graph.WeightJaccard:
		default:
			errs = append(errs, fmt.Errorf("%w: weight_mode must be count or jaccard, got %q", ErrInvalidOverrides, *o.WeightMode))
		}
	}
	errs = append(errs,
		nonNegative("boost_company", o.BoostCompany),
		nonNegative("boost_school", o.BoostSchool),
		nonNegative("job_edge_weight", o.JobEdgeWeight),
		nonNegative("embed_scale", o.EmbedScale),
	)
	if o.MaxIter != nil && *o.MaxIter < 1 {
		errs = append(errs, fmt.Errorf("%w: max_iter must be at least 1, got %d", ErrInvalidOverrides, *o.MaxIter))
	}
	if o.EmbedTopK != nil && *o.EmbedTopK < 0 {
		errs = append(errs, fmt.Errorf("%w: embed_top_k must not be negative, got %d", ErrInvalidOverrides, *o.EmbedTopK))
	}
	return errors.Join(errs...)
}

// ApplyOverrides validates o and copies the set fields onto c.
func (c *Config) ApplyOverrides(o Overrides) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.MinSharedSkills != nil {
		c.Builder.MinSharedSkills = *o.MinSharedSkills
	}
	if o.WeightMode != nil {
		c.Builder.WeightMode = graph.WeightMode(strings.ToLower(strings.TrimSpace(*o.WeightMode)))
	}
	if o.BoostCompany != nil {
		c.Builder.CompanyBoost = *o.BoostCompany
	}
	if o.BoostSchool != nil {
		c.Builder.SchoolBoost = *o.BoostSchool
	}
	if o.JobEdgeWeight != nil {
		c.Builder.JobEdgeWeight = *o.JobEdgeWeight
	}
	var exclude []string
	for _, id := range o.Exclude {
		if id = strings.TrimSpace(id); id != "" {
			exclude = append(exclude, id)
		}
	}
	if len(exclude) > 0 {
		c.Builder.ExcludeIDs = exclude
	}
	if o.MaxIter != nil {
		c.Community.MaxIterations = *o.MaxIter
	}
	if o.EmbedTopK != nil {
		c.Builder.EmbedTopN = *o.EmbedTopK
	}
	if o.EmbedScale != nil {
		c.Builder.EmbedScale = *o.EmbedScale
	}
	return nil
}

// WithOverrides returns a copy of c with o applied. c is left untouched.
func (c *Config) WithOverrides(o Overrides) (*Config, error) {
	cp := *c
	if err := cp.ApplyOverrides(o); err != nil {
		return nil, err
	}
	return &cp, nil
}

// NewBuilder creates the graph builder described by the builder section.
func (c *Config) NewBuilder() (*graph.Builder, error) {
	params, err := c.BuilderParams()
	if err != nil {
		return nil, err
	}
	return graph.NewBuilder(params)
}
