package store

import (
	"context"
	"time"

	"github.com/bridgewise/backend/pkg/common"
)

// ContactStore provides bulk read access to all persons. Implementations
// return skills already normalized with common.NormalizeSkills.
type ContactStore interface {
	LoadPersons(ctx context.Context) ([]common.Person, error)
}

// EmbeddingCache stores description embeddings keyed by
// common.DescriptionHash of the text. A changed description yields a new
// hash and therefore a cache miss.
type EmbeddingCache interface {
	GetEmbeddings(ctx context.Context, hashes []string) (map[string][]float32, error)
	PutEmbeddings(ctx context.Context, model string, embeddings map[string][]float32) error
}

// RankRecord is the persisted outcome of ranking one person for a goal.
type RankRecord struct {
	PersonID string
	Goal     string
	Score    float64
	VecSim   float64
	SkillSim float64
	JobSim   float64
	Struct   float64
	At       time.Time
}

// RankWriter persists ranking results. Writes are upserts keyed by person id
// and goal, so repeating a ranking is idempotent.
type RankWriter interface {
	WriteRanks(ctx context.Context, records []RankRecord) error
}

// RunRecord summarises one precomputation run.
type RunRecord struct {
	ArtifactID string
	Status     string
	Error      string
	Nodes      int
	Edges      int
	Clusters   int
	Modularity float64
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecorder keeps a history of precomputation runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}
