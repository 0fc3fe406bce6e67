package pgx

import (
	"context"
	"fmt"

	"github.com/bridgewise/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const upsertRankSQL = `
INSERT INTO person_rank (person_id, goal, score, vec_sim, skill_sim, job_sim, struct, ranked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (person_id, goal) DO UPDATE
SET score     = EXCLUDED.score,
    vec_sim   = EXCLUDED.vec_sim,
    skill_sim = EXCLUDED.skill_sim,
    job_sim   = EXCLUDED.job_sim,
    struct    = EXCLUDED.struct,
    ranked_at = EXCLUDED.ranked_at;
`

const insertRunSQL = `
INSERT INTO precompute_runs (artifact_id, status, error, node_count, edge_count, cluster_count, modularity, started_at, finished_at)
VALUES (NULLIF($1, ''), $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9);
`

// WriteRanks upserts rank records keyed by person id and goal.
func (s *Store) WriteRanks(ctx context.Context, records []store.RankRecord) error {
	return store.ChunkRange(len(records), s.chunkSize, func(start, end int) error {
		b := &pgxv5.Batch{}
		for _, r := range records[start:end] {
			b.Queue(upsertRankSQL, r.PersonID, r.Goal, r.Score, r.VecSim, r.SkillSim, r.JobSim, r.Struct, r.At)
		}
		if err := s.sendBatch(ctx, b); err != nil {
			return fmt.Errorf("failed to write ranks: %w", err)
		}
		return nil
	})
}

// RecordRun appends a row to the precompute run history.
func (s *Store) RecordRun(ctx context.Context, run store.RunRecord) error {
	_, err := s.conn.Exec(ctx, insertRunSQL,
		run.ArtifactID,
		run.Status,
		run.Error,
		run.Nodes,
		run.Edges,
		run.Clusters,
		run.Modularity,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record precompute run: %w", err)
	}
	return nil
}

var (
	_ store.ContactStore   = (*Store)(nil)
	_ store.EmbeddingCache = (*Store)(nil)
	_ store.RankWriter     = (*Store)(nil)
	_ store.RunRecorder    = (*Store)(nil)
)
