package pgx

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const getEmbeddingsSQL = `
SELECT hash, embedding
FROM person_embeddings
WHERE hash = ANY($1);
`

const putEmbeddingSQL = `
INSERT INTO person_embeddings (hash, model, embedding)
VALUES ($1, $2, $3)
ON CONFLICT (hash) DO UPDATE
SET model      = EXCLUDED.model,
    embedding  = EXCLUDED.embedding,
    created_at = now();
`

// GetEmbeddings returns the cached vectors for the given description hashes.
// Unknown hashes are absent from the result.
func (s *Store) GetEmbeddings(ctx context.Context, hashes []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(hashes))
	hashes = store.DedupeStrings(hashes)
	if len(hashes) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, getEmbeddingsSQL, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			hash string
			vec  pgvector.Vector
		)
		if err := rows.Scan(&hash, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		out[hash] = vec.Slice()
	}
	return out, rows.Err()
}

// PutEmbeddings upserts vectors keyed by description hash.
func (s *Store) PutEmbeddings(ctx context.Context, model string, embeddings map[string][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	hashes := slices.Sorted(maps.Keys(embeddings))

	err := store.ChunkRange(len(hashes), s.chunkSize, func(start, end int) error {
		b := &pgxv5.Batch{}
		for _, h := range hashes[start:end] {
			b.Queue(putEmbeddingSQL, h, model, pgvector.NewVector(embeddings[h]))
		}
		return s.sendBatch(ctx, b)
	})
	if err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}

	logger.Debug("[Store][PutEmbeddings] Stored embeddings", "count", len(hashes), "model", model)
	return nil
}
