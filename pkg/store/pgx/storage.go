package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

// Store implements the contact store, the embedding cache, the rank writer
// and the run history on PostgreSQL with pgvector.
type Store struct {
	conn      pgxIConn
	chunkSize int
}

type StoreOption func(*Store)

// WithChunkSize sets how many rows are written per batch.
func WithChunkSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewStore creates a Store on an existing pool or connection. Vector columns
// are decoded with pgvector, so the pool should register its types with
// pgxvec.RegisterTypes in AfterConnect.
func NewStore(conn pgxIConn, opts ...StoreOption) *Store {
	s := &Store{conn: conn, chunkSize: 500}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// sendBatch runs every queued statement and closes the batch.
func (s *Store) sendBatch(ctx context.Context, b *pgxv5.Batch) error {
	br := s.conn.SendBatch(ctx, b)
	for range b.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
