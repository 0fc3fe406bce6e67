package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/migrate"
	"github.com/bridgewise/backend/internal/storage"
	"github.com/bridgewise/backend/pkg/ai"
	oai "github.com/bridgewise/backend/pkg/ai/ollama"
	gai "github.com/bridgewise/backend/pkg/ai/openai"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"
	"github.com/bridgewise/backend/pkg/leaselock"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/metrics"
	"github.com/bridgewise/backend/pkg/precompute"
	"github.com/bridgewise/backend/pkg/rank"
	"github.com/bridgewise/backend/pkg/store"
	"github.com/bridgewise/backend/pkg/store/jsonfile"
	neo4jstore "github.com/bridgewise/backend/pkg/store/neo4j"
	pgxstore "github.com/bridgewise/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Resources holds the components shared by the server, the worker and the
// precompute command.
type Resources struct {
	Config *config.Config

	Pool  *pgxpool.Pool
	Neo4j *neo4jstore.Store

	Contacts       store.ContactStore
	EmbeddingCache store.EmbeddingCache
	RankWriter     store.RankWriter
	Runs           store.RunRecorder
	Locker         precompute.Locker

	// Embedder is the raw provider used for bulk description embedding.
	// QueryEmbedder adds a process wide LRU for ranking queries.
	Embedder      ai.Embedder
	QueryEmbedder ai.Embedder
	AIMetrics     ai.MetricsReporter

	Artifacts artifact.Store
	Blobs     *artifact.BlobStore
	Bucket    *storage.Bucket

	Builder *graph.Builder
	Holder  *artifact.Holder
	Ranker  *rank.Ranker
}

// Open connects every configured backend. Failures are returned; the
// caller decides whether they are fatal.
func Open(ctx context.Context, cfg *config.Config) (*Resources, error) {
	r := &Resources{Config: cfg, Holder: &artifact.Holder{}}

	if cfg.Database.URL != "" {
		if cfg.Database.AutoMigrate {
			if err := migrate.Up(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
				return nil, err
			}
		}
		pool, err := NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		r.Pool = pool
		pg := pgxstore.NewStore(pool)
		r.EmbeddingCache = pg
		r.RankWriter = pg
		r.Runs = pg
		r.Locker = leaselock.New(pool)
		if cfg.Contacts.Source == config.SourcePostgres {
			r.Contacts = pg
		}
	} else {
		r.EmbeddingCache = store.NewMemoryCache()
	}

	switch cfg.Contacts.Source {
	case config.SourceNeo4j:
		s, err := neo4jstore.NewStore(ctx, neo4jstore.NewStoreParams{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			r.Close(ctx)
			return nil, err
		}
		r.Neo4j = s
		r.Contacts = s
		// Rank properties live on the Person nodes, as the dashboard reads them there.
		r.RankWriter = s
	case config.SourceJSON:
		r.Contacts = jsonfile.NewStore(cfg.Contacts.JSONPath)
	}
	if r.Contacts == nil {
		r.Close(ctx)
		return nil, errors.New("no contact store configured")
	}

	if err := r.openEmbedder(); err != nil {
		r.Close(ctx)
		return nil, err
	}
	if err := r.openArtifacts(ctx); err != nil {
		r.Close(ctx)
		return nil, err
	}

	var err error
	r.Builder, err = cfg.NewBuilder()
	if err != nil {
		r.Close(ctx)
		return nil, err
	}

	var writer store.RankWriter
	if cfg.Rank.WriteBack {
		writer = r.RankWriter
	}
	weights := cfg.Rank.Weights
	r.Ranker, err = rank.NewRanker(rank.NewRankerParams{
		Holder:       r.Holder,
		Embedder:     r.QueryEmbedder,
		Synonyms:     r.Builder.Synonyms(),
		Writer:       writer,
		Weights:      &weights,
		EgoMetric:    cfg.Rank.EgoMetric,
		EgoRadius:    cfg.Rank.EgoRadius,
		EmbedTimeout: cfg.Rank.EmbedTimeout,
		MaxTopK:      cfg.Rank.MaxTopK,
	})
	if err != nil {
		r.Close(ctx)
		return nil, err
	}

	return r, nil
}

// NewPool opens a pgx pool with pgvector types registered on every
// connection.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}

func (r *Resources) openEmbedder() error {
	e := r.Config.Embedding

	var base ai.Embedder
	switch e.Adapter {
	case "none":
		logger.Info("[Bootstrap] Embeddings disabled, ranking without vector similarity")
		return nil
	case "ollama":
		client, err := oai.NewEmbeddingClient(oai.NewEmbeddingClientParams{
			Model:                 e.Model,
			BaseURL:               e.URL,
			ApiKey:                e.Key,
			Dimensions:            e.Dimensions,
			MaxTokens:             e.MaxTokens,
			Timeout:               e.Timeout,
			MaxConcurrentRequests: int64(e.Parallel),
		})
		if err != nil {
			return fmt.Errorf("could not create ollama client: %w", err)
		}
		base, r.AIMetrics = client, client
	default:
		client := gai.NewEmbeddingClient(gai.NewEmbeddingClientParams{
			Model:                 e.Model,
			BaseURL:               e.URL,
			APIKey:                e.Key,
			Dimensions:            e.Dimensions,
			MaxTokens:             e.MaxTokens,
			Timeout:               e.Timeout,
			MaxConcurrentRequests: int64(e.Parallel),
		})
		base, r.AIMetrics = client, client
	}

	r.Embedder = ai.NewRateLimitedEmbedder(base, e.RatePerSecond, e.Burst)
	cached, err := ai.NewCachedEmbedder(r.Embedder, e.CacheSize)
	if err != nil {
		return err
	}
	r.QueryEmbedder = cached
	return nil
}

func (r *Resources) openArtifacts(ctx context.Context) error {
	a := r.Config.Artifacts
	switch a.Backend {
	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, r.Config.S3)
		if err != nil {
			return err
		}
		r.Bucket = storage.NewBucket(client, r.Config.S3.Bucket, r.Config.S3.PublicEndpoint)
		r.Blobs = artifact.NewBlobStore(r.Bucket, a.Prefix, a.Keep)
		r.Artifacts = r.Blobs
	default:
		fs, err := artifact.NewFileStore(a.Dir, a.Keep)
		if err != nil {
			return err
		}
		r.Artifacts = fs
	}
	return nil
}

// NewJob creates a precomputation job over the shared resources.
func (r *Resources) NewJob(publisher precompute.Publisher, progress precompute.ProgressFunc) (*precompute.Job, error) {
	return precompute.NewJob(precompute.NewJobParams{
		Contacts:       r.Contacts,
		Embedder:       r.Embedder,
		EmbeddingCache: r.EmbeddingCache,
		EmbeddingModel: r.Config.Embedding.Model,
		EmbedBatchSize: r.Config.Embedding.BatchSize,
		Builder:        r.Builder,
		Community:      r.Config.Community,
		GlobalMetric:   r.Config.Rank.GlobalMetric,
		Parallelism:    r.Config.Builder.Parallelism,
		Artifacts:      r.Artifacts,
		Holder:         r.Holder,
		Locker:         r.Locker,
		Publisher:      publisher,
		Runs:           r.Runs,
		Ranker:         r.goalRanker(),
		Progress:       progress,
	})
}

// goalRanker shares the holder with Ranker but always has a writer, so the
// precompute goal pass can persist results regardless of RANK_WRITE.
func (r *Resources) goalRanker() *rank.Ranker {
	if r.RankWriter == nil {
		return r.Ranker
	}
	weights := r.Config.Rank.Weights
	gr, err := rank.NewRanker(rank.NewRankerParams{
		Holder:       r.Holder,
		Embedder:     r.QueryEmbedder,
		Synonyms:     r.Builder.Synonyms(),
		Writer:       r.RankWriter,
		Weights:      &weights,
		EgoMetric:    r.Config.Rank.EgoMetric,
		EgoRadius:    r.Config.Rank.EgoRadius,
		EmbedTimeout: r.Config.Rank.EmbedTimeout,
		MaxTopK:      r.Config.Rank.MaxTopK,
	})
	if err != nil {
		return r.Ranker
	}
	return gr
}

// Load publishes the artifact id, or the latest one when id is empty. The
// current snapshot stays in place when loading fails.
func (r *Resources) Load(ctx context.Context, id string) (*artifact.Snapshot, error) {
	var (
		a   *common.GraphArtifact
		err error
	)
	if id == "" {
		a, err = r.Artifacts.LoadLatest(ctx)
	} else {
		a, err = r.Artifacts.Load(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	snap := artifact.NewSnapshot(a, r.Builder.Synonyms())
	r.Holder.Swap(snap)
	meta := artifact.MetadataOf(a)
	metrics.ObserveArtifact(meta.NodeCount, meta.EdgeCount, meta.Clusters, meta.Modularity)
	logger.Info("[Bootstrap] Serving artifact", "artifact", a.ID, "nodes", meta.NodeCount, "edges", meta.EdgeCount)
	return snap, nil
}

// Close releases every open backend.
func (r *Resources) Close(ctx context.Context) {
	if r.Neo4j != nil {
		if err := r.Neo4j.Close(ctx); err != nil {
			logger.Warn("[Bootstrap] Failed to close neo4j driver", "err", err)
		}
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
}
