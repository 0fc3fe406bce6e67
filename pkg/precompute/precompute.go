package precompute

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/bridgewise/backend/internal/timing"
	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/ai"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/community"
	"github.com/bridgewise/backend/pkg/graph"
	"github.com/bridgewise/backend/pkg/leaselock"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/metrics"
	"github.com/bridgewise/backend/pkg/rank"
	"github.com/bridgewise/backend/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/bridgewise/backend/pkg/precompute")

// LockKey is the lease key that serialises precomputation runs.
const LockKey = "precompute"

// ErrAlreadyRunning is returned when another run holds the lease.
var ErrAlreadyRunning = errors.New("precomputation already running")

// Locker serialises runs across processes.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Publisher announces a newly saved artifact to other processes.
type Publisher interface {
	PublishArtifactReady(ctx context.Context, meta artifact.Metadata) error
}

// ProgressFunc receives progress updates of a run.
type ProgressFunc func(util.RunProgress)

// Job builds graph artifacts from the contact store.
//
// A Job should be created using NewJob.
type Job struct {
	contacts       store.ContactStore
	embedder       ai.Embedder
	cache          store.EmbeddingCache
	embeddingModel string
	embedBatchSize int
	builder        *graph.Builder
	community      community.Options
	globalMetric   graph.GlobalMetric
	parallelism    int
	artifacts      artifact.Store
	holder         *artifact.Holder
	locker         Locker
	lockOptions    leaselock.Options
	publisher      Publisher
	runs           store.RunRecorder
	ranker         *rank.Ranker
	progress       ProgressFunc
}

// NewJobParams configures a Job. Contacts, Builder and Artifacts are
// required. Holder receives every new snapshot; Ranker, used for the
// optional goal pass, must read from the same Holder.
type NewJobParams struct {
	Contacts       store.ContactStore
	Embedder       ai.Embedder
	EmbeddingCache store.EmbeddingCache
	EmbeddingModel string
	EmbedBatchSize int
	Builder        *graph.Builder
	Community      community.Options
	GlobalMetric   graph.GlobalMetric
	Parallelism    int
	Artifacts      artifact.Store
	Holder         *artifact.Holder
	Locker         Locker
	LockOptions    leaselock.Options
	Publisher      Publisher
	Runs           store.RunRecorder
	Ranker         *rank.Ranker
	Progress       ProgressFunc
}

func NewJob(params NewJobParams) (*Job, error) {
	if params.Contacts == nil {
		return nil, errors.New("contact store is required")
	}
	if params.Builder == nil {
		return nil, errors.New("graph builder is required")
	}
	if params.Artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	if err := params.Community.Validate(); err != nil {
		return nil, err
	}
	global, err := graph.ParseGlobalMetric(string(params.GlobalMetric))
	if err != nil {
		return nil, err
	}

	return &Job{
		contacts:       params.Contacts,
		embedder:       params.Embedder,
		cache:          params.EmbeddingCache,
		embeddingModel: params.EmbeddingModel,
		embedBatchSize: params.EmbedBatchSize,
		builder:        params.Builder,
		community:      params.Community,
		globalMetric:   global,
		parallelism:    params.Parallelism,
		artifacts:      params.Artifacts,
		holder:         params.Holder,
		locker:         params.Locker,
		lockOptions:    params.LockOptions,
		publisher:      params.Publisher,
		runs:           params.Runs,
		ranker:         params.Ranker,
		progress:       params.Progress,
	}, nil
}

// Params are the per run options.
type Params struct {
	// Goal runs a ranking pass over the new artifact when set.
	Goal      *rank.GoalRequest
	// Builder and Community replace the job's configuration for this run.
	Builder   *graph.Builder
	Community *community.Options
}

// Result describes a finished run.
type Result struct {
	Artifact *common.GraphArtifact
	Metadata artifact.Metadata
	Embedded int
	Timings  map[string]int64
	Goal     *rank.Response
}

// Run executes one precomputation. A failure before the artifact is saved
// leaves the previously served artifact untouched.
func (j *Job) Run(ctx context.Context, params Params) (*Result, error) {
	if j.locker == nil {
		return j.run(ctx, params)
	}

	var res *Result
	err := j.locker.WithLease(ctx, LockKey, j.lockOptions, func(ctx context.Context) error {
		var err error
		res, err = j.run(ctx, params)
		return err
	})
	if errors.Is(err, leaselock.ErrBusy) {
		metrics.PrecomputeRuns.WithLabelValues("locked").Inc()
		return nil, ErrAlreadyRunning
	}
	return res, err
}

func (j *Job) report(step util.RunStep, done, total int) {
	if j.progress != nil {
		j.progress(util.BuildRunProgress(step, done, total))
	}
}

func (j *Job) run(ctx context.Context, params Params) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "precompute.Run")
	defer span.End()

	started := time.Now().UTC()
	tracker := timing.NewTracker()
	run := store.RunRecord{StartedAt: started}
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			run.Error = err.Error()
			j.report(util.StepFailed, 0, 0)
		}
		run.Status = status
		run.FinishedAt = time.Now().UTC()
		metrics.PrecomputeRuns.WithLabelValues(status).Inc()
		metrics.PrecomputeDuration.Observe(tracker.Total().Seconds())
		if j.runs != nil {
			if rErr := j.runs.RecordRun(context.WithoutCancel(ctx), run); rErr != nil {
				logger.Warn("[Precompute] Failed to record run", "err", rErr)
			}
		}
	}()

	builder, opts := j.builder, j.community
	if params.Builder != nil {
		builder = params.Builder
	}
	if params.Community != nil {
		opts = *params.Community
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}

	logger.Info("[Precompute] Starting run")

	j.report(util.StepLoading, 0, 0)
	stop := tracker.Start(string(util.StepLoading))
	persons, err := j.contacts.LoadPersons(ctx)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to load persons: %w", err)
	}

	j.report(util.StepEmbedding, 0, len(persons))
	stop = tracker.Start(string(util.StepEmbedding))
	embedded, err := store.ResolveEmbeddings(ctx, persons, store.ResolveEmbeddingsParams{
		Embedder:    j.embedder,
		Cache:       j.cache,
		Model:       j.embeddingModel,
		BatchSize:   j.embedBatchSize,
		Parallelism: j.parallelism,
		Retry:       util.DefaultRetry,
	})
	stop()
	if err != nil {
		return nil, err
	}

	j.report(util.StepBuilding, 0, 0)
	stop = tracker.Start(string(util.StepBuilding))
	g, err := builder.Build(ctx, persons)
	stop()
	if err != nil {
		return nil, err
	}
	x := g.Index()

	j.report(util.StepClustering, 0, 0)
	stop = tracker.Start(string(util.StepClustering))
	part, err := community.Detect(ctx, x, g.Titles, opts)
	stop()
	if err != nil {
		return nil, err
	}

	j.report(util.StepMetrics, 0, 0)
	stop = tracker.Start(string(util.StepMetrics))
	nodeMetrics, err := graph.ComputeMetrics(ctx, x, j.globalMetric, j.parallelism)
	stop()
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	a := &common.GraphArtifact{
		ID:         id,
		BuiltAt:    time.Now().UTC(),
		Nodes:      g.Nodes,
		Edges:      g.Edges,
		Clusters:   part.Clusters,
		Modularity: part.Modularity,
		Metrics:    nodeMetrics,
		Parameters: j.parameters(builder, opts, part),
	}
	run.ArtifactID = a.ID
	run.Nodes, run.Edges, run.Clusters, run.Modularity = len(a.Nodes), len(a.Edges), len(a.Clusters), a.Modularity
	span.SetAttributes(
		attribute.String("precompute.artifact", a.ID),
		attribute.Int("precompute.nodes", len(a.Nodes)),
		attribute.Int("precompute.edges", len(a.Edges)),
	)

	j.report(util.StepSaving, 0, 0)
	stop = tracker.Start(string(util.StepSaving))
	err = j.artifacts.Save(ctx, a)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	meta := artifact.MetadataOf(a)
	if j.holder != nil {
		j.holder.Swap(artifact.NewSnapshot(a, builder.Synonyms()))
		metrics.ObserveArtifact(meta.NodeCount, meta.EdgeCount, meta.Clusters, meta.Modularity)
	}
	if j.publisher != nil {
		if pErr := j.publisher.PublishArtifactReady(ctx, meta); pErr != nil {
			logger.Warn("[Precompute] Failed to publish artifact", "artifact", a.ID, "err", pErr)
		}
	}

	res = &Result{Artifact: a, Metadata: meta, Embedded: embedded}

	if params.Goal != nil && j.ranker != nil && j.holder != nil {
		j.report(util.StepRanking, 0, 0)
		stop = tracker.Start(string(util.StepRanking))
		goal, gErr := j.ranker.RankGoal(ctx, *params.Goal)
		stop()
		if gErr != nil {
			logger.Warn("[Precompute] Goal ranking failed", "artifact", a.ID, "err", gErr)
		}
		res.Goal = goal
	}

	res.Timings = tracker.Milliseconds()
	j.report(util.StepCompleted, 0, 0)
	logger.Info(
		"[Precompute] Run completed",
		"artifact", a.ID,
		"nodes", meta.NodeCount,
		"edges", meta.EdgeCount,
		"clusters", meta.Clusters,
		"modularity", meta.Modularity,
		"embedded", embedded,
		"duration", timing.Format(tracker.Total()),
	)
	return res, nil
}

func (j *Job) parameters(builder *graph.Builder, opts community.Options, part *community.Result) map[string]any {
	params := map[string]any{}
	maps.Copy(params, builder.Parameters())
	params["resolution"] = opts.Resolution
	params["maxIterations"] = opts.MaxIterations
	params["labelDominance"] = opts.LabelDominance
	params["louvainLevels"] = part.Levels
	params["louvainConverged"] = part.Converged
	params["globalMetric"] = string(j.globalMetric)
	if j.embeddingModel != "" {
		params["embeddingModel"] = j.embeddingModel
	}
	return params
}
