package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bridgewise"

var (
	// RankDuration measures ranking latency.
	// Labels: kind (rank, batch, graph), status (ok, error)
	RankDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rank",
		Name:      "duration_seconds",
		Help:      "Ranking latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind", "status"})

	// EmbeddingFallbacks counts rankings served without vector similarity.
	// Labels: reason (timeout, error, empty)
	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rank",
		Name:      "embedding_fallbacks_total",
		Help:      "Rankings computed with vecSim unavailable",
	}, []string{"reason"})

	// PrecomputeRuns counts precomputation runs.
	// Labels: status (ok, error, locked)
	PrecomputeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "precompute",
		Name:      "runs_total",
		Help:      "Total precomputation runs",
	}, []string{"status"})

	PrecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "precompute",
		Name:      "duration_seconds",
		Help:      "Precomputation run duration in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// ArtifactSize describes the artifact currently served.
	// Labels: kind (nodes, edges, clusters)
	ArtifactSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "artifact",
		Name:      "size",
		Help:      "Number of nodes, edges and clusters in the served artifact",
	}, []string{"kind"})

	ArtifactModularity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "artifact",
		Name:      "modularity",
		Help:      "Modularity of the served artifact's partition",
	})
)

// ObserveArtifact updates the artifact gauges.
func ObserveArtifact(nodes, edges, clusters int, modularity float64) {
	ArtifactSize.WithLabelValues("nodes").Set(float64(nodes))
	ArtifactSize.WithLabelValues("edges").Set(float64(edges))
	ArtifactSize.WithLabelValues("clusters").Set(float64(clusters))
	ArtifactModularity.Set(modularity)
}
