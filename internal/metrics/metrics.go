// Package metrics exposes Prometheus metrics for configuration evaluation.
// Collectors register on the default registry via promauto; embedders
// scrape them with their own promhttp handler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all evaluation metrics.
type Registry struct {
	// Evaluation runs by outcome ("ok", "error", "divergence").
	EvaluationsTotal *prometheus.CounterVec

	// Fixed-point passes needed to stabilize.
	Iterations prometheus.Histogram

	// Wall time of whole evaluation runs.
	Duration prometheus.Histogram

	// Option paths resolved in the most recent run.
	PathsResolved prometheus.Gauge

	// Per-kind diagnostic counters.
	ConflictsTotal         prometheus.Counter
	TypeMismatchesTotal    prometheus.Counter
	AssertionFailuresTotal prometheus.Counter
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moraine_evaluations_total",
		Help: "Total configuration evaluation runs by outcome",
	}, []string{"outcome"})

	r.Iterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moraine_evaluation_iterations",
		Help:    "Fixed-point passes needed to stabilize one evaluation",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
	})

	r.Duration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moraine_evaluation_duration_seconds",
		Help:    "Wall time of one evaluation run",
		Buckets: prometheus.DefBuckets,
	})

	r.PathsResolved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moraine_paths_resolved",
		Help: "Option paths resolved in the most recent evaluation",
	})

	r.ConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moraine_conflicts_total",
		Help: "Merge conflicts reported across all evaluations",
	})

	r.TypeMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moraine_type_mismatches_total",
		Help: "Type mismatches reported across all evaluations",
	})

	r.AssertionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moraine_assertion_failures_total",
		Help: "Assertion failures reported across all evaluations",
	})

	return r
}
