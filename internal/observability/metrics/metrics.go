package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the credit-engine counters.
type Metrics struct {
	ConsumptionPoints   *prometheus.CounterVec
	CheckpointFailures  prometheus.Counter
	GenerationOutcomes  *prometheus.CounterVec
	SweeperDowngrades   prometheus.Counter
	SweeperRuns         prometheus.Counter
	SweeperRunDurations prometheus.Histogram
}

// New registers the metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with the given registerer.
// Tests pass a fresh registry so runs do not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConsumptionPoints: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eurekode_consumption_points_total",
			Help: "Points debited, partitioned by pool.",
		}, []string{"pool"}),
		CheckpointFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "eurekode_generation_checkpoint_failures_total",
			Help: "Best-effort checkpoint writes that failed or were dropped.",
		}),
		GenerationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eurekode_generations_total",
			Help: "Finalized generations by outcome.",
		}, []string{"outcome"}),
		SweeperDowngrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "eurekode_trial_downgrades_total",
			Help: "Trial subscriptions downgraded to free.",
		}),
		SweeperRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "eurekode_trial_sweeper_runs_total",
			Help: "Trial sweeper executions.",
		}),
		SweeperRunDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eurekode_trial_sweeper_run_seconds",
			Help:    "Trial sweeper run durations.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
