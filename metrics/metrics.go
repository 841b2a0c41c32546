// Package metrics provides the Prometheus collectors for script executions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets spans fast scripts up to the default 30s budget plus the
// isolation grace period.
var ExecutionBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 35}

var (
	// ExecutionsTotal counts finished executions by outcome: "success" or a
	// failure kind.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptbox_executions_total",
			Help: "Script executions",
		},
		[]string{"outcome", "mode"},
	)

	// ExecutionDuration records wall-clock time of supervised processes.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptbox_execution_duration_seconds",
			Help:    "Supervised process duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"mode"},
	)

	// ValidationRejectionsTotal counts scripts rejected before spawn.
	ValidationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptbox_validation_rejections_total",
			Help: "Rejected submissions",
		},
		[]string{"reason"},
	)

	// ActiveExecutions tracks child processes currently running.
	ActiveExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptbox_active_executions",
			Help: "Running executions",
		},
	)

	// CleanupFailuresTotal counts harness files that could not be removed.
	CleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scriptbox_cleanup_failures_total",
			Help: "Harness cleanup failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDuration,
		ValidationRejectionsTotal,
		ActiveExecutions,
		CleanupFailuresTotal,
	)
}
