// Package metrics holds the Prometheus collectors shared across the server.
// Collectors are registered with the default registry on import and served by
// promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeCompileError = "compile_error"
	OutcomeRuntimeError = "runtime_error"
	OutcomeTimeout      = "timeout"
	OutcomeSpawnError   = "spawn_error"
	OutcomeUnsupported  = "unsupported"
	OutcomeInternal     = "internal_error"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugger_executions_total",
			Help: "Total number of code executions by language and outcome.",
		},
		[]string{"language", "outcome"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debugger_execution_duration_seconds",
			Help:    "Execution duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"language", "phase"}, // phase: "compile", "run", "total"
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debugger_cleanup_failures_total",
			Help: "Execution artifacts that could not be removed.",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debugger_rate_limit_hits_total",
			Help: "Total number of requests rejected by the execution limiter.",
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugger_submissions_total",
			Help: "Quiz submissions by language and verdict.",
		},
		[]string{"language", "verdict"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugger_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debugger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
