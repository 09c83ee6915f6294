// Package metrics exposes Prometheus collectors for backend calls and task
// scheduling outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_backend_calls_total",
		Help: "Backend calls by backend and outcome status.",
	}, []string{"backend", "status"})

	backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quorum_backend_call_duration_seconds",
		Help:    "Backend call latency by backend.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"backend"})

	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_tasks_total",
		Help: "Scheduled tasks by task name and outcome.",
	}, []string{"task", "outcome"})

	reasoningRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_reasoning_runs_total",
		Help: "Reasoning runs by completion status.",
	}, []string{"status"})
)

// ObserveBackendCall records one backend dispatch.
func ObserveBackendCall(backend, status string, d time.Duration) {
	backendCalls.WithLabelValues(backend, status).Inc()
	backendCallDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveTask records one terminal task outcome ("completed" or "failed").
func ObserveTask(task, outcome string) {
	tasksCompleted.WithLabelValues(task, outcome).Inc()
}

// ObserveRun records one finished reasoning run.
func ObserveRun(status string) {
	reasoningRuns.WithLabelValues(status).Inc()
}
