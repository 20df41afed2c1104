// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal      *prometheus.CounterVec
	breakerTransitionsTotal *prometheus.CounterVec
	jobsSavedTotal          *prometheus.CounterVec
	runDurationSeconds      prometheus.Histogram
	sourcesFailedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times;
// observation helpers are no-ops until it runs.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_attempts_total",
				Help: "Fetch attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		breakerTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_breaker_transitions_total",
				Help: "Circuit breaker state transitions, labeled by domain and new state.",
			},
			[]string{"domain", "to"},
		)

		jobsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_jobs_saved_total",
				Help: "Validation outcomes, labeled by source and disposition.",
			},
			[]string{"source", "disposition"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Wall-clock duration of full orchestration runs.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		)

		sourcesFailedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_sources_failed_total",
				Help: "Sources that finished a run in a failed state.",
			},
			[]string{"source"},
		)
	})
}

// ObserveFetch counts one fetch attempt outcome.
func ObserveFetch(source, outcome string) {
	if fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveBreakerTransition counts one circuit state change.
func ObserveBreakerTransition(domain, to string) {
	if breakerTransitionsTotal == nil {
		return
	}
	breakerTransitionsTotal.WithLabelValues(domain, to).Inc()
}

// ObserveJobSaved counts one validation disposition (new, updated,
// duplicate, rejected).
func ObserveJobSaved(source, disposition string) {
	if jobsSavedTotal == nil {
		return
	}
	jobsSavedTotal.WithLabelValues(source, disposition).Inc()
}

// ObserveRunDuration records one completed run.
func ObserveRunDuration(d time.Duration) {
	if runDurationSeconds == nil {
		return
	}
	runDurationSeconds.Observe(d.Seconds())
}

// ObserveSourceFailed counts a failed source in a run.
func ObserveSourceFailed(source string) {
	if sourcesFailedTotal == nil {
		return
	}
	sourcesFailedTotal.WithLabelValues(source).Inc()
}
