// Package metrics exposes Prometheus instrumentation for the availability
// pipeline: cache efficiency, source lookups and rate-limit waits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results
const (
	CacheHit         = "hit"
	CacheNegativeHit = "negative_hit"
	CacheMiss        = "miss"
)

// Source check outcomes
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookhound_cache_lookups_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookhound_cache_entries",
			Help: "Entries currently held by the availability cache, including expired ones not yet pruned",
		},
	)

	SourceChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookhound_source_checks_total",
			Help: "Availability checks against external sources by outcome",
		},
		[]string{"source", "outcome"},
	)

	SourceCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookhound_source_check_duration_seconds",
			Help:    "Duration of availability checks including rate-limit waits and retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookhound_ratelimit_waits_total",
			Help: "Times a caller was suspended because a source's request window was exhausted",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookhound_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)
)

// RecordSourceCheck records the outcome and duration of one source check.
func RecordSourceCheck(source, outcome string, duration time.Duration) {
	SourceChecks.WithLabelValues(source, outcome).Inc()
	SourceCheckDuration.WithLabelValues(source).Observe(duration.Seconds())
}
