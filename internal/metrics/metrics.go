// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package metrics registers Jellygate's Prometheus collectors and provides
// small helpers for recording them. Collectors are package globals
// registered with promauto on the default registry, exposed at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jellygate_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jellygate_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Upstream Jellyfin API
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_upstream_requests_total",
			Help: "Total number of Jellyfin API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jellygate_upstream_request_duration_seconds",
			Help:    "Jellyfin API call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jellygate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Trial sweep
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_trial_sweep_runs_total",
			Help: "Total number of expiry sweeps by trigger",
		},
		[]string{"trigger"}, // scheduled, manual
	)

	SweepRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_trial_sweep_records_total",
			Help: "Trial records acted on by the expiry sweep",
		},
		[]string{"action", "result"}, // processed, failed
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jellygate_trial_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jellygate_trial_sweep_last_success_timestamp",
			Help: "Unix timestamp of the last sweep that completed",
		},
	)

	// Signups
	SignupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_signups_total",
			Help: "Signup attempts by result",
		},
		[]string{"result"}, // created, invalid, taken, upstream_error
	)

	// Geo lookups
	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_geoip_lookups_total",
			Help: "Geo-IP lookups by provider and result",
		},
		[]string{"provider", "result"}, // success, error, local, cache_hit, absent
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// Event log
	EventLogAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellygate_eventlog_appends_total",
			Help: "Event log appends by log and result",
		},
		[]string{"log", "result"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamRequest records one Jellyfin API call.
func RecordUpstreamRequest(operation string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSweep records the outcome of one expiry sweep.
func RecordSweep(trigger, action string, duration time.Duration, processed, failed int) {
	SweepRunsTotal.WithLabelValues(trigger).Inc()
	SweepRecordsTotal.WithLabelValues(action, "processed").Add(float64(processed))
	SweepRecordsTotal.WithLabelValues(action, "failed").Add(float64(failed))
	SweepDuration.Observe(duration.Seconds())
	SweepLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordGeoLookup records one provider attempt or short-circuit.
func RecordGeoLookup(provider, result string) {
	GeoLookupsTotal.WithLabelValues(provider, result).Inc()
}

// RecordCacheAccess records a hit or miss for a cache backend.
func RecordCacheAccess(backend string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(backend).Inc()
	} else {
		CacheMisses.WithLabelValues(backend).Inc()
	}
}

// RecordEventLogAppend records an event log write.
func RecordEventLogAppend(log string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventLogAppends.WithLabelValues(log, result).Inc()
}

// RecordSignup records one signup attempt.
func RecordSignup(result string) {
	SignupsTotal.WithLabelValues(result).Inc()
}
