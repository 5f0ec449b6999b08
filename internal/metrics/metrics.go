// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

/// Package metrics exposes Prometheus instrumentation for:
// - Upstream source calls (latency, errors, circuit breaker state)
// - Dashboard payload cache efficiency
// - Journey lookups
// - Snapshot runs
// - API endpoint latency and throughput
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream Source Metrics
	SourceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpideck_source_call_duration_seconds",
			Help:    "Duration of third-party source calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)

	SourceCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_source_call_errors_total",
			Help: "Total number of failed third-party source calls",
		},
		[]string{"source", "endpoint"},
	)

	SourceBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kpideck_source_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Dashboard Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_cache_invalidations_total",
			Help: "Total number of cache entries removed by pattern invalidation",
		},
		[]string{"cache"},
	)

	// Journey Metrics
	JourneyLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_journey_lookups_total",
			Help: "Total number of journey lookups by outcome",
		},
		[]string{"outcome"}, // "cached", "fresh", "not_found", "failed"
	)

	JourneyLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kpideck_journey_lookup_duration_seconds",
			Help:    "Duration of journey lookups including upstream fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Snapshot Metrics
	SnapshotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_snapshot_runs_total",
			Help: "Total number of snapshot runs by trigger",
		},
		[]string{"trigger"}, // "scheduled", "manual"
	)

	SnapshotUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_snapshot_units_total",
			Help: "Total number of snapshot units executed by result",
		},
		[]string{"result"}, // "success", "failed"
	)

	SnapshotRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kpideck_snapshot_run_duration_seconds",
			Help:    "Duration of a full snapshot run across all units",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	LastSnapshotTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kpideck_last_snapshot_timestamp_seconds",
			Help: "Unix timestamp of the last completed snapshot run",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpideck_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpideck_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpideck_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)
)

// RecordSourceCall records one upstream call with its duration and outcome.
func RecordSourceCall(source, endpoint string, duration time.Duration, err error) {
	SourceCallDuration.WithLabelValues(source, endpoint).Observe(duration.Seconds())
	if err != nil {
		SourceCallErrors.WithLabelValues(source, endpoint).Inc()
	}
}

// RecordAPIRequest records endpoint latency and throughput.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records one database query with its duration and outcome.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordSnapshotRun records a completed snapshot run with per-unit outcomes.
func RecordSnapshotRun(trigger string, success, failed int, duration time.Duration) {
	SnapshotRuns.WithLabelValues(trigger).Inc()
	SnapshotUnits.WithLabelValues("success").Add(float64(success))
	SnapshotUnits.WithLabelValues("failed").Add(float64(failed))
	SnapshotRunDuration.Observe(duration.Seconds())
	LastSnapshotTimestamp.SetToCurrentTime()
}
