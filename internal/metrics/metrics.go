// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

// Package metrics exposes Prometheus instrumentation for the sync engine:
// outbound API calls, circuit breaker state, queue throughput, and sync runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Channel API client metrics

	ChannelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lodgekeeper_channel_request_duration_seconds",
			Help:    "Duration of outbound channel-manager API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"system", "endpoint"},
	)

	ChannelRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_channel_request_errors_total",
			Help: "Total outbound channel-manager API call failures by error code",
		},
		[]string{"system", "endpoint", "code"},
	)

	ChannelRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_channel_rate_limited_total",
			Help: "Total outbound calls rejected by the local rate limiter",
		},
		[]string{"system"},
	)

	// Circuit breaker metrics. State values: 0=closed, 1=half-open, 2=open.

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lodgekeeper_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"system"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"system", "from", "to"},
	)

	CircuitBreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_circuit_breaker_rejections_total",
			Help: "Total calls rejected because the circuit was open",
		},
		[]string{"system"},
	)

	// Queue metrics

	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_messages_published_total",
			Help: "Total messages published to the broker",
		},
		[]string{"system", "event_type"},
	)

	MessagesAcked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_messages_acked_total",
			Help: "Total messages acknowledged after successful processing",
		},
		[]string{"queue"},
	)

	MessagesRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_messages_retried_total",
			Help: "Total messages negatively acknowledged for redelivery",
		},
		[]string{"queue"},
	)

	MessagesDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_messages_dead_lettered_total",
			Help: "Total messages routed to a dead-letter queue",
		},
		[]string{"queue"},
	)

	// Sync metrics

	SyncResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_sync_results_total",
			Help: "Total sync operation results by type and outcome",
		},
		[]string{"system", "sync_type", "outcome"},
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lodgekeeper_sync_run_duration_seconds",
			Help:    "Duration of full sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"system"},
	)

	SyncConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodgekeeper_sync_conflicts_total",
			Help: "Total field-level conflicts detected between local and external state",
		},
		[]string{"system", "field"},
	)

	// HTTP metrics for the admin trigger surface

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lodgekeeper_http_request_duration_seconds",
			Help:    "Duration of admin API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSyncResult increments the sync result counter for one operation.
func RecordSyncResult(system, syncType string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	SyncResults.WithLabelValues(system, syncType, outcome).Inc()
}
