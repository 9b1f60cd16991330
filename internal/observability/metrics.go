package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RedisCommandLatency records round trip time per Redis command.
	RedisCommandLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_redis_command_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ErrorsTotal counts captured application errors by error code.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_errors_total",
		Help: "Total number of captured application errors by code",
	}, []string{"code"})

	// SessionBootstraps counts session bootstraps by outcome (ok, fallback).
	SessionBootstraps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_session_bootstrap_total",
		Help: "Total number of session bootstraps by outcome",
	}, []string{"outcome"})

	// RealtimeEvents counts domain change events published to subscribers.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_realtime_events_total",
		Help: "Total realtime events published by type",
	}, []string{"event_type"})

	// WebSocketConnections is the gauge of active WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// SearchQueries counts search requests by backend (meili, database).
	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_search_queries_total",
		Help: "Total search queries by backend",
	}, []string{"backend"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
