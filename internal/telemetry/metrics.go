// Package telemetry provides the Prometheus metrics and structured logging setup of the pin service.
//
// Metrics are registered against the default registry and served by the side-channel HTTP server
// started in cmd/server (GET /metrics on telemetry.metrics.prometheus_port, default 9090). They
// are not routed through gin.
//
// Metric groups:
//   - HTTP request counters and latency histograms, labelled by route template
//   - authentication gate outcomes
//   - domain write counters (pins, likes, bookmarks, tag links)
//   - rate limit rejections
//   - database connection pool gauge, sampled every 30 s
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pinco/pinco-backend/internal/safego"
)

// HTTPRequestsTotal and HTTPRequestDuration are labelled with the gin route template
// (e.g. /api/pins/:pinId), never the raw URL.
//
// Example PromQL queries:
//   - Error rate (%):        sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// AuthOutcomesTotal counts the terminal state of every request passing the authentication gate:
// bypassed, fresh, reissued, rejected or anonymous.
//
// Example PromQL queries:
//   - Silent reissue rate:  rate(auth_outcomes_total{outcome="reissued"}[5m])
//   - Rejection ratio:      sum(rate(auth_outcomes_total{outcome="rejected"}[5m])) / sum(rate(auth_outcomes_total[5m]))
var AuthOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_outcomes_total",
		Help: "Total number of authentication gate decisions, by outcome.",
	},
	[]string{"outcome"},
)

// Domain write counters. Incremented by handlers after the service call succeeded.
var (
	PinsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pins_created_total",
			Help: "Total number of pins created.",
		},
	)

	LikeTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "like_toggles_total",
			Help: "Total number of like toggles, by action (on, off).",
		},
		[]string{"action"},
	)

	SoftDeleteTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soft_delete_transitions_total",
			Help: "Total number of soft-delete state changes, by resource and transition (delete, restore).",
		},
		[]string{"resource", "transition"},
	)
)

// RateLimitRejectionsTotal counts 429 responses, by limiter name (api, auth).
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Total number of requests rejected by a rate limiter.",
	},
	[]string{"limiter"},
)

// DBOpenConnections tracks the open connections of the sql.DB pool. It is sampled by
// StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until the database stops
// answering pings, which happens once main closes it on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}
