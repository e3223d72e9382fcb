// Package telemetry provides application-level observability for the research portal.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<RP_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. It is NOT served by the Gin router, so page routes and
// the metrics endpoint never share a listener.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Backend API call counters and latency, by resource, method and outcome
//   - Session lifecycle: evictions, sign-ins and the active session gauge
//   - Secondary effect failures (writes that may fail without rolling back the primary one)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /projects/:id) rather than
// the raw request URL. Backend metrics use the resource name (team-members, projects,
// announcements, events, auth), never the record id.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Backend API metrics, recorded by the HTTP client adapter for every outgoing call.
//
// The outcome label is one of: ok, auth_expired, validation_rejected, not_found,
// transport_failure.
//
// Example PromQL queries:
//   - Backend error ratio:   sum(rate(backend_requests_total{outcome!="ok"}[5m])) / sum(rate(backend_requests_total[5m]))
//   - Slowest resources:     histogram_quantile(0.95, sum by (resource, le) (rate(backend_request_duration_seconds_bucket[5m])))
var (
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of backend API calls, by resource, method, and outcome.",
		},
		[]string{"resource", "method", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Histogram of backend API call latencies, by resource and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "method"},
	)
)

// Session metrics.
//
// SessionEvictionsTotal counts sessions forced back to anonymous, by reason
// (unauthorized, profile_failed, sign_out).
//
// Example PromQL queries:
//   - Token expiry rate:  rate(session_evictions_total{reason="unauthorized"}[1h])
var (
	SessionEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_evictions_total",
			Help: "Total number of sessions returned to the anonymous state, by reason.",
		},
		[]string{"reason"},
	)

	SessionSignInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_sign_ins_total",
			Help: "Total number of completed sign-in attempts, by role (or failed).",
		},
		[]string{"role"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Number of browser sessions currently held in the session registry.",
		},
	)

	SessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Total number of idle sessions removed by the session sweeper.",
		},
	)
)

// SecondaryEffectFailuresTotal counts non-authoritative writes that failed after their
// primary write succeeded, by effect name (e.g. announcement_event).
//
// Example PromQL queries:
//   - Alert expression:  increase(secondary_effect_failures_total[1h]) > 0
var SecondaryEffectFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "secondary_effect_failures_total",
		Help: "Total number of failed secondary effect writes, by effect.",
	},
	[]string{"effect"},
)
