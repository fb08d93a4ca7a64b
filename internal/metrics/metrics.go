// Package metrics holds the Prometheus collectors for the parking control service.
//
// Collectors live on a private registry so tests can build independent
// instances without tripping duplicate registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for spot operations
const (
	OutcomeCreated  = "created"
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics groups the service collectors
type Metrics struct {
	reg *prometheus.Registry

	requests        *prometheus.CounterVec   // parkingcontrol_http_requests_total
	requestDuration *prometheus.HistogramVec // parkingcontrol_http_request_duration_seconds
	spotOutcomes    *prometheus.CounterVec   // parkingcontrol_spot_outcomes_total
}

// New creates the collectors and registers them, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkingcontrol_http_requests_total",
			Help: "HTTP requests partitioned by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkingcontrol_http_request_duration_seconds",
			Help:    "HTTP request latency partitioned by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	spotOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkingcontrol_spot_outcomes_total",
			Help: "Parking spot operation outcomes (created, success, conflict, not_found, invalid, error).",
		},
		[]string{"operation", "outcome"},
	)

	reg.MustRegister(
		requests,
		requestDuration,
		spotOutcomes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg:             reg,
		requests:        requests,
		requestDuration: requestDuration,
		spotOutcomes:    spotOutcomes,
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordOutcome counts one outcome of a spot operation. A nil receiver is a no-op.
func (m *Metrics) RecordOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.spotOutcomes.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
