// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alumnet/engagement-service/internal/lifecycle"
)

// Metrics owns every collector. Collectors live on a private registry so
// tests can build several instances.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	drift       *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_transitions_total",
				Help: "Proposal and listing transitions by outcome",
			},
			[]string{"domain", "kind", "action", "outcome"},
		),
		drift: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "capacity_drift_listings",
				Help: "Bounded listings whose slot counter disagrees with their engagement count",
			},
			[]string{"domain"},
		),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.transitions, m.drift,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Transition implements lifecycle.Recorder.
func (m *Metrics) Transition(d lifecycle.Domain, kind, action, outcome string) {
	m.transitions.WithLabelValues(string(d), kind, action, outcome).Inc()
}

// SetDrift records the number of drifted listings found by an audit.
func (m *Metrics) SetDrift(d lifecycle.Domain, n int) {
	m.drift.WithLabelValues(string(d)).Set(float64(n))
}

// Middleware records request counts and latencies per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, path, strconv.Itoa(c.Response().Status)).Inc()
			m.duration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
