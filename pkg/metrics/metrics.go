// Package metrics exposes the CRM's Prometheus collectors on a dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricHTTPRequestsTotal      = "crm_http_requests_total"
	MetricHTTPRequestDuration    = "crm_http_request_duration_seconds"
	MetricConversionsTotal       = "crm_conversions_total"
	MetricStatusTransitionsTotal = "crm_status_transitions_total"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// so services can be built without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	conversions       *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests handled, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricConversionsTotal,
			Help: "Lead conversions and quote confirmations, by outcome.",
		}, []string{"kind", "outcome"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStatusTransitionsTotal,
			Help: "Applied kanban status transitions, by entity and target status.",
		}, []string{"entity", "status"}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.conversions, m.statusTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveConversion(kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.conversions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveTransition(entity, status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(entity, status).Inc()
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
