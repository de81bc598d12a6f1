package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "quotation"

// Outcome label values
const (
	OutcomeApplied   = "applied"
	OutcomeRejected  = "rejected"
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	previewsTotal     prometheus.Counter
	coalescedTotal    prometheus.Counter
	pagesPerDocument  prometheus.Histogram
	exportsTotal      *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "commands_total",
		Help:      "Edit commands by name and outcome.",
	}, []string{"command", "outcome"})

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of estimation, pagination and rendering.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
	}, []string{"stage"})

	m.previewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "previews_total",
		Help:      "Preview refreshes performed.",
	})

	m.coalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "preview_edits_coalesced_total",
		Help:      "Edits folded into a later preview refresh.",
	})

	m.pagesPerDocument = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "document_pages",
		Help:      "Pages per paginated document.",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})

	m.exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "exports_total",
		Help:      "Export requests by outcome.",
	}, []string{"outcome"})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_sessions",
		Help:      "Open preview sessions.",
	})

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		m.commandsTotal,
		m.stageDuration,
		m.previewsTotal,
		m.coalescedTotal,
		m.pagesPerDocument,
		m.exportsTotal,
		m.activeSessions,
		m.httpRequestsTotal,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry, for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CommandApplied counts an accepted command
func (m *Metrics) CommandApplied(command string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, OutcomeApplied).Inc()
}

// CommandRejected counts a rejected command
func (m *Metrics) CommandRejected(command string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, OutcomeRejected).Inc()
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// PreviewRendered counts a preview refresh of the given page count
func (m *Metrics) PreviewRendered(pages int) {
	if m == nil {
		return
	}
	m.previewsTotal.Inc()
	m.pagesPerDocument.Observe(float64(pages))
}

// EditsCoalesced counts edits that did not trigger their own refresh
func (m *Metrics) EditsCoalesced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.coalescedTotal.Add(float64(n))
}

// ExportFinished counts an export by outcome
func (m *Metrics) ExportFinished(outcome string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// GinMiddleware records request counts and latency per route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
