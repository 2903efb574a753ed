package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the dispatcher.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	decisionsTotal      *prometheus.CounterVec
	runsTotal           *prometheus.CounterVec
	reportsSentTotal    prometheus.Counter
	reportsFailedTotal  *prometheus.CounterVec
	reportsSkippedTotal prometheus.Counter
	reportSendDuration  prometheus.Histogram
	markerCommitsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "report_dispatch",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "decisions_total",
				Help:      "Schedule policy evaluations by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "batch_runs_total",
				Help:      "Batch runs by trigger and result.",
			},
			[]string{"trigger", "result"},
		),
		reportsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "reports_delivered_total",
				Help:      "Total number of class reports handed to the mail transport successfully.",
			},
		),
		reportsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "reports_failed_total",
				Help:      "Total number of class reports that failed, by failure kind.",
			},
			[]string{"kind"},
		),
		reportsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "recipients_skipped_total",
				Help:      "Total number of teachers skipped for missing email or class.",
			},
		),
		reportSendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "report_dispatch",
				Name:      "report_duration_seconds",
				Help:      "Per-recipient resolve, render and send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		markerCommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_dispatch",
				Name:      "marker_commits_total",
				Help:      "Dispatch marker commits by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.decisionsTotal,
		m.runsTotal,
		m.reportsSentTotal,
		m.reportsFailedTotal,
		m.reportsSkippedTotal,
		m.reportSendDuration,
		m.markerCommitsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// IncDecision counts a policy evaluation; outcome is "run" or a skip reason.
func (m *Metrics) IncDecision(trigger string, outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(normalizeLabel(trigger), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncRun(trigger string, result string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

func (m *Metrics) IncReportDelivered() {
	if m == nil {
		return
	}
	m.reportsSentTotal.Inc()
}

func (m *Metrics) IncReportFailed(kind string) {
	if m == nil {
		return
	}
	m.reportsFailedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) AddRecipientsSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reportsSkippedTotal.Add(float64(n))
}

func (m *Metrics) ObserveReportDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.reportSendDuration.Observe(seconds)
}

func (m *Metrics) IncMarkerCommit(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.markerCommitsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
