package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the replay manager.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	failures          *prometheus.CounterVec
	scansTotal        prometheus.Counter
	actionsEnqueued   prometheus.Counter
	actionsDropped    prometheus.Counter
	highlightsCreated prometheus.Counter
	toolFailures      *prometheus.CounterVec
	libraryEntries    prometheus.Gauge
	queueLength       prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_failures_total",
			Help: "Failed operations by error kind, including those answered with a 200 envelope",
		}, []string{"kind"}),
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_scans_total",
			Help: "Total number of library scans",
		}),
		actionsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_actions_enqueued_total",
			Help: "Total number of player actions enqueued",
		}),
		actionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_actions_dropped_total",
			Help: "Player actions discarded by supersede or overflow",
		}),
		highlightsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_highlights_created_total",
			Help: "Total number of highlight clips assembled",
		}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_tool_failures_total",
			Help: "External tool invocations that failed or timed out",
		}, []string{"tool", "reason"}),
		libraryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replay_library_entries",
			Help: "Number of clips in the current library snapshot",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replay_queue_length",
			Help: "Number of clips in the playlist queue",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.failures,
		m.scansTotal,
		m.actionsEnqueued,
		m.actionsDropped,
		m.highlightsCreated,
		m.toolFailures,
		m.libraryEntries,
		m.queueLength,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// IncFailures increments the failed operation counter for kind.
func (m *Metrics) IncFailures(kind string) { m.failures.WithLabelValues(kind).Inc() }

// IncScans increments the scan counter.
func (m *Metrics) IncScans() { m.scansTotal.Inc() }

// IncActionsEnqueued increments the enqueued actions counter.
func (m *Metrics) IncActionsEnqueued() { m.actionsEnqueued.Inc() }

// AddActionsDropped adds n to the dropped actions counter.
func (m *Metrics) AddActionsDropped(n int) { m.actionsDropped.Add(float64(n)) }

// IncHighlightsCreated increments the highlights counter.
func (m *Metrics) IncHighlightsCreated() { m.highlightsCreated.Inc() }

// IncToolFailures increments the failure counter for the named tool.
func (m *Metrics) IncToolFailures(tool string, timedOut bool) {
	reason := "error"
	if timedOut {
		reason = "timeout"
	}
	m.toolFailures.WithLabelValues(tool, reason).Inc()
}

// SetLibraryEntries sets the library size gauge.
func (m *Metrics) SetLibraryEntries(n int) { m.libraryEntries.Set(float64(n)) }

// SetQueueLength sets the queue length gauge.
func (m *Metrics) SetQueueLength(n int) { m.queueLength.Set(float64(n)) }

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
