// Package observability holds the prometheus collectors and tracing helpers
// shared by the workflow, workers and HTTP layer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payments"

type Metrics struct {
	workflowOutcomes *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	outboxDispatch   *prometheus.CounterVec
	reconcileResults *prometheus.CounterVec
	projectedEvents  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg. Use a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		workflowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "outcomes_total",
			Help: "Payment workflow results by outcome code.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "stage_duration_seconds",
			Help:    "Time spent in each workflow stage.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		outboxDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "dispatch_total",
			Help: "Outbox publish attempts by result.",
		}, []string{"result"}),
		reconcileResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reconciler", Name: "results_total",
			Help: "Charge attempt reconciliation results.",
		}, []string{"result"}),
		projectedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "projector", Name: "events_total",
			Help: "Order events applied to the local replica.",
		}, []string{"topic", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.workflowOutcomes,
		m.stageDuration,
		m.outboxDispatch,
		m.reconcileResults,
		m.projectedEvents,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) WorkflowOutcome(outcome string) {
	if m == nil {
		return
	}
	m.workflowOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage that began at start took.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) OutboxDispatch(result string) {
	if m == nil {
		return
	}
	m.outboxDispatch.WithLabelValues(result).Inc()
}

func (m *Metrics) ReconcileResult(result string) {
	if m == nil {
		return
	}
	m.reconcileResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ProjectedEvent(topic, result string) {
	if m == nil {
		return
	}
	m.projectedEvents.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
