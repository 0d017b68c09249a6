// Package metrics exposes the gateway's Prometheus instrumentation behind a
// private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Turn lifecycle
	TurnsStarted    prometheus.Counter
	TurnsSuppressed *prometheus.CounterVec
	TurnsCancelled  prometheus.Counter
	RepliesTotal    prometheus.Counter

	// Response generation
	ResponseDuration prometheus.Histogram

	// Conversation store
	StoreFailuresTotal *prometheus.CounterVec

	// Sessions
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
}

// New creates a Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voxline"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	turnsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_started_total",
		Help:      "User turns accepted for response generation",
	})

	turnsSuppressed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_suppressed_total",
			Help:      "User turns suppressed before any work started",
		},
		[]string{"reason"},
	)

	turnsCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_cancelled_total",
		Help:      "In-flight response tasks cancelled by a newer turn or interruption",
	})

	repliesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_total",
		Help:      "Agent replies delivered",
	})

	responseDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "response_duration_seconds",
		Help:      "Response generation duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	storeFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Conversation store operations that degraded to no-history behavior",
		},
		[]string{"op"},
	)

	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of sessions with a live coordinator",
	})

	sessionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total number of sessions opened",
	})

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		turnsStarted,
		turnsSuppressed,
		turnsCancelled,
		repliesTotal,
		responseDuration,
		storeFailuresTotal,
		sessionsActive,
		sessionsTotal,
	)

	return &Metrics{
		registry:           registry,
		RequestsTotal:      requestsTotal,
		RequestDuration:    requestDuration,
		TurnsStarted:       turnsStarted,
		TurnsSuppressed:    turnsSuppressed,
		TurnsCancelled:     turnsCancelled,
		RepliesTotal:       repliesTotal,
		ResponseDuration:   responseDuration,
		StoreFailuresTotal: storeFailuresTotal,
		SessionsActive:     sessionsActive,
		SessionsTotal:      sessionsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTurnStarted records an accepted user turn.
func (m *Metrics) RecordTurnStarted() { m.TurnsStarted.Inc() }

// RecordTurnSuppressed records a suppressed user turn.
func (m *Metrics) RecordTurnSuppressed(reason string) {
	m.TurnsSuppressed.WithLabelValues(reason).Inc()
}

// RecordTurnCancelled records a cancelled in-flight response task.
func (m *Metrics) RecordTurnCancelled() { m.TurnsCancelled.Inc() }

// RecordReply records a delivered reply.
func (m *Metrics) RecordReply() { m.RepliesTotal.Inc() }

// ObserveResponseDuration records how long one response generation took.
func (m *Metrics) ObserveResponseDuration(duration time.Duration) {
	m.ResponseDuration.Observe(duration.Seconds())
}

// RecordStoreFailure records a conversation store operation that failed.
func (m *Metrics) RecordStoreFailure(op string) {
	m.StoreFailuresTotal.WithLabelValues(op).Inc()
}

// RecordSessionOpened records a new session coordinator coming up.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// RecordSessionClosed records a session coordinator being torn down.
func (m *Metrics) RecordSessionClosed() { m.SessionsActive.Dec() }
