// Package metrics exposes Prometheus counters for lineage emission and
// failure classification.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leaplineage"

// Metrics holds the lineage collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsEmitted    *prometheus.CounterVec
	emitErrors       *prometheus.CounterVec
	recoveryFailures *prometheus.CounterVec
	classifiedErrors *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Lineage events handed to the transport, by event type.",
		}, []string{"event_type"}),
		emitErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Lineage events the transport rejected, by event type.",
		}, []string{"event_type"}),
		recoveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_recovery_failures_total",
			Help:      "Failures that could not be attributed to a run, by reason.",
		}, []string{"reason"}),
		classifiedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_errors_total",
			Help:      "Errors raised inside the execution boundary, by kind.",
		}, []string{"kind"}),
	}
}

// EventEmitted counts a successfully emitted event.
func (m *Metrics) EventEmitted(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// EmitFailed counts an event the transport rejected.
func (m *Metrics) EmitFailed(eventType string) {
	if m == nil {
		return
	}
	m.emitErrors.WithLabelValues(eventType).Inc()
}

// RecoveryFailed counts a failure with no recoverable run identity.
func (m *Metrics) RecoveryFailed(reason string) {
	if m == nil {
		return
	}
	m.recoveryFailures.WithLabelValues(reason).Inc()
}

// ErrorClassified counts an error leaving the execution boundary.
func (m *Metrics) ErrorClassified(kind string) {
	if m == nil {
		return
	}
	m.classifiedErrors.WithLabelValues(kind).Inc()
}

// Handler serves /metrics from gatherer and a /healthz probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
