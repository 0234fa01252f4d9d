// Package metrics provides Prometheus metrics for conversation turns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agent-console/internal/domain"
)

// Metrics holds the turn, stream and feedback collectors.
type Metrics struct {
	TurnsTotal      *prometheus.CounterVec
	TurnDuration    prometheus.Histogram
	TurnsInFlight   prometheus.Gauge
	ChunksTotal     prometheus.Counter
	ChunkBytesTotal prometheus.Counter
	RationaleTotal  prometheus.Counter
	FeedbackTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors with reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_console_turns_total",
				Help: "Total number of finished conversation turns",
			},
			[]string{"outcome"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agent_console_turn_duration_seconds",
				Help:    "Time from sending a question to the end of the agent response",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),
		TurnsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_console_turns_in_flight",
				Help: "Number of turns currently awaiting a response",
			},
		),
		ChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_console_completion_chunks_total",
				Help: "Completion chunks received from the agent",
			},
		),
		ChunkBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_console_completion_bytes_total",
				Help: "Completion bytes received from the agent",
			},
		),
		RationaleTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_console_rationale_fragments_total",
				Help: "Rationale fragments received from the agent",
			},
		),
		FeedbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_console_feedback_total",
				Help: "Feedback submissions by value and result",
			},
			[]string{"feedback", "status"},
		),
		gatherer: reg,
	}
}

func (m *Metrics) TurnStarted() {
	m.TurnsInFlight.Inc()
}

func (m *Metrics) TurnFinished(outcome domain.TurnOutcome, elapsed time.Duration) {
	m.TurnsInFlight.Dec()
	m.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	m.TurnDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ChunkReceived(bytes int) {
	m.ChunksTotal.Inc()
	m.ChunkBytesTotal.Add(float64(bytes))
}

func (m *Metrics) RationaleReceived() {
	m.RationaleTotal.Inc()
}

func (m *Metrics) FeedbackSubmitted(fb domain.Feedback, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.FeedbackTotal.WithLabelValues(string(fb), status).Inc()
}

// Handler serves the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
