package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records delivery outcomes for the outbox relay.
type RelayMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	terminal *prometheus.CounterVec
	requeued prometheus.Counter
}

// NewRelayMetrics registers the relay metrics on the provided registerer.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_delivery_duration_seconds",
		Help:    "Duration of outbox entry delivery attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_delivery_success",
		Help: "Outbox entries delivered successfully.",
	}, []string{"action"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_delivery_failure",
		Help: "Outbox delivery attempts that failed and were requeued.",
	}, []string{"action"})
	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_delivery_terminal_failure",
		Help: "Outbox entries parked as failed after exhausting attempts.",
	}, []string{"action"})
	requeued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_lease_requeued",
		Help: "Outbox entries reclaimed after a delivery lease expired.",
	})
	reg.MustRegister(duration, success, failure, terminal, requeued)
	return &RelayMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		terminal: terminal,
		requeued: requeued,
	}
}

// ObserveDelivery records the duration for one delivery attempt.
func (m *RelayMetrics) ObserveDelivery(action string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(action)).Observe(duration.Seconds())
}

// IncSuccess increments the delivered counter for the action.
func (m *RelayMetrics) IncSuccess(action string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncFailure increments the requeue counter for the action.
func (m *RelayMetrics) IncFailure(action string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncTerminalFailure increments the parked counter for the action.
func (m *RelayMetrics) IncTerminalFailure(action string) {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncLeaseRequeued increments the expired lease counter.
func (m *RelayMetrics) IncLeaseRequeued() {
	if m == nil || m.requeued == nil {
		return
	}
	m.requeued.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
