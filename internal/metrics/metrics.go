// Package metrics exposes Prometheus instrumentation for the transfer core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the orchestrator and the API gateway
type Metrics struct {
	TransfersInitiated   prometheus.Counter
	TransfersByOutcome   *prometheus.CounterVec
	ReservationConflicts prometheus.Counter
	CompensationRetries  prometheus.Counter
	ReviewEscalations    prometheus.Counter
	GatewayCallDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		TransfersInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_initiated_total",
			Help: "Number of transfer requests accepted for orchestration.",
		}),
		TransfersByOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_terminal_total",
			Help: "Number of transfers reaching a terminal state, by state.",
		}, []string{"state"}),
		ReservationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reservation_conflict_total",
			Help: "Number of optimistic-lock conflicts during balance reservation.",
		}),
		CompensationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compensation_retry_total",
			Help: "Number of retried reservation releases after failed settlement.",
		}),
		ReviewEscalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manual_review_escalation_total",
			Help: "Number of transfers escalated to manual review.",
		}),
		GatewayCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Settlement gateway call latency by gateway and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway", "operation"}),
		registry: registry,
	}

	registry.MustRegister(
		m.TransfersInitiated,
		m.TransfersByOutcome,
		m.ReservationConflicts,
		m.CompensationRetries,
		m.ReviewEscalations,
		m.GatewayCallDuration,
	)

	return m
}

// Registry returns the underlying registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
