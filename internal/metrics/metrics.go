// Package metrics exposes Prometheus instrumentation for the settlement
// pipeline. Metrics register with the default registry via promauto, so a
// process must create at most one SettlementMetrics instance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SettlementMetrics holds the pipeline counters and histograms.
type SettlementMetrics struct {
	SettlementsStartedTotal   prometheus.Counter
	SettlementsSucceededTotal prometheus.CounterVec
	SettlementsFailedTotal    prometheus.CounterVec

	FiatSettledTotal prometheus.CounterVec
	FeesChargedTotal prometheus.CounterVec

	RunDuration prometheus.HistogramVec
}

// NewSettlementMetrics registers and returns the settlement metric set.
func NewSettlementMetrics() *SettlementMetrics {
	return &SettlementMetrics{
		SettlementsStartedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "settlements_started_total",
				Help: "Settlement runs started",
			},
		),

		SettlementsSucceededTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_succeeded_total",
				Help: "Settlement runs that persisted a ledger record",
			},
			[]string{"currency"},
		),

		SettlementsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_failed_total",
				Help: "Settlement runs aborted by a stage failure",
			},
			[]string{"reason"},
		),

		FiatSettledTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiat_settled_amount_total",
				Help: "Total fiat amount settled, by currency",
			},
			[]string{"currency"},
		),

		FeesChargedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_fees_total",
				Help: "Total fees charged, by currency",
			},
			[]string{"currency"},
		),

		RunDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_run_duration_seconds",
				Help:    "Wall time of one settlement run",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
			},
			[]string{"status"},
		),
	}
}

// RecordStarted counts a run entering the pipeline.
func (m *SettlementMetrics) RecordStarted() {
	m.SettlementsStartedTotal.Inc()
}

// RecordSucceeded counts a completed run with its settled amounts.
func (m *SettlementMetrics) RecordSucceeded(currency string, fiatAmount, fee, durationSeconds float64) {
	m.SettlementsSucceededTotal.WithLabelValues(currency).Inc()
	m.FiatSettledTotal.WithLabelValues(currency).Add(fiatAmount)
	m.FeesChargedTotal.WithLabelValues(currency).Add(fee)
	m.RunDuration.WithLabelValues("success").Observe(durationSeconds)
}

// RecordFailed counts an aborted run. reason must come from a bounded set
// (one value per failure sentinel) to keep label cardinality in check.
func (m *SettlementMetrics) RecordFailed(reason string, durationSeconds float64) {
	m.SettlementsFailedTotal.WithLabelValues(reason).Inc()
	m.RunDuration.WithLabelValues("failed").Observe(durationSeconds)
}
