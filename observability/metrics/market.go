package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks settlement engine activity.
type MarketMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	settled    *prometheus.CounterVec
	settledSum *prometheus.CounterVec
	escrowed   prometheus.Gauge
	sweeps     *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farm",
				Subsystem: "market",
				Name:      "operations_total",
				Help:      "Count of marketplace operations by name and result.",
			}, []string{"operation", "result"}),
			conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farm",
				Subsystem: "market",
				Name:      "commit_conflicts_total",
				Help:      "Number of optimistic commits retried after a write conflict.",
			}, []string{"operation"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farm",
				Subsystem: "market",
				Name:      "orders_settled_total",
				Help:      "Orders consumed by a terminal transition.",
			}, []string{"outcome"}),
			settledSum: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farm",
				Subsystem: "market",
				Name:      "settled_value_total",
				Help:      "Token value disbursed by recipient role.",
			}, []string{"recipient"}),
			escrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "farm",
				Subsystem: "market",
				Name:      "escrowed_value",
				Help:      "Value currently locked in live orders, as seen by this process.",
			}),
			sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farm",
				Subsystem: "keeper",
				Name:      "sweeps_total",
				Help:      "Expired order sweeps by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.conflicts,
			marketRegistry.settled,
			marketRegistry.settledSum,
			marketRegistry.escrowed,
			marketRegistry.sweeps,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// ObserveAbort records an operation that panicked before it could commit.
func (m *MarketMetrics) ObserveAbort(operation string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, "aborted").Inc()
}

func (m *MarketMetrics) IncConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveLocked records value entering escrow.
func (m *MarketMetrics) ObserveLocked(amount uint64) {
	if m == nil {
		return
	}
	m.escrowed.Add(float64(amount))
}

// ObserveSettlement records an order leaving escrow and the value paid to each
// side.
func (m *MarketMetrics) ObserveSettlement(outcome string, farmerAmount, buyerAmount uint64) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(outcome).Inc()
	if farmerAmount > 0 {
		m.settledSum.WithLabelValues("farmer").Add(float64(farmerAmount))
	}
	if buyerAmount > 0 {
		m.settledSum.WithLabelValues("buyer").Add(float64(buyerAmount))
	}
	m.escrowed.Sub(float64(farmerAmount + buyerAmount))
}

func (m *MarketMetrics) ObserveSweep(refunded int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweeps.WithLabelValues("error").Inc()
		return
	}
	if refunded == 0 {
		m.sweeps.WithLabelValues("idle").Inc()
		return
	}
	m.sweeps.WithLabelValues("refunded").Inc()
}
