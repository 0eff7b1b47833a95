// Package metrics defines the Prometheus collectors for ring placement and
// resharding. A *Metrics is a rebalance.Observer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shardring/internal/rebalance"
)

const (
	namespace = "shardring"
)

// Metrics holds the collectors.
type Metrics struct {
	// PhaseDuration observes how long each phase took, partitioned by phase
	// (setup, placement, compute, apply).
	PhaseDuration *prometheus.HistogramVec

	// PassesTotal counts completed resharding passes.
	PassesTotal prometheus.Counter

	// ItemsRelocatedTotal counts items moved between shards.
	ItemsRelocatedTotal prometheus.Counter

	// RelocationPlanSize reports the size of the last plan.
	RelocationPlanSize prometheus.Gauge

	// ExpectedRelocations reports the uniform-distribution estimate for the
	// last pass.
	ExpectedRelocations prometheus.Gauge

	// RingLabels reports the number of labels on the ring after the last pass.
	RingLabels prometheus.Gauge

	// ShardItems reports item counts per shard after the last pass.
	ShardItems *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Time spent in each placement or resharding phase, in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"phase"},
		),

		PassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of completed resharding passes.",
			},
		),

		ItemsRelocatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_relocated_total",
				Help:      "Total number of items moved between shards.",
			},
		),

		RelocationPlanSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "relocation_plan_size",
				Help:      "Number of moves in the most recent relocation plan.",
			},
		),

		ExpectedRelocations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "expected_relocations",
				Help:      "Moves expected for the most recent pass under a uniform distribution.",
			},
		),

		RingLabels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ring_labels",
				Help:      "Number of labels on the ring.",
			},
		),

		ShardItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shard_items",
				Help:      "Number of items held by each shard.",
			},
			[]string{"shard"},
		),
	}

	reg.MustRegister(
		m.PhaseDuration,
		m.PassesTotal,
		m.ItemsRelocatedTotal,
		m.RelocationPlanSize,
		m.ExpectedRelocations,
		m.RingLabels,
		m.ShardItems,
	)

	return m
}

// ObservePhase implements rebalance.Observer.
func (m *Metrics) ObservePhase(phase rebalance.Phase, elapsed time.Duration) {
	m.PhaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// ObservePass implements rebalance.Observer.
func (m *Metrics) ObservePass(r *rebalance.Report) {
	m.PassesTotal.Inc()
	m.ItemsRelocatedTotal.Add(float64(r.Moved))
	m.RelocationPlanSize.Set(float64(r.Plan.Len()))
	m.ExpectedRelocations.Set(r.Expected)
	m.RingLabels.Set(float64(r.Ring.Len()))

	// shards that were removed in this pass drop out of the vector
	for id := range r.Before {
		if _, ok := r.After[id]; !ok {
			m.ShardItems.DeleteLabelValues(string(id))
		}
	}
	for id, n := range r.After {
		m.ShardItems.WithLabelValues(string(id)).Set(float64(n))
	}
}

var _ rebalance.Observer = (*Metrics)(nil)
