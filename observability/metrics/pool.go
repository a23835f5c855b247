package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lootpool/core/events"
)

// PoolMetrics tracks node operations and the pool's draw pipeline.
type PoolMetrics struct {
	calls        *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	events       *prometheus.CounterVec
	reservations prometheus.Gauge
	draws        *prometheus.CounterVec
	stockouts    prometheus.Counter
	drift        prometheus.Counter
	requests     prometheus.Counter
	fulfilled    prometheus.Counter
}

// NewPoolMetrics builds the pool collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	m := newPoolMetrics()
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func newPoolMetrics() *PoolMetrics {
	return &PoolMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "node",
			Name:      "calls_total",
			Help:      "Node operations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lootpool",
			Subsystem: "node",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution of node operations including commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "node",
			Name:      "events_total",
			Help:      "Committed events by type.",
		}, []string{"type"}),
		reservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lootpool",
			Subsystem: "pool",
			Name:      "open_reservations",
			Help:      "Reservations created but not yet cleared or refunded.",
		}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "pool",
			Name:      "draws_total",
			Help:      "Dispensed draws by delivered tier.",
		}, []string{"tier"}),
		stockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "pool",
			Name:      "stockouts_total",
			Help:      "Fulfill calls rejected because no tier could serve a draw.",
		}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "registry",
			Name:      "custody_drift_total",
			Help:      "Tracked assets cleared because the vault no longer held them.",
		}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "randomness",
			Name:      "requests_total",
			Help:      "Randomness requests issued to the oracle.",
		}),
		fulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lootpool",
			Subsystem: "randomness",
			Name:      "fulfillments_total",
			Help:      "Randomness values delivered by the oracle.",
		}),
	}
}

func (m *PoolMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.calls, m.latency, m.events, m.reservations,
		m.draws, m.stockouts, m.drift, m.requests, m.fulfilled,
	}
}

// ObserveCall records the outcome of a node operation.
func (m *PoolMetrics) ObserveCall(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordStockout increments the stockout counter.
func (m *PoolMetrics) RecordStockout() {
	if m == nil {
		return
	}
	m.stockouts.Inc()
}

// Emit implements events.Emitter so the metrics can subscribe to the node's
// committed event stream.
func (m *PoolMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	switch e := evt.(type) {
	case events.ReservationCreated:
		m.reservations.Inc()
	case events.ReservationCleared, events.ReservationRefunded:
		m.reservations.Dec()
	case events.DrawDispensed:
		m.draws.WithLabelValues(strconv.Itoa(int(e.Tier))).Inc()
	case events.CustodyDrift:
		m.drift.Inc()
	case events.RandomnessRequested:
		m.requests.Inc()
	case events.RandomnessFulfilled:
		m.fulfilled.Inc()
	}
}
