package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Dispatch loop
	actionsApplied  *prometheus.CounterVec
	actionsRejected *prometheus.CounterVec
	reduceDuration  prometheus.Histogram
	stateSeq        prometheus.Gauge
	chainLength     prometheus.Gauge
	heldEntries     prometheus.Gauge

	// Observers
	observers prometheus.Gauge
	ticks     prometheus.Counter

	// Scheduler
	pendingValidations prometheus.Gauge
	pendingOutcomes    *prometheus.CounterVec
	schedulerTick      prometheus.Histogram
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with its
// own registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_applied_total",
				Help:      "Actions applied by the dispatch loop",
			},
			[]string{"type"},
		),
		actionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_rejected_total",
				Help:      "Action submissions refused by the queue",
			},
			[]string{"reason"},
		),
		reduceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reduce_duration_seconds",
				Help:      "Time to reduce, persist and publish one action",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		stateSeq: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_seq",
				Help:      "Sequence number of the published state snapshot",
			},
		),
		chainLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chain_length",
				Help:      "Number of entries on the source chain",
			},
		),
		heldEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "held_entries",
				Help:      "Number of addresses held in the local DHT shard",
			},
		),
		observers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "observers",
				Help:      "Registered observers",
			},
		),
		ticks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Ticks delivered to observers",
			},
		),
		pendingValidations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_validations",
				Help:      "Queued pending validations",
			},
		),
		pendingOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_validation_outcomes_total",
				Help:      "Outcomes of pending validation retries",
			},
			[]string{"outcome"},
		),
		schedulerTick: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_seconds",
				Help:      "Duration of one maintenance tick",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(
		m.actionsApplied,
		m.actionsRejected,
		m.reduceDuration,
		m.stateSeq,
		m.chainLength,
		m.heldEntries,
		m.observers,
		m.ticks,
		m.pendingValidations,
		m.pendingOutcomes,
		m.schedulerTick,
	)
	return m
}

func (m *PrometheusMetrics) IncActionsApplied(actionType string) {
	m.actionsApplied.WithLabelValues(actionType).Inc()
}

func (m *PrometheusMetrics) IncActionsRejected(reason string) {
	m.actionsRejected.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) ObserveReduceDuration(d time.Duration) {
	m.reduceDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetStateSeq(seq int64) {
	m.stateSeq.Set(float64(seq))
}

func (m *PrometheusMetrics) SetChainLength(n int) {
	m.chainLength.Set(float64(n))
}

func (m *PrometheusMetrics) SetHeldEntries(n int) {
	m.heldEntries.Set(float64(n))
}

func (m *PrometheusMetrics) SetObservers(n int) {
	m.observers.Set(float64(n))
}

func (m *PrometheusMetrics) AddTicks(n int) {
	m.ticks.Add(float64(n))
}

func (m *PrometheusMetrics) SetPendingValidations(n int) {
	m.pendingValidations.Set(float64(n))
}

func (m *PrometheusMetrics) IncPendingOutcome(outcome string) {
	m.pendingOutcomes.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ObserveSchedulerTick(d time.Duration) {
	m.schedulerTick.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns a typed HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

var _ Metrics = (*PrometheusMetrics)(nil)
