package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/meshpart/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// collector that is never used leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	rebalanceDuration *prometheus.HistogramVec
	rebalanceAttempts *prometheus.CounterVec
	quality           prometheus.Gauge
	levelQuality      *prometheus.GaugeVec

	partitionDuration *prometheus.HistogramVec
	windowDecisions   *prometheus.CounterVec
	ratchet           prometheus.Gauge

	collectiveDuration *prometheus.HistogramVec
	collectiveFailures *prometheus.CounterVec

	migrationTargets   prometheus.Histogram
	migratedElements   prometheus.Counter
	kvOperationLatency *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "meshpart" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "meshpart"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.rebalanceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "rebalance_duration_seconds",
			Help:      "Duration of rebalance operations by reason.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		}, []string{"reason"})

		p.rebalanceAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "rebalance_attempts_total",
			Help:      "Rebalance attempts by reason and result.",
		}, []string{"reason", "result"})

		p.quality = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "distribution_quality",
			Help:      "Latest global minimum distribution quality (-1 when undefined).",
		})

		p.levelQuality = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "level_quality",
			Help:      "Latest distribution quality per grid level (-1 when undefined).",
		}, []string{"level"})

		p.partitionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "partitioner",
			Name:      "partition_duration_seconds",
			Help:      "Duration of partition calls by strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		}, []string{"strategy"})

		p.windowDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "partitioner",
			Name:      "window_decisions_total",
			Help:      "Hierarchy level windows by strategy and decision.",
		}, []string{"strategy", "decision"})

		p.ratchet = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "partitioner",
			Name:      "redistributed_hierarchy_level",
			Help:      "Highest hierarchy level already redistributed.",
		})

		p.collectiveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "collective",
			Name:      "duration_seconds",
			Help:      "Latency of collective operations by transport and op.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 3, 10),
		}, []string{"transport", "op"})

		p.collectiveFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "collective",
			Name:      "failures_total",
			Help:      "Failed collective operations by transport and op.",
		}, []string{"transport", "op"})

		p.migrationTargets = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "redistribution",
			Name:      "targets",
			Help:      "Number of target processes per migration plan.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		})

		p.migratedElements = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "redistribution",
			Name:      "elements_total",
			Help:      "Elements handed to other processes.",
		})

		p.kvOperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "redistribution",
			Name:      "kv_operation_seconds",
			Help:      "Latency of NATS KV operations by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}, []string{"operation"})

		p.reg.MustRegister(
			p.rebalanceDuration, p.rebalanceAttempts, p.quality, p.levelQuality,
			p.partitionDuration, p.windowDecisions, p.ratchet,
			p.collectiveDuration, p.collectiveFailures,
			p.migrationTargets, p.migratedElements, p.kvOperationLatency,
		)
	})
}

// RecordRebalanceDuration observes a rebalance duration.
func (p *PrometheusCollector) RecordRebalanceDuration(duration float64, reason string) {
	p.ensureRegistered()
	p.rebalanceDuration.WithLabelValues(reason).Observe(duration)
}

// RecordRebalanceAttempt counts a rebalance attempt.
func (p *PrometheusCollector) RecordRebalanceAttempt(reason string, success bool) {
	p.ensureRegistered()
	result := "failure"
	if success {
		result = "success"
	}
	p.rebalanceAttempts.WithLabelValues(reason, result).Inc()
}

// RecordDistributionQuality sets the global quality gauge.
func (p *PrometheusCollector) RecordDistributionQuality(quality float64) {
	p.ensureRegistered()
	p.quality.Set(quality)
}

// RecordLevelQuality sets the quality gauge of one grid level.
func (p *PrometheusCollector) RecordLevelQuality(level int, quality float64) {
	p.ensureRegistered()
	p.levelQuality.WithLabelValues(strconv.Itoa(level)).Set(quality)
}

// RecordPartitionDuration observes a partition duration.
func (p *PrometheusCollector) RecordPartitionDuration(strategy string, duration float64) {
	p.ensureRegistered()
	p.partitionDuration.WithLabelValues(strategy).Observe(duration)
}

// RecordWindowDecision counts a window decision.
func (p *PrometheusCollector) RecordWindowDecision(strategy, decision string) {
	p.ensureRegistered()
	p.windowDecisions.WithLabelValues(strategy, decision).Inc()
}

// RecordRatchet sets the ratchet gauge.
func (p *PrometheusCollector) RecordRatchet(level int) {
	p.ensureRegistered()
	p.ratchet.Set(float64(level))
}

// RecordCollectiveDuration observes a collective latency.
func (p *PrometheusCollector) RecordCollectiveDuration(transport, op string, duration float64) {
	p.ensureRegistered()
	p.collectiveDuration.WithLabelValues(transport, op).Observe(duration)
}

// RecordCollectiveFailure counts a failed collective.
func (p *PrometheusCollector) RecordCollectiveFailure(transport, op string) {
	p.ensureRegistered()
	p.collectiveFailures.WithLabelValues(transport, op).Inc()
}

// RecordMigrationPlan observes a migration plan.
func (p *PrometheusCollector) RecordMigrationPlan(targets, elements int) {
	p.ensureRegistered()
	p.migrationTargets.Observe(float64(targets))
	p.migratedElements.Add(float64(elements))
}

// RecordKVOperationDuration observes a KV operation latency.
func (p *PrometheusCollector) RecordKVOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.kvOperationLatency.WithLabelValues(operation).Observe(duration)
}
