// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/meshpart/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the default collector of every component.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	lb, err := meshpart.NewLoadBalancer(cfg, world, meshpart.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// BalancerMetrics implementation

// RecordRebalanceDuration discards the rebalance duration metric.
func (n *NopMetrics) RecordRebalanceDuration(_ /* duration */ float64, _ /* reason */ string) {
	// No-op
}

// RecordRebalanceAttempt discards the rebalance attempt metric.
func (n *NopMetrics) RecordRebalanceAttempt(_ /* reason */ string, _ /* success */ bool) {
	// No-op
}

// RecordDistributionQuality discards the quality gauge.
func (n *NopMetrics) RecordDistributionQuality(_ /* quality */ float64) {
	// No-op
}

// RecordLevelQuality discards the per-level quality gauge.
func (n *NopMetrics) RecordLevelQuality(_ /* level */ int, _ /* quality */ float64) {
	// No-op
}

// PartitionerMetrics implementation

// RecordPartitionDuration discards the partition duration metric.
func (n *NopMetrics) RecordPartitionDuration(_ /* strategy */ string, _ /* duration */ float64) {
	// No-op
}

// RecordWindowDecision discards the window decision counter.
func (n *NopMetrics) RecordWindowDecision(_ /* strategy */, _ /* decision */ string) {
	// No-op
}

// RecordRatchet discards the ratchet gauge.
func (n *NopMetrics) RecordRatchet(_ /* level */ int) {
	// No-op
}

// CollectiveMetrics implementation

// RecordCollectiveDuration discards the collective latency metric.
func (n *NopMetrics) RecordCollectiveDuration(_ /* transport */, _ /* op */ string, _ /* duration */ float64) {
	// No-op
}

// RecordCollectiveFailure discards the collective failure counter.
func (n *NopMetrics) RecordCollectiveFailure(_ /* transport */, _ /* op */ string) {
	// No-op
}

// RedistributionMetrics implementation

// RecordMigrationPlan discards the migration plan metric.
func (n *NopMetrics) RecordMigrationPlan(_ /* targets */, _ /* elements */ int) {
	// No-op
}

// RecordKVOperationDuration discards the KV latency metric.
func (n *NopMetrics) RecordKVOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// OrNop returns m, or a NopMetrics when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNop()
	}

	return m
}
