package strategy

import "github.com/arloliu/meshpart/types"

const (
	defaultChildWeight        = 0.0
	defaultImbalanceTolerance = 0.0
)

// config holds the settings shared by all strategies.
type config struct {
	logger            types.Logger
	metrics           types.MetricsCollector
	clusteredSiblings bool
	verbose           bool

	// graph strategy only
	childWeight        float64
	imbalanceTolerance float64
}

func defaultConfig() config {
	return config{
		clusteredSiblings:  true,
		childWeight:        defaultChildWeight,
		imbalanceTolerance: defaultImbalanceTolerance,
	}
}

// Option configures a strategy.
type Option func(*config)

// WithLogger sets the logger for partition diagnostics.
func WithLogger(logger types.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClusteredSiblings controls whether all children of a parent are forced into
// the partition of the first child (default: true).
//
// Keeping siblings together keeps hanging-node constraints on one process and
// allows the parent to be coarsened later without communication.
func WithClusteredSiblings(enabled bool) Option {
	return func(c *config) {
		c.clusteredSiblings = enabled
	}
}

// WithVerbose logs window decisions at info instead of debug level.
func WithVerbose(verbose bool) Option {
	return func(c *config) {
		c.verbose = verbose
	}
}

// WithChildWeight adds weight*len(children) to the load of every element.
//
// Only used by GraphPartitioner. Refined elements carry the work of their
// children on finer grid levels; a positive child weight accounts for that.
// Negative values are treated as 0.
func WithChildWeight(weight float64) Option {
	return func(c *config) {
		c.childWeight = max(weight, 0)
	}
}

// WithImbalanceTolerance skips re-partitioning of an already distributed level
// while min/max of the per-process loads is at least 1-tolerance.
//
// Only used by GraphPartitioner. The value is clamped to [0, 1]; 0 (default)
// re-partitions whenever asked to.
func WithImbalanceTolerance(tolerance float64) Option {
	return func(c *config) {
		c.imbalanceTolerance = min(max(tolerance, 0), 1)
	}
}
