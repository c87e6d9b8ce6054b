package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Ranks of an in-process cluster share collectors, so methods must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	BalancerMetrics
	PartitionerMetrics
	CollectiveMetrics
	RedistributionMetrics
}

// BalancerMetrics defines metrics for LoadBalancer operations.
type BalancerMetrics interface {
	// RecordRebalanceDuration records the time taken for a rebalance.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - reason: Rebalance reason ("hierarchy_change", "low_quality")
	RecordRebalanceDuration(duration float64, reason string)

	// RecordRebalanceAttempt records a rebalance attempt (success or failure).
	//
	// Parameters:
	//   - reason: Rebalance reason, "skipped" when quality was acceptable
	//   - success: true if rebalance succeeded, false otherwise
	RecordRebalanceAttempt(reason string, success bool)

	// RecordDistributionQuality sets the latest global minimum quality (gauge).
	RecordDistributionQuality(quality float64)

	// RecordLevelQuality sets the latest quality of one grid level (gauge).
	RecordLevelQuality(level int, quality float64)
}

// PartitionerMetrics defines metrics for partitioning strategies.
type PartitionerMetrics interface {
	// RecordPartitionDuration records the time taken by Partition.
	//
	// Parameters:
	//   - strategy: Strategy name ("bisection", "graph")
	//   - duration: Time taken in seconds
	RecordPartitionDuration(strategy string, duration float64)

	// RecordWindowDecision counts how a hierarchy level window was handled.
	//
	// Parameters:
	//   - strategy: Strategy name
	//   - decision: "single_process", "already_split", "below_threshold", "split", "repartition"
	RecordWindowDecision(strategy, decision string)

	// RecordRatchet sets the highest hierarchy level already redistributed (gauge).
	RecordRatchet(level int)
}

// CollectiveMetrics defines metrics for communicator collectives.
type CollectiveMetrics interface {
	// RecordCollectiveDuration records the latency of one collective.
	//
	// Parameters:
	//   - transport: "local" or "nats"
	//   - op: "min", "max", "sum" or "gather"
	//   - duration: Time taken in seconds
	RecordCollectiveDuration(transport, op string, duration float64)

	// RecordCollectiveFailure counts failed collectives.
	RecordCollectiveFailure(transport, op string)
}

// RedistributionMetrics defines metrics for redistributors.
type RedistributionMetrics interface {
	// RecordMigrationPlan records a published migration plan.
	//
	// Parameters:
	//   - targets: Number of target ranks receiving elements
	//   - elements: Number of elements leaving this process
	RecordMigrationPlan(targets, elements int)

	// RecordKVOperationDuration records NATS KV operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("get", "put", "delete", "watch")
	//   - duration: Time taken in seconds
	RecordKVOperationDuration(operation string, duration float64)
}
