package meshpart

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/meshpart/internal/hooks"
	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/internal/metrics"
	"github.com/arloliu/meshpart/redist"
	"github.com/arloliu/meshpart/strategy"
	"github.com/arloliu/meshpart/types"
)

// Rebalance reasons, used as metric labels.
const (
	reasonHierarchyChange = "hierarchy_change"
	reasonLowQuality      = "low_quality"
	reasonSkipped         = "skipped"
)

// LoadBalancer decides when a distributed multigrid needs re-partitioning and drives
// the partitioner and the redistribution collaborator.
//
// Every method taking a context is collective: all processes of the world
// communicator call it in the same order. A LoadBalancer is used by a single
// goroutine of its process; QualityRecords may be read concurrently.
type LoadBalancer struct {
	cfg   Config
	world Communicator

	partitioner   Partitioner
	redistributor Redistributor
	hooks         Hooks
	metrics       MetricsCollector
	logger        Logger

	mg  MultiGrid
	pos PositionMap

	balanceThreshold float64
	elementThreshold int
	baseLevel        int

	mu      sync.RWMutex
	records []QualityRecord
}

// NewPartitioner builds the strategy named by cfg.Strategy with the options cfg describes.
//
// Parameters:
//   - cfg: Configuration naming the strategy and its tunables
//   - world: Communicator spanning every process
//   - logger: Logger for partition diagnostics (nil for none)
//   - m: Metrics collector (nil for none)
//
// Returns:
//   - Partitioner: The configured strategy
//   - error: ErrConfiguration for unknown strategy names
func NewPartitioner(cfg *Config, world Communicator, logger Logger, m MetricsCollector) (Partitioner, error) {
	opts := append(cfg.StrategyOptions(),
		strategy.WithLogger(logging.OrNop(logger)),
		strategy.WithMetrics(metrics.OrNop(m)),
	)

	return strategy.New(cfg.Strategy, world, opts...)
}

// NewLoadBalancer creates a load balancer for the calling process.
//
// The configuration is filled with defaults and validated. Without WithPartitioner
// the strategy named by cfg.Strategy is built; without WithRedistributor elements
// are only assigned, never moved.
//
// Parameters:
//   - cfg: Configuration (defaults are applied in place)
//   - world: Communicator spanning every process
//   - opts: Optional dependencies
//
// Returns:
//   - *LoadBalancer: Ready to use after SetMesh
//   - error: Invalid configuration or missing communicator
//
// Example:
//
//	cfg := meshpart.DefaultConfig()
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithRedistributor(r))
//	if err != nil {
//	    return err
//	}
//	lb.SetMesh(grid, grid)
//	changed, err := lb.Rebalance(ctx)
func NewLoadBalancer(cfg *Config, world Communicator, opts ...Option) (*LoadBalancer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrConfiguration)
	}
	if world == nil {
		return nil, ErrCommunicatorRequired
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &balancerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := metrics.OrNop(options.metrics)
	loggerInstance := logging.OrNop(options.logger)

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	partitioner := options.partitioner
	if partitioner == nil {
		p, err := NewPartitioner(cfg, world, loggerInstance, metricsCollector)
		if err != nil {
			return nil, err
		}
		partitioner = p
	} else if cfg.Verbose {
		partitioner.SetVerbose(true)
	}

	redistributor := options.redistributor
	if redistributor == nil {
		redistributor = redist.NewNop()
	}

	return &LoadBalancer{
		cfg:              *cfg,
		world:            world,
		partitioner:      partitioner,
		redistributor:    redistributor,
		hooks:            hooks.OrNop(options.hooks),
		metrics:          metricsCollector,
		logger:           loggerInstance,
		balanceThreshold: cfg.BalanceThreshold,
		elementThreshold: cfg.ElementThreshold,
		baseLevel:        cfg.BaseLevel,
	}, nil
}

// SetMesh binds the balancer and its partitioner to a mesh and its vertex coordinates.
func (lb *LoadBalancer) SetMesh(mg MultiGrid, pos PositionMap) {
	lb.mg = mg
	lb.pos = pos
	lb.partitioner.SetMesh(mg, pos)
}

// SetPartitioner replaces the partitioning strategy.
//
// The new strategy inherits the mesh binding and both the current and the
// staged process hierarchy.
//
// Returns:
//   - error: ErrPartitionerRequired if p is nil
func (lb *LoadBalancer) SetPartitioner(p Partitioner) error {
	if p == nil {
		return ErrPartitionerRequired
	}

	old := lb.partitioner
	p.SetProcessHierarchy(old.ProcessHierarchy())
	p.SetNextProcessHierarchy(old.NextProcessHierarchy())
	if lb.mg != nil {
		p.SetMesh(lb.mg, lb.pos)
	}
	if lb.cfg.Verbose {
		p.SetVerbose(true)
	}
	lb.partitioner = p

	lb.logger.Debug("partitioner replaced", "from", old.Name(), "to", p.Name())

	return nil
}

// Partitioner returns the active partitioning strategy.
func (lb *LoadBalancer) Partitioner() Partitioner { return lb.partitioner }

// SetNextProcessHierarchy stages h; it becomes current after the next rebalance.
func (lb *LoadBalancer) SetNextProcessHierarchy(h *ProcessHierarchy) {
	lb.partitioner.SetNextProcessHierarchy(h)
}

// ProcessHierarchy returns the current process hierarchy.
func (lb *LoadBalancer) ProcessHierarchy() *ProcessHierarchy {
	return lb.partitioner.ProcessHierarchy()
}

// SetBalanceThreshold sets the quality below which Rebalance re-partitions.
func (lb *LoadBalancer) SetBalanceThreshold(q float64) { lb.balanceThreshold = q }

// BalanceThreshold returns the quality below which Rebalance re-partitions.
func (lb *LoadBalancer) BalanceThreshold() float64 { return lb.balanceThreshold }

// SetElementThreshold sets the minimum number of elements per target process
// for a hierarchy level to be split.
func (lb *LoadBalancer) SetElementThreshold(n int) { lb.elementThreshold = n }

// ElementThreshold returns the minimum number of elements per target process.
func (lb *LoadBalancer) ElementThreshold() int { return lb.elementThreshold }

// SetBaseLevel sets the lowest grid level that is partitioned.
func (lb *LoadBalancer) SetBaseLevel(level int) { lb.baseLevel = level }

// SetBalanceWeights passes element weights to the partitioner.
//
// Returns:
//   - error: ErrUnsupportedOperation if the partitioner ignores balance weights
func (lb *LoadBalancer) SetBalanceWeights(w BalanceWeights) error {
	if err := types.RequireBalanceWeights(lb.partitioner); err != nil {
		return err
	}
	lb.partitioner.SetBalanceWeights(w)

	return nil
}

// SetConnectionWeights passes connection weights to the partitioner.
//
// Returns:
//   - error: ErrUnsupportedOperation if the partitioner ignores connection weights
func (lb *LoadBalancer) SetConnectionWeights(w ConnectionWeights) error {
	if err := types.RequireConnectionWeights(lb.partitioner); err != nil {
		return err
	}
	lb.partitioner.SetConnectionWeights(w)

	return nil
}

// Rebalance re-partitions the mesh if a hierarchy change is staged or the
// distribution quality dropped below the balance threshold.
//
// The decision is identical on every process. After partitioning, elements are
// handed to the redistributor and a quality record labeled "rebalance" is stored.
//
// Parameters:
//   - ctx: Context for the collective operations
//
// Returns:
//   - bool: true if elements were re-partitioned, false if no rebalance was needed
//   - error: Configuration errors from the partitioner (matching ErrConfiguration),
//     ErrHierarchyMismatch, or communication and redistribution failures
func (lb *LoadBalancer) Rebalance(ctx context.Context) (bool, error) {
	start := time.Now()

	staged, err := lb.syncStaged(ctx)
	if err != nil {
		return false, lb.fail(ctx, reasonSkipped, err)
	}

	if lb.cfg.VerifyHierarchy == nil || *lb.cfg.VerifyHierarchy {
		if err := lb.verifyHierarchy(ctx); err != nil {
			return false, lb.fail(ctx, reasonSkipped, err)
		}
	}

	reason := reasonHierarchyChange
	if !staged {
		q, err := lb.partitioner.EstimateDistributionQuality(ctx, nil)
		if err != nil {
			return false, lb.fail(ctx, reasonLowQuality, fmt.Errorf("failed to estimate distribution quality: %w", err))
		}
		lb.metrics.RecordDistributionQuality(q)

		if q >= lb.balanceThreshold {
			lb.metrics.RecordRebalanceAttempt(reasonSkipped, true)
			lb.logger.Debug("no rebalance needed",
				"quality", q,
				"threshold", lb.balanceThreshold,
			)

			return false, nil
		}
		reason = reasonLowQuality
		lb.logger.Info("distribution quality below threshold, rebalancing",
			"quality", q,
			"threshold", lb.balanceThreshold,
			"strategy", lb.partitioner.Name(),
		)
	} else {
		lb.logger.Info("process hierarchy change staged, rebalancing", "strategy", lb.partitioner.Name())
	}

	if err := lb.partitioner.Partition(ctx, lb.baseLevel, lb.elementThreshold); err != nil {
		return false, lb.fail(ctx, reason, fmt.Errorf("partition failed: %w", err))
	}

	assignment := lb.partitioner.PartitionAssignment()
	processMap := lb.partitioner.ProcessMap()
	if err := lb.redistributor.Redistribute(ctx, assignment, processMap); err != nil {
		return false, lb.fail(ctx, reason, fmt.Errorf("redistribution failed: %w", err))
	}

	record, err := lb.CreateQualityRecord(ctx, "rebalance")
	if err != nil {
		return false, lb.fail(ctx, reason, err)
	}

	lb.metrics.RecordRebalanceDuration(time.Since(start).Seconds(), reason)
	lb.metrics.RecordRebalanceAttempt(reason, true)
	lb.logger.Info("rebalance completed",
		"reason", reason,
		"quality", record.MinQuality,
		"processMap", processMap,
		"duration", time.Since(start),
	)

	if err := lb.hooks.OnRebalanced(ctx, record); err != nil {
		lb.logger.Error("OnRebalanced hook failed", "error", err)
	}

	return true, nil
}

// CreateQualityRecord estimates the distribution quality and appends a record to the history.
//
// Collective over the world communicator.
//
// Parameters:
//   - ctx: Context for the collective operations
//   - label: Free text stored with the record
//
// Returns:
//   - QualityRecord: The new record
//   - error: ErrMeshNotSet or communication failure
func (lb *LoadBalancer) CreateQualityRecord(ctx context.Context, label string) (QualityRecord, error) {
	var perLevel []float64
	q, err := lb.partitioner.EstimateDistributionQuality(ctx, &perLevel)
	if err != nil {
		return QualityRecord{}, fmt.Errorf("failed to create quality record: %w", err)
	}

	record := QualityRecord{
		Label:          label,
		Timestamp:      time.Now(),
		LevelQualities: perLevel,
		MinQuality:     q,
	}

	lb.metrics.RecordDistributionQuality(q)
	for lvl, lq := range perLevel {
		if types.IsDefinedQuality(lq) {
			lb.metrics.RecordLevelQuality(lvl, lq)
		}
	}

	lb.mu.Lock()
	lb.records = append(lb.records, record)
	if excess := len(lb.records) - lb.cfg.MaxQualityRecords; excess > 0 {
		lb.records = slices.Delete(lb.records, 0, excess)
	}
	lb.mu.Unlock()

	return record, nil
}

// QualityRecords returns a copy of the quality history, oldest first.
func (lb *LoadBalancer) QualityRecords() []QualityRecord {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return slices.Clone(lb.records)
}

// PrintQualityRecords writes the quality history in human-readable form.
//
// The format is meant for people and may change.
func (lb *LoadBalancer) PrintQualityRecords(w io.Writer) error {
	records := lb.QualityRecords()

	if _, err := fmt.Fprintf(w, "quality records (%d, strategy %s):\n", len(records), lb.partitioner.Name()); err != nil {
		return err
	}
	for i, rec := range records {
		if _, err := fmt.Fprintf(w, "%3d  %s  %s\n", i, rec.Timestamp.Format(time.TimeOnly), rec); err != nil {
			return err
		}
	}

	return nil
}

// Flags reduced by syncStaged; a missing mesh outranks a staged hierarchy.
const (
	flagStaged      = 1
	flagMeshMissing = 2
)

// syncStaged reports whether any process staged a hierarchy change.
//
// The same reduction checks the mesh binding: if any process has no mesh,
// every process fails with ErrMeshNotSet.
func (lb *LoadBalancer) syncStaged(ctx context.Context) (bool, error) {
	local := 0.0
	if next := lb.partitioner.NextProcessHierarchy(); next != nil && !next.Empty() {
		local = flagStaged
	}
	if !lb.partitioner.HasMesh() {
		local = flagMeshMissing
	}

	agreed, err := lb.world.AllReduce(ctx, local, types.ReduceMax)
	if err != nil {
		return false, fmt.Errorf("failed to agree on staged hierarchy: %w", err)
	}

	if agreed >= flagMeshMissing {
		if local == flagMeshMissing {
			return false, ErrMeshNotSet
		}

		return false, fmt.Errorf("%w: on at least one other process", ErrMeshNotSet)
	}

	return agreed >= flagStaged, nil
}

// verifyHierarchy checks that every process would partition with the same hierarchy.
func (lb *LoadBalancer) verifyHierarchy(ctx context.Context) error {
	h := lb.partitioner.NextProcessHierarchy()
	if h == nil || h.Empty() {
		h = lb.partitioner.ProcessHierarchy()
	}
	fp := float64(h.Fingerprint())

	lo, err := lb.world.AllReduce(ctx, fp, types.ReduceMin)
	if err != nil {
		return fmt.Errorf("failed to verify process hierarchy: %w", err)
	}
	hi, err := lb.world.AllReduce(ctx, fp, types.ReduceMax)
	if err != nil {
		return fmt.Errorf("failed to verify process hierarchy: %w", err)
	}

	if lo != hi {
		lb.logger.Error("process hierarchy differs between processes",
			"rank", lb.world.Rank(),
			"hierarchy", h.String(),
		)

		return fmt.Errorf("%w: fingerprints range from %.0f to %.0f", ErrHierarchyMismatch, lo, hi)
	}

	return nil
}

// fail records a failed rebalance and runs the error hook.
func (lb *LoadBalancer) fail(ctx context.Context, reason string, err error) error {
	lb.metrics.RecordRebalanceAttempt(reason, false)
	lb.logger.Error("rebalance failed", "reason", reason, "error", err)

	if hookErr := lb.hooks.OnError(ctx, err); hookErr != nil {
		lb.logger.Error("OnError hook failed", "error", hookErr)
	}

	return err
}
