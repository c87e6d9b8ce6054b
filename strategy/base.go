package strategy

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/internal/metrics"
	"github.com/arloliu/meshpart/types"
)

// Window decisions, used as metric labels and in diagnostics.
const (
	decisionSingleProcess  = "single_process"
	decisionAlreadySplit   = "already_split"
	decisionBelowThreshold = "below_threshold"
	decisionBalanced       = "balanced"
	decisionSplit          = "split"
	decisionRepartition    = "repartition"
)

// base holds the state shared by all strategies: the mesh binding, the
// committed and staged hierarchies, the assignment, the process map and the ratchet.
type base struct {
	name  string
	world types.Communicator
	cfg   config

	mg  types.MultiGrid
	pos types.PositionMap

	hierarchy *types.ProcessHierarchy
	next      *types.ProcessHierarchy

	assignment *types.PartitionAssignment
	procMap    []int

	// highest hierarchy level already redistributed, agreed on by all processes
	ratchet int
}

func newBase(name string, world types.Communicator, opts []Option) base {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = logging.OrNop(cfg.logger)
	cfg.metrics = metrics.OrNop(cfg.metrics)

	return base{
		name:       name,
		world:      world,
		cfg:        cfg,
		hierarchy:  types.NewRootHierarchy(world.Rank(), world.Size()),
		assignment: types.NewPartitionAssignment(),
	}
}

// Name returns the strategy name.
func (b *base) Name() string { return b.name }

// SetMesh binds the strategy to a mesh and its vertex coordinates.
func (b *base) SetMesh(mg types.MultiGrid, pos types.PositionMap) {
	b.mg = mg
	b.pos = pos
}

// HasMesh reports whether a mesh is bound.
func (b *base) HasMesh() bool { return b.mg != nil && b.pos != nil }

// SetProcessHierarchy replaces the committed hierarchy. A nil hierarchy resets to the root level.
func (b *base) SetProcessHierarchy(h *types.ProcessHierarchy) {
	if h == nil || h.Empty() {
		h = types.NewRootHierarchy(b.world.Rank(), b.world.Size())
	}
	b.hierarchy = h
}

// ProcessHierarchy returns the committed hierarchy.
func (b *base) ProcessHierarchy() *types.ProcessHierarchy { return b.hierarchy }

// SetNextProcessHierarchy stages h for the next Partition call.
func (b *base) SetNextProcessHierarchy(h *types.ProcessHierarchy) { b.next = h }

// NextProcessHierarchy returns the staged hierarchy or nil.
func (b *base) NextProcessHierarchy() *types.ProcessHierarchy { return b.next }

// SetVerbose toggles info level window diagnostics.
func (b *base) SetVerbose(verbose bool) { b.cfg.verbose = verbose }

// PartitionAssignment returns the assignment of the last Partition call.
func (b *base) PartitionAssignment() *types.PartitionAssignment { return b.assignment }

// ProcessMap returns a copy of the process map of the last Partition call.
func (b *base) ProcessMap() []int { return slices.Clone(b.procMap) }

// Ratchet returns the highest hierarchy level already redistributed.
func (b *base) Ratchet() int { return b.ratchet }

// activeHierarchy returns the staged hierarchy if present, else the committed one.
func (b *base) activeHierarchy() *types.ProcessHierarchy {
	if b.next != nil && !b.next.Empty() {
		return b.next
	}

	return b.hierarchy
}

// globalNumLevels returns the largest number of grid levels held by any process.
func (b *base) globalNumLevels(ctx context.Context) (int, error) {
	n, err := b.world.AllReduce(ctx, float64(b.mg.NumLevels()), types.ReduceMax)
	if err != nil {
		return 0, fmt.Errorf("failed to agree on number of grid levels: %w", err)
	}

	return int(n), nil
}

// requireMesh fails on every process when any process has no mesh bound.
// It is the first collective of every strategy operation.
func (b *base) requireMesh(ctx context.Context) error {
	missing := 0.0
	if !b.HasMesh() {
		missing = 1
	}

	anyMissing, err := b.world.AllReduce(ctx, missing, types.ReduceMax)
	if err != nil {
		return fmt.Errorf("failed to check mesh binding: %w", err)
	}
	if anyMissing == 0 {
		return nil
	}
	if missing > 0 {
		return types.ErrMeshNotSet
	}

	return fmt.Errorf("%w: on at least one other process", types.ErrMeshNotSet)
}

// begin validates the binding, resets the partition state and returns the
// hierarchy and number of grid levels shared by all processes.
func (b *base) begin(ctx context.Context, baseLevel int) (*types.ProcessHierarchy, int, error) {
	if err := b.requireMesh(ctx); err != nil {
		return nil, 0, err
	}

	b.assignment.Clear()
	b.procMap = nil

	numLevels, err := b.globalNumLevels(ctx)
	if err != nil {
		return nil, 0, err
	}

	for lvl := 0; lvl < min(baseLevel, numLevels); lvl++ {
		b.assignment.AssignAll(b.mg.Elements(lvl), 0)
	}

	return b.activeHierarchy(), numLevels, nil
}

// finish completes a Partition call on every process.
//
// Every process runs the same two reductions regardless of what it decided
// locally: one folds the process map check, one agrees on the ratchet. The
// staged hierarchy is committed only if no process failed.
func (b *base) finish(ctx context.Context, localRatchet int) error {
	failed := 0.0
	if len(b.procMap) == 0 && b.assignment.NumPartitions() > 0 {
		if b.assignment.NumPartitions() == 1 {
			b.procMap = []int{b.world.Rank()}
		} else {
			failed = 1
		}
	}

	anyFailed, err := b.world.AllReduce(ctx, failed, types.ReduceMax)
	if err != nil {
		return fmt.Errorf("failed to check process maps: %w", err)
	}
	if anyFailed > 0 {
		b.cfg.logger.Error("partition produced partitions without process map",
			"strategy", b.name,
			"rank", b.world.Rank(),
			"partitions", b.assignment.NumPartitions(),
		)

		return fmt.Errorf("%w: %d partitions, empty process map on at least one process",
			types.ErrProcessMapMismatch, b.assignment.NumPartitions())
	}

	agreed, err := b.world.AllReduce(ctx, float64(localRatchet), types.ReduceMax)
	if err != nil {
		return fmt.Errorf("failed to synchronize ratchet: %w", err)
	}
	b.ratchet = max(b.ratchet, int(agreed))
	b.cfg.metrics.RecordRatchet(b.ratchet)

	if b.next != nil {
		b.hierarchy = b.next
		b.next = nil
	}

	return nil
}

// diag logs a window decision and counts it.
func (b *base) diag(decision string, w window, keysAndValues ...any) {
	b.cfg.metrics.RecordWindowDecision(b.name, decision)

	kv := append([]any{
		"strategy", b.name,
		"rank", b.world.Rank(),
		"hlevel", w.hlevel,
		"minLevel", w.minLvl,
		"maxLevel", w.maxLvl,
	}, keysAndValues...)

	msg := "window " + decision
	switch decision {
	case decisionAlreadySplit:
		msg = "hierarchy level already redistributed, keeping elements local"
	case decisionBelowThreshold:
		msg = "too few elements per process, keeping elements local"
	}

	if b.cfg.verbose {
		b.cfg.logger.Info(msg, kv...)
	} else {
		b.cfg.logger.Debug(msg, kv...)
	}
}

// assignWindow assigns every element of the window to partition.
func (b *base) assignWindow(w window, partition int) {
	for lvl := w.minLvl; lvl <= w.maxLvl; lvl++ {
		b.assignment.AssignAll(b.mg.Elements(lvl), partition)
	}
}

// assignRemaining assigns partition 0 to every element at or above baseLevel
// that no window reached, such as elements whose parent is not held locally.
func (b *base) assignRemaining(baseLevel, numLevels int) {
	for lvl := max(baseLevel, 0); lvl < numLevels; lvl++ {
		for _, e := range b.mg.Elements(lvl) {
			if _, ok := b.assignment.Partition(e); !ok {
				b.assignment.Assign(e, 0)
			}
		}
	}
}

// postProcess runs the sibling clustering and downward propagation passes on a split window.
func (b *base) postProcess(w window) {
	if b.cfg.clusteredSiblings {
		clusterSiblings(b.mg, b.assignment, w.minLvl)
	}
	propagateToChildren(b.mg, b.assignment, w.minLvl, w.maxLvl)
}
