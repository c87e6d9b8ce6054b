package strategy

import (
	"context"
	"time"

	"github.com/arloliu/meshpart/types"
)

// BisectionName is the name of the coordinate bisection strategy.
const BisectionName = "bisection"

// Bisection partitions each hierarchy level by recursive coordinate bisection
// of the element centers.
//
// Elements are only split the first time a hierarchy level becomes active.
// Levels that were already distributed keep their elements local, so load
// imbalance that develops later is not corrected.
type Bisection struct {
	base
}

var _ types.Partitioner = (*Bisection)(nil)

// NewBisection creates a bisection partitioner for the calling process of world.
//
// Parameters:
//   - world: Communicator over all processes of the run
//   - opts: Optional settings (logger, metrics, sibling clustering)
//
// Returns:
//   - *Bisection: Partitioner with the root hierarchy (0, 1) and ratchet 0
//
// Example:
//
//	p := strategy.NewBisection(world, strategy.WithLogger(logger))
//	p.SetMesh(grid, grid)
//	err := p.Partition(ctx, 0, 1)
func NewBisection(world types.Communicator, opts ...Option) *Bisection {
	return &Bisection{base: newBase(BisectionName, world, opts)}
}

// SupportsBalanceWeights returns false.
func (b *Bisection) SupportsBalanceWeights() bool { return false }

// SupportsConnectionWeights returns false.
func (b *Bisection) SupportsConnectionWeights() bool { return false }

// SetBalanceWeights is a no-op.
func (b *Bisection) SetBalanceWeights(types.BalanceWeights) {}

// SetConnectionWeights is a no-op.
func (b *Bisection) SetConnectionWeights(types.ConnectionWeights) {}

// Partition rebuilds the assignment and process map.
//
// The call is collective over the world communicator. On success a staged
// hierarchy becomes current and the ratchet is raised to the highest hierarchy
// level split by any process.
func (b *Bisection) Partition(ctx context.Context, baseLevel, elementThreshold int) error {
	start := time.Now()
	defer func() {
		b.cfg.metrics.RecordPartitionDuration(b.name, time.Since(start).Seconds())
	}()

	h, numLevels, err := b.begin(ctx, baseLevel)
	if err != nil {
		return err
	}

	startRatchet := b.ratchet
	localRatchet := b.ratchet

	for _, w := range planWindows(h, baseLevel, numLevels) {
		cluster := h.ClusterProcs(w.hlevel)
		if len(cluster) <= 1 {
			b.assignWindow(w, 0)
			b.diag(decisionSingleProcess, w)

			continue
		}

		if w.hlevel <= startRatchet {
			b.assignWindow(w, 0)
			b.diag(decisionAlreadySplit, w, "ratchet", startRatchet)

			continue
		}

		elems := b.mg.Elements(w.minLvl)
		if len(elems)/len(cluster) < elementThreshold {
			b.assignWindow(w, 0)
			b.diag(decisionBelowThreshold, w, "elements", len(elems), "threshold", elementThreshold)

			continue
		}

		parts := SplitByBisection(centers(b.mg, b.pos, elems), len(cluster))
		for i, e := range elems {
			b.assignment.Assign(e, parts[i])
		}
		b.postProcess(w)

		b.procMap = cluster
		localRatchet = max(localRatchet, w.hlevel)
		b.diag(decisionSplit, w, "elements", len(elems), "cluster", cluster)
	}

	b.assignRemaining(baseLevel, numLevels)

	return b.finish(ctx, localRatchet)
}
