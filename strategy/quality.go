package strategy

import (
	"context"
	"fmt"

	"github.com/arloliu/meshpart/types"
)

// EstimateDistributionQuality returns the global minimum of the per-level quality.
//
// For every grid level, quality is min/max of the non-ghost element counts of the
// processes holding that level. Levels owned by a single process have quality 1.
// Processes outside a level's process set record UndefinedQuality for it.
//
// The call is collective over the world communicator and does not modify any state.
func (b *base) EstimateDistributionQuality(ctx context.Context, perLevel *[]float64) (float64, error) {
	if err := b.requireMesh(ctx); err != nil {
		return types.UndefinedQuality, err
	}

	h := b.activeHierarchy()
	numLevels, err := b.globalNumLevels(ctx)
	if err != nil {
		return types.UndefinedQuality, err
	}

	qualities := make([]float64, numLevels)
	localMin := 1.0
	for lvl := range numLevels {
		hl := h.HierarchyLevelFromGridLevel(lvl)
		if h.NumGlobalProcsInvolved(hl) <= 1 {
			qualities[lvl] = 1
			continue
		}

		levelComm := h.GlobalCommunicator(hl, b.world)
		if !types.IsMember(levelComm) {
			qualities[lvl] = types.UndefinedQuality
			continue
		}

		owned := float64(types.CountOwned(b.mg, lvl))
		minCount, err := levelComm.AllReduce(ctx, owned, types.ReduceMin)
		if err != nil {
			return types.UndefinedQuality, fmt.Errorf("failed to reduce minimum count of level %d: %w", lvl, err)
		}
		maxCount, err := levelComm.AllReduce(ctx, owned, types.ReduceMax)
		if err != nil {
			return types.UndefinedQuality, fmt.Errorf("failed to reduce maximum count of level %d: %w", lvl, err)
		}

		q := types.Quality(minCount, maxCount)
		qualities[lvl] = q
		if types.IsDefinedQuality(q) {
			localMin = min(localMin, q)
		}
	}

	global, err := b.world.AllReduce(ctx, localMin, types.ReduceMin)
	if err != nil {
		return types.UndefinedQuality, fmt.Errorf("failed to reduce global quality: %w", err)
	}

	if perLevel != nil {
		*perLevel = qualities
	}

	return global, nil
}
