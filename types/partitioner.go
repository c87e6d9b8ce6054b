package types

import (
	"context"
	"fmt"
)

// BalanceWeights assigns a load weight to elements.
type BalanceWeights interface {
	// Weight returns the load of e; non-positive values are treated as 1.
	Weight(e Element) float64
}

// ConnectionWeights assigns a weight to the connection between two neighboring elements.
type ConnectionWeights interface {
	Weight(a, b Element) float64
}

// BalanceWeightsFunc adapts a function to BalanceWeights.
type BalanceWeightsFunc func(e Element) float64

// Weight calls f(e).
func (f BalanceWeightsFunc) Weight(e Element) float64 { return f(e) }

// Partitioner computes which process should own every mesh element.
//
// Implementations are used by one goroutine per process. EstimateDistributionQuality
// and Partition are collective: every process of the run calls them in the same order
// with the same hierarchy staged, and every process receives the same outcome.
//
// Implementations must be deterministic across processes in every decision that
// leads to a collective call.
type Partitioner interface {
	// Name returns a short strategy name used in logs and metrics.
	Name() string

	// SetMesh binds the partitioner to a mesh and its vertex coordinates.
	// Must be called before EstimateDistributionQuality and Partition.
	SetMesh(mg MultiGrid, pos PositionMap)

	// HasMesh reports whether SetMesh was called with a non-nil mesh.
	HasMesh() bool

	// SetProcessHierarchy replaces the current hierarchy without going through partition.
	SetProcessHierarchy(h *ProcessHierarchy)

	// ProcessHierarchy returns the current (committed) hierarchy.
	ProcessHierarchy() *ProcessHierarchy

	// SetNextProcessHierarchy stages a hierarchy that becomes current when the next
	// Partition call succeeds.
	SetNextProcessHierarchy(h *ProcessHierarchy)

	// NextProcessHierarchy returns the staged hierarchy or nil.
	NextProcessHierarchy() *ProcessHierarchy

	// SupportsBalanceWeights reports whether SetBalanceWeights has any effect.
	SupportsBalanceWeights() bool

	// SupportsConnectionWeights reports whether SetConnectionWeights has any effect.
	SupportsConnectionWeights() bool

	// SetBalanceWeights sets element weights; a no-op when unsupported.
	SetBalanceWeights(w BalanceWeights)

	// SetConnectionWeights sets connection weights; a no-op when unsupported.
	SetConnectionWeights(w ConnectionWeights)

	// SetVerbose raises partition diagnostics from debug to info level.
	SetVerbose(verbose bool)

	// EstimateDistributionQuality returns the global minimum of the per-level
	// quality (min/max of owned element counts). When perLevel is non-nil it is
	// filled with one entry per grid level, UndefinedQuality for levels without data.
	EstimateDistributionQuality(ctx context.Context, perLevel *[]float64) (float64, error)

	// Partition rebuilds the partition assignment and process map.
	//
	// Elements below baseLevel are assigned partition 0. Windows whose element
	// count per target process falls below elementThreshold are not split.
	Partition(ctx context.Context, baseLevel, elementThreshold int) error

	// PartitionAssignment returns the assignment of the last Partition call.
	PartitionAssignment() *PartitionAssignment

	// ProcessMap returns the partition index to global rank translation of the
	// last Partition call.
	ProcessMap() []int
}

// RequireBalanceWeights returns ErrUnsupportedOperation if p ignores balance weights.
func RequireBalanceWeights(p Partitioner) error {
	if !p.SupportsBalanceWeights() {
		return fmt.Errorf("%w: %s does not support balance weights", ErrUnsupportedOperation, p.Name())
	}

	return nil
}

// RequireConnectionWeights returns ErrUnsupportedOperation if p ignores connection weights.
func RequireConnectionWeights(p Partitioner) error {
	if !p.SupportsConnectionWeights() {
		return fmt.Errorf("%w: %s does not support connection weights", ErrUnsupportedOperation, p.Name())
	}

	return nil
}
