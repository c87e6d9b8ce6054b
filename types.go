package meshpart

import "github.com/arloliu/meshpart/types"

// Re-export types from the types package.
//
// The types package holds the definitions so that strategy, comm and redist can
// depend on them without importing the root package. The aliases below give
// callers a single import for the common case.
type (
	Element             = types.Element
	Vertex              = types.Vertex
	Vector              = types.Vector
	PartitionAssignment = types.PartitionAssignment
	ProcessHierarchy    = types.ProcessHierarchy
	QualityRecord       = types.QualityRecord
	ReduceOp            = types.ReduceOp
)

// Re-export interfaces from the types package for convenience.
type (
	MultiGrid         = types.MultiGrid
	PositionMap       = types.PositionMap
	Partitioner       = types.Partitioner
	Redistributor     = types.Redistributor
	Communicator      = types.Communicator
	BalanceWeights    = types.BalanceWeights
	ConnectionWeights = types.ConnectionWeights
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
	Hooks             = types.Hooks
)

// UndefinedQuality marks a level without a meaningful quality.
const UndefinedQuality = types.UndefinedQuality

// NewProcessHierarchy creates an empty hierarchy for the calling process.
func NewProcessHierarchy(rank, worldSize int) *ProcessHierarchy {
	return types.NewProcessHierarchy(rank, worldSize)
}

// NewRootHierarchy returns a hierarchy holding only the root level (0, 1).
func NewRootHierarchy(rank, worldSize int) *ProcessHierarchy {
	return types.NewRootHierarchy(rank, worldSize)
}
