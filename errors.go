package meshpart

import "github.com/arloliu/meshpart/types"

// Sentinel errors returned by the LoadBalancer and its collaborators.
//
// Every configuration sentinel also matches ErrConfiguration with errors.Is.
var (
	// ErrConfiguration is the category of every fatal configuration failure.
	ErrConfiguration = types.ErrConfiguration

	// ErrMeshNotSet is returned when Rebalance runs before SetMesh.
	ErrMeshNotSet = types.ErrMeshNotSet

	// ErrNonMonotonicLevels is returned when a hierarchy level starts below its predecessor.
	ErrNonMonotonicLevels = types.ErrNonMonotonicLevels

	// ErrInvalidHierarchy is returned for malformed hierarchy levels.
	ErrInvalidHierarchy = types.ErrInvalidHierarchy

	// ErrProcessMapMismatch is returned when a partition produced several partitions without a process map.
	ErrProcessMapMismatch = types.ErrProcessMapMismatch

	// ErrHierarchyMismatch is returned when processes disagree about the active hierarchy.
	ErrHierarchyMismatch = types.ErrHierarchyMismatch

	// ErrPartitionerRequired is returned when the load balancer is given a nil partitioner.
	ErrPartitionerRequired = types.ErrPartitionerRequired

	// ErrCommunicatorRequired is returned when NewLoadBalancer gets a nil communicator.
	ErrCommunicatorRequired = types.ErrCommunicatorRequired

	// ErrUnsupportedOperation is returned when weights are set on a strategy that ignores them.
	ErrUnsupportedOperation = types.ErrUnsupportedOperation

	// ErrInvalidProcessMap is returned by redistributors for partitions outside the process map.
	ErrInvalidProcessMap = types.ErrInvalidProcessMap
)
