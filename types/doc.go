// Package types provides core type definitions and interfaces for the meshpart library.
//
// This package contains shared types that are used across multiple packages in the
// meshpart library. By keeping these types in a separate package, we avoid import cycles
// between the main meshpart package and its strategy, communicator and redistribution
// implementations.
//
// Key types:
//   - Element, Vertex, MultiGrid, PositionMap: the hierarchical mesh seen by partitioners
//   - ProcessHierarchy: which grid levels are distributed onto how many processes
//   - PartitionAssignment: element to partition index mapping produced by a Partitioner
//   - Communicator: collective reductions over subsets of process ranks
//   - Partitioner, Redistributor: the pluggable strategy and migration collaborators
//   - Logger, MetricsCollector, Hooks: ambient observability interfaces
package types
