// Package strategy provides the built-in partitioning strategies.
//
// A strategy decides, for every element of a hierarchical mesh, which process
// of its hierarchy level should own it. Two strategies are available:
//
//   - Bisection: recursive coordinate bisection. Splits every hierarchy level
//     once, when the grid first reaches it. Always available, no weights.
//   - GraphPartitioner: breadth-first growth over the element dual graph.
//     Supports balance weights and re-partitions levels that were already
//     distributed, which makes it the choice for adaptive refinement.
//
// # Strategy Selection Guide
//
// Bisection:
//   - Use for uniformly refined meshes where each level is distributed once
//   - Produces compact, geometrically separated partitions
//   - Levels already split are left alone (see the ratchet below)
//
// GraphPartitioner:
//   - Use when refinement is adaptive and loads drift after distribution
//   - Elements move only between neighbouring ranks in rank order
//   - Configuration: child weight, imbalance tolerance
//
// # Collective behaviour
//
// EstimateDistributionQuality and Partition are collective over the world
// communicator. Every decision that precedes a collective call depends only on
// the process hierarchy, the globally reduced number of grid levels, the
// globally agreed ratchet, or values obtained from a collective. Local element
// counts only influence decisions that are followed by no collective call.
//
// # Ratchet
//
// Each strategy instance tracks the highest hierarchy level it already
// redistributed. It starts at 0, only grows, and is synchronized with a global
// maximum reduction at the end of every Partition call.
//
// Custom strategies can be implemented by satisfying the types.Partitioner interface.
package strategy
