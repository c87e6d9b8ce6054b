// Package meshsim provides an in-memory two-dimensional quadrilateral multigrid
// for exercising partitioners without a simulation code.
//
// A Grid implements both types.MultiGrid and types.PositionMap. Level 0 is a
// structured nx by ny block of unit squares; Refine splits an element into four
// children on the next level. Element IDs carry the rank of the process that
// created them, so they stay unique when elements migrate.
//
// Exchange moves elements between the grids of an in-process cluster according
// to a partition assignment, the way a simulation code would after a rebalance.
//
// Example:
//
//	grid := meshsim.NewStructuredGrid(0, 8, 8)
//	_, _ = grid.RefineLevel(0)
//	p.SetMesh(grid, grid)
package meshsim
