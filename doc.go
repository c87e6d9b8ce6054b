// Package meshpart provides hierarchical load balancing for distributed multigrid meshes.
//
// A mesh is refined level by level. As refinement multiplies the number of
// elements, a process hierarchy spreads the finer grid levels over more and more
// processes. The LoadBalancer watches the distribution quality (min/max of the
// owned element counts per grid level) and, when it drops below a threshold or
// a new hierarchy is staged, asks a Partitioner for a new assignment and hands
// it to a Redistributor that moves the elements.
//
// # Quick Start
//
// Every process runs the same code with its own world communicator:
//
//	import (
//	    "github.com/arloliu/meshpart"
//	    "github.com/arloliu/meshpart/topology"
//	)
//
//	cfg := meshpart.DefaultConfig()
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithRedistributor(r))
//	if err != nil {
//	    return err
//	}
//	lb.SetMesh(grid, positions)
//
//	h, err := topology.CreateProcessHierarchy(ctx, world, grid, cfg.Hierarchy)
//	if err != nil {
//	    return err
//	}
//	lb.SetNextProcessHierarchy(h)
//
//	if _, err := lb.Rebalance(ctx); err != nil {
//	    return err
//	}
//
// # Lock-step
//
// Rebalance, CreateQualityRecord and the partitioners run collective reductions.
// All processes must call them in the same order; every decision that leads to a
// collective is derived from globally reduced values, so processes never take
// different branches. A failure on one process surfaces on all of them.
//
// # Strategies
//
// Two strategies implement Partitioner:
//
//   - strategy.Bisection (default): recursive coordinate bisection, splits each
//     hierarchy level exactly once.
//   - strategy.GraphPartitioner: breadth-first traversal of the element dual graph,
//     can re-partition levels that are already distributed and honors balance weights.
//
// # Collaborators
//
// The comm package provides communicators (in-process and NATS JetStream KV),
// the redist package publishes migration plans, and meshsim is an in-memory
// quadrilateral multigrid used by tests and the meshpart command.
package meshpart
