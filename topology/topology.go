// Package topology plans process hierarchies from the size of a mesh.
//
// A process hierarchy spreads the mesh over more processes as refinement adds
// elements. The planner adds a hierarchy level at the first grid level where
// every process of the grown process set would still receive enough elements,
// limited by the fan-out per redistribution and the number of processes.
package topology

import (
	"context"
	"fmt"

	"github.com/arloliu/meshpart/types"
)

// Options controls the planner.
type Options struct {
	// MinElementsPerProcPerLevel is the number of elements each process must
	// receive on a grid level before that level is distributed further.
	MinElementsPerProcPerLevel int `yaml:"minElementsPerProcPerLevel"`

	// MaxRedistProcs caps the fan-out of a single hierarchy level.
	MaxRedistProcs int `yaml:"maxRedistProcs"`

	// MaxProcs caps the total number of processes used; 0 means the world size.
	MaxProcs int `yaml:"maxProcs"`

	// MinDistributionLevel is the first grid level that may be distributed.
	MinDistributionLevel int `yaml:"minDistributionLevel"`

	// MaxLevelsWithoutRedist forces a redistribution onto at least two processes
	// per process once this many grid levels passed without one; 0 disables it.
	MaxLevelsWithoutRedist int `yaml:"maxLevelsWithoutRedist"`
}

// DefaultOptions returns the planner defaults.
func DefaultOptions() Options {
	return Options{
		MinElementsPerProcPerLevel: 32,
		MaxRedistProcs:             64,
	}
}

// SetDefaults fills zero fields with defaults.
func (o *Options) SetDefaults() {
	d := DefaultOptions()
	if o.MinElementsPerProcPerLevel == 0 {
		o.MinElementsPerProcPerLevel = d.MinElementsPerProcPerLevel
	}
	if o.MaxRedistProcs == 0 {
		o.MaxRedistProcs = d.MaxRedistProcs
	}
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.MinElementsPerProcPerLevel < 1 {
		return fmt.Errorf("%w: minElementsPerProcPerLevel must be at least 1, got %d", types.ErrInvalidHierarchy, o.MinElementsPerProcPerLevel)
	}
	if o.MaxRedistProcs < 1 {
		return fmt.Errorf("%w: maxRedistProcs must be at least 1, got %d", types.ErrInvalidHierarchy, o.MaxRedistProcs)
	}
	if o.MaxProcs < 0 {
		return fmt.Errorf("%w: maxProcs must not be negative, got %d", types.ErrInvalidHierarchy, o.MaxProcs)
	}
	if o.MinDistributionLevel < 0 {
		return fmt.Errorf("%w: minDistributionLevel must not be negative, got %d", types.ErrInvalidHierarchy, o.MinDistributionLevel)
	}
	if o.MaxLevelsWithoutRedist < 0 {
		return fmt.Errorf("%w: maxLevelsWithoutRedist must not be negative, got %d", types.ErrInvalidHierarchy, o.MaxLevelsWithoutRedist)
	}

	return nil
}

// Level is one planned hierarchy level.
type Level struct {
	GridLevel int
	NumProcs  int
}

// Plan chooses hierarchy levels for a mesh with levelCounts[i] elements on grid level i.
//
// The first entry is always the root level (0, 1). The result is identical on
// every process given identical counts.
//
// Parameters:
//   - levelCounts: Global number of elements per grid level
//   - worldSize: Number of processes available
//   - opts: Planner options
//
// Returns:
//   - []Level: Planned levels, starting with (0, 1)
//   - error: ErrInvalidHierarchy for invalid options
func Plan(levelCounts []int, worldSize int, opts Options) ([]Level, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	maxProcs := max(worldSize, 1)
	if opts.MaxProcs > 0 {
		maxProcs = min(maxProcs, opts.MaxProcs)
	}

	levels := []Level{{GridLevel: 0, NumProcs: 1}}
	procs := 1
	lastRedist := 0

	for lvl := opts.MinDistributionLevel; lvl < len(levelCounts) && procs < maxProcs; lvl++ {
		feedable := levelCounts[lvl] / (opts.MinElementsPerProcPerLevel * procs)
		if opts.MaxLevelsWithoutRedist > 0 && lvl-lastRedist >= opts.MaxLevelsWithoutRedist {
			feedable = max(feedable, 2)
		}

		fanOut := min(opts.MaxRedistProcs, maxProcs/procs, feedable)
		if fanOut < 2 {
			continue
		}

		levels = append(levels, Level{GridLevel: lvl, NumProcs: fanOut})
		procs *= fanOut
		lastRedist = lvl
	}

	return levels, nil
}

// Build turns planned levels into a process hierarchy for the calling process.
func Build(rank, worldSize int, levels []Level) (*types.ProcessHierarchy, error) {
	h := types.NewProcessHierarchy(rank, worldSize)
	for _, l := range levels {
		if err := h.AddHierarchyLevel(l.GridLevel, l.NumProcs); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// GlobalLevelCounts returns the number of owned elements per grid level summed
// over all processes of world. The call is collective.
func GlobalLevelCounts(ctx context.Context, world types.Communicator, mg types.MultiGrid) ([]int, error) {
	n, err := world.AllReduce(ctx, float64(mg.NumLevels()), types.ReduceMax)
	if err != nil {
		return nil, fmt.Errorf("failed to agree on number of grid levels: %w", err)
	}

	counts := make([]int, int(n))
	for lvl := range counts {
		total, err := world.AllReduce(ctx, float64(types.CountOwned(mg, lvl)), types.ReduceSum)
		if err != nil {
			return nil, fmt.Errorf("failed to count elements of level %d: %w", lvl, err)
		}
		counts[lvl] = int(total)
	}

	return counts, nil
}

// CreateProcessHierarchy plans a hierarchy from the global element counts of mg.
//
// The call is collective over world and returns the same hierarchy, built for
// the calling rank, on every process.
//
// Example:
//
//	h, err := topology.CreateProcessHierarchy(ctx, world, grid, topology.Options{
//	    MinElementsPerProcPerLevel: 16,
//	    MaxRedistProcs:             4,
//	})
//	balancer.SetNextProcessHierarchy(h)
func CreateProcessHierarchy(ctx context.Context, world types.Communicator, mg types.MultiGrid, opts Options) (*types.ProcessHierarchy, error) {
	counts, err := GlobalLevelCounts(ctx, world, mg)
	if err != nil {
		return nil, err
	}

	levels, err := Plan(counts, world.Size(), opts)
	if err != nil {
		return nil, err
	}

	return Build(world.Rank(), world.Size(), levels)
}
