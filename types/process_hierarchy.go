package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arloliu/meshpart/internal/hash"
)

// hierarchyLevel describes one entry of a ProcessHierarchy.
type hierarchyLevel struct {
	gridBaseLevel int
	numProcs      int // processes each process of the previous level distributes to
	numGlobal     int
}

// ProcessHierarchy describes which grid levels are distributed onto how many processes.
//
// Hierarchy level i owns the grid levels [GridBaseLevel(i), GridBaseLevel(i+1)-1]
// (open ended for the last level). When the grid reaches GridBaseLevel(i), every
// process that held elements on hierarchy level i-1 spreads them over NumProcs(i)
// processes. Level 0 always starts at grid level 0 on a single process (the root).
//
// A hierarchy is built for one calling process: ClusterProcs depends on the rank
// passed to NewProcessHierarchy, everything else is identical on every process.
type ProcessHierarchy struct {
	rank      int
	worldSize int
	levels    []hierarchyLevel
}

// NewProcessHierarchy creates an empty hierarchy for the calling process.
//
// Parameters:
//   - rank: Global rank of the calling process
//   - worldSize: Total number of processes (values below 1 are treated as 1)
//
// Returns:
//   - *ProcessHierarchy: Empty hierarchy; add level (0, 1) first
//
// Example:
//
//	h := types.NewProcessHierarchy(comm.Rank(), comm.Size())
//	_ = h.AddHierarchyLevel(0, 1)
//	_ = h.AddHierarchyLevel(2, 4) // from grid level 2 on, spread onto 4 processes
func NewProcessHierarchy(rank, worldSize int) *ProcessHierarchy {
	return &ProcessHierarchy{rank: rank, worldSize: max(worldSize, 1)}
}

// NewRootHierarchy returns a hierarchy with the single level (0, 1).
func NewRootHierarchy(rank, worldSize int) *ProcessHierarchy {
	h := NewProcessHierarchy(rank, worldSize)
	h.levels = append(h.levels, hierarchyLevel{gridBaseLevel: 0, numProcs: 1, numGlobal: 1})

	return h
}

// AddHierarchyLevel appends a hierarchy level.
//
// Parameters:
//   - gridLevel: First grid level owned by the new hierarchy level
//   - numProcs: Number of processes each process of the previous level distributes to
//
// Returns:
//   - error: ErrNonMonotonicLevels if gridLevel is below the previous level's base,
//     ErrInvalidHierarchy if numProcs < 1 or the first level is not (0, 1)
func (h *ProcessHierarchy) AddHierarchyLevel(gridLevel, numProcs int) error {
	if numProcs < 1 {
		return fmt.Errorf("%w: hierarchy level needs at least one process, got %d", ErrInvalidHierarchy, numProcs)
	}

	if len(h.levels) == 0 {
		if gridLevel != 0 || numProcs != 1 {
			return fmt.Errorf("%w: first level must be (0, 1), got (%d, %d)", ErrInvalidHierarchy, gridLevel, numProcs)
		}
		h.levels = append(h.levels, hierarchyLevel{gridBaseLevel: 0, numProcs: 1, numGlobal: 1})

		return nil
	}

	last := h.levels[len(h.levels)-1]
	if gridLevel < last.gridBaseLevel {
		return fmt.Errorf("%w: grid level %d below previous base level %d", ErrNonMonotonicLevels, gridLevel, last.gridBaseLevel)
	}

	h.levels = append(h.levels, hierarchyLevel{
		gridBaseLevel: gridLevel,
		numProcs:      numProcs,
		numGlobal:     min(last.numGlobal*numProcs, h.worldSize),
	})

	return nil
}

// Rank returns the rank the hierarchy was built for.
func (h *ProcessHierarchy) Rank() int { return h.rank }

// WorldSize returns the total number of processes.
func (h *ProcessHierarchy) WorldSize() int { return h.worldSize }

// Empty reports whether no level has been added.
func (h *ProcessHierarchy) Empty() bool { return len(h.levels) == 0 }

// NumHierarchyLevels returns the number of hierarchy levels.
func (h *ProcessHierarchy) NumHierarchyLevels() int { return len(h.levels) }

// GridBaseLevel returns the first grid level owned by hierarchy level hl.
func (h *ProcessHierarchy) GridBaseLevel(hl int) int { return h.levels[hl].gridBaseLevel }

// NumProcs returns the fan-out of hierarchy level hl.
func (h *ProcessHierarchy) NumProcs(hl int) int { return h.levels[hl].numProcs }

// NumGlobalProcsInvolved returns how many processes hold elements on hierarchy level hl.
//
// These are the ranks [0, NumGlobalProcsInvolved(hl)).
func (h *ProcessHierarchy) NumGlobalProcsInvolved(hl int) int { return h.levels[hl].numGlobal }

// HierarchyLevelFromGridLevel returns the hierarchy level owning gridLevel.
//
// Returns -1 for an empty hierarchy. Grid levels below 0 map to hierarchy level 0.
func (h *ProcessHierarchy) HierarchyLevelFromGridLevel(gridLevel int) int {
	if len(h.levels) == 0 {
		return -1
	}

	// first level whose base lies above gridLevel
	idx := sort.Search(len(h.levels), func(i int) bool {
		return h.levels[i].gridBaseLevel > gridLevel
	})

	return max(idx-1, 0)
}

// GlobalRanks returns the ranks holding elements on hierarchy level hl.
func (h *ProcessHierarchy) GlobalRanks(hl int) []int {
	ranks := make([]int, h.levels[hl].numGlobal)
	for i := range ranks {
		ranks[i] = i
	}

	return ranks
}

// ClusterProcs returns the ranks the calling process distributes to on hierarchy level hl.
//
// The first entry is always the calling rank, so partition index 0 keeps elements
// local. A rank that held no elements on the previous level gets a cluster of
// just itself.
func (h *ProcessHierarchy) ClusterProcs(hl int) []int {
	if hl == 0 {
		return []int{h.rank}
	}

	prev := h.levels[hl-1].numGlobal
	if h.rank >= prev {
		return []int{h.rank}
	}

	procs := make([]int, 0, h.levels[hl].numProcs)
	for j := 0; j < h.levels[hl].numProcs; j++ {
		r := h.rank + j*prev
		if r >= h.worldSize {
			break
		}
		procs = append(procs, r)
	}

	return procs
}

// GlobalCommunicator restricts world to the ranks holding elements on hierarchy level hl.
func (h *ProcessHierarchy) GlobalCommunicator(hl int, world Communicator) Communicator {
	return world.Sub(h.GlobalRanks(hl))
}

// ClusterCommunicator restricts world to ClusterProcs(hl).
func (h *ProcessHierarchy) ClusterCommunicator(hl int, world Communicator) Communicator {
	return world.Sub(h.ClusterProcs(hl))
}

// Clone returns a deep copy.
func (h *ProcessHierarchy) Clone() *ProcessHierarchy {
	if h == nil {
		return nil
	}
	c := &ProcessHierarchy{rank: h.rank, worldSize: h.worldSize}
	c.levels = append([]hierarchyLevel(nil), h.levels...)

	return c
}

// Equal reports whether both hierarchies describe the same levels for the same world size.
// The rank is ignored.
func (h *ProcessHierarchy) Equal(o *ProcessHierarchy) bool {
	if h == nil || o == nil {
		return h == o
	}
	if h.worldSize != o.worldSize || len(h.levels) != len(o.levels) {
		return false
	}
	for i := range h.levels {
		if h.levels[i] != o.levels[i] {
			return false
		}
	}

	return true
}

// Fingerprint returns a rank independent 52-bit digest of the hierarchy.
//
// Equal hierarchies have equal fingerprints on every process, and the value is
// exactly representable as float64 so it can be compared with MIN/MAX reductions.
func (h *ProcessHierarchy) Fingerprint() uint64 {
	vals := make([]int, 0, 1+2*len(h.levels))
	vals = append(vals, h.worldSize)
	for _, lvl := range h.levels {
		vals = append(vals, lvl.gridBaseLevel, lvl.numProcs)
	}

	return hash.Fingerprint(hash.Ints(0, vals...))
}

// String returns a human-readable description of the hierarchy.
func (h *ProcessHierarchy) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "process hierarchy (world size %d, rank %d)", h.worldSize, h.rank)
	if len(h.levels) == 0 {
		sb.WriteString(": empty")
		return sb.String()
	}

	for i, lvl := range h.levels {
		fmt.Fprintf(&sb, "\n  hlvl %d: grid level %d, procs per process %d, global procs %d, cluster %v",
			i, lvl.gridBaseLevel, lvl.numProcs, lvl.numGlobal, h.ClusterProcs(i))
	}

	return sb.String()
}
