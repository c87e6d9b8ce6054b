package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessHierarchy_AddHierarchyLevel(t *testing.T) {
	t.Run("first level must be root", func(t *testing.T) {
		h := NewProcessHierarchy(0, 4)
		require.ErrorIs(t, h.AddHierarchyLevel(1, 1), ErrInvalidHierarchy)
		require.ErrorIs(t, h.AddHierarchyLevel(0, 2), ErrInvalidHierarchy)
		require.True(t, h.Empty())

		require.NoError(t, h.AddHierarchyLevel(0, 1))
		require.Equal(t, 1, h.NumHierarchyLevels())
	})

	t.Run("rejects non-monotonic grid levels", func(t *testing.T) {
		h := NewRootHierarchy(0, 8)
		require.NoError(t, h.AddHierarchyLevel(3, 2))
		err := h.AddHierarchyLevel(2, 2)
		require.ErrorIs(t, err, ErrNonMonotonicLevels)
		require.ErrorIs(t, err, ErrConfiguration)
		require.Equal(t, 2, h.NumHierarchyLevels())
	})

	t.Run("allows equal grid levels", func(t *testing.T) {
		h := NewRootHierarchy(0, 8)
		require.NoError(t, h.AddHierarchyLevel(2, 2))
		require.NoError(t, h.AddHierarchyLevel(2, 2))
		require.Equal(t, 3, h.NumHierarchyLevels())
	})

	t.Run("rejects zero processes", func(t *testing.T) {
		h := NewRootHierarchy(0, 8)
		require.ErrorIs(t, h.AddHierarchyLevel(2, 0), ErrInvalidHierarchy)
	})
}

func TestProcessHierarchy_GlobalProcs(t *testing.T) {
	h := NewRootHierarchy(0, 12)
	require.NoError(t, h.AddHierarchyLevel(2, 4))
	require.NoError(t, h.AddHierarchyLevel(4, 4))

	require.Equal(t, 1, h.NumGlobalProcsInvolved(0))
	require.Equal(t, 4, h.NumGlobalProcsInvolved(1))
	require.Equal(t, 12, h.NumGlobalProcsInvolved(2), "capped by world size")
	require.Equal(t, []int{0, 1, 2, 3}, h.GlobalRanks(1))
}

func TestProcessHierarchy_HierarchyLevelFromGridLevel(t *testing.T) {
	h := NewRootHierarchy(0, 16)
	require.NoError(t, h.AddHierarchyLevel(2, 2))
	require.NoError(t, h.AddHierarchyLevel(5, 2))

	cases := map[int]int{0: 0, 1: 0, 2: 1, 3: 1, 4: 1, 5: 2, 9: 2, -1: 0}
	for grid, want := range cases {
		require.Equal(t, want, h.HierarchyLevelFromGridLevel(grid), "grid level %d", grid)
	}

	require.Equal(t, -1, NewProcessHierarchy(0, 1).HierarchyLevelFromGridLevel(3))
}

func TestProcessHierarchy_ClusterProcs(t *testing.T) {
	build := func(rank int) *ProcessHierarchy {
		h := NewRootHierarchy(rank, 8)
		require.NoError(t, h.AddHierarchyLevel(1, 2))
		require.NoError(t, h.AddHierarchyLevel(3, 4))
		return h
	}

	t.Run("root level", func(t *testing.T) {
		require.Equal(t, []int{3}, build(3).ClusterProcs(0))
	})

	t.Run("first split", func(t *testing.T) {
		require.Equal(t, []int{0, 1}, build(0).ClusterProcs(1))
		require.Equal(t, []int{5}, build(5).ClusterProcs(1), "rank without data keeps itself")
	})

	t.Run("second split is capped by world size", func(t *testing.T) {
		require.Equal(t, []int{0, 2, 4, 6}, build(0).ClusterProcs(2))
		require.Equal(t, []int{1, 3, 5, 7}, build(1).ClusterProcs(2))
		require.Equal(t, []int{2}, build(2).ClusterProcs(2))
	})

	t.Run("first entry is the calling rank", func(t *testing.T) {
		for r := 0; r < 8; r++ {
			h := build(r)
			for hl := 0; hl < h.NumHierarchyLevels(); hl++ {
				require.Equal(t, r, h.ClusterProcs(hl)[0])
			}
		}
	})
}

func TestProcessHierarchy_Fingerprint(t *testing.T) {
	a := NewRootHierarchy(0, 4)
	require.NoError(t, a.AddHierarchyLevel(2, 4))
	b := NewRootHierarchy(3, 4)
	require.NoError(t, b.AddHierarchyLevel(2, 4))
	c := NewRootHierarchy(0, 4)
	require.NoError(t, c.AddHierarchyLevel(3, 4))

	require.Equal(t, a.Fingerprint(), b.Fingerprint(), "rank must not matter")
	require.True(t, a.Equal(b))
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	require.False(t, a.Equal(c))
}

func TestProcessHierarchy_CloneAndString(t *testing.T) {
	h := NewRootHierarchy(1, 4)
	require.NoError(t, h.AddHierarchyLevel(2, 4))

	c := h.Clone()
	require.True(t, h.Equal(c))
	require.NoError(t, c.AddHierarchyLevel(3, 1))
	require.Equal(t, 2, h.NumHierarchyLevels(), "clone must not share levels")

	s := h.String()
	require.Contains(t, s, "world size 4")
	require.Contains(t, s, "hlvl 1: grid level 2, procs per process 4, global procs 4")
	require.Contains(t, NewProcessHierarchy(0, 1).String(), "empty")
}
