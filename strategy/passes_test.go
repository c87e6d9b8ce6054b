package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/meshsim"
	"github.com/arloliu/meshpart/types"
)

func TestClusterSiblings(t *testing.T) {
	g := meshsim.NewStructuredGrid(0, 2, 1)
	_, err := g.RefineLevel(0)
	require.NoError(t, err)

	a := types.NewPartitionAssignment()
	for i, e := range g.Elements(1) {
		a.Assign(e, i%3)
	}

	clusterSiblings(g, a, 1)

	for _, parent := range g.Elements(0) {
		children := g.Children(parent)
		first, ok := a.Partition(children[0])
		require.True(t, ok)
		for _, c := range children {
			p, _ := a.Partition(c)
			require.Equal(t, first, p)
		}
	}

	t.Run("no parents below level 0", func(t *testing.T) {
		a := types.NewPartitionAssignment()
		clusterSiblings(g, a, 0)
		require.Zero(t, a.Len())
	})
}

func TestPropagateToChildren(t *testing.T) {
	g := meshsim.NewStructuredGrid(0, 2, 1)
	_, err := g.RefineLevel(0)
	require.NoError(t, err)
	_, err = g.RefineLevel(1)
	require.NoError(t, err)

	a := types.NewPartitionAssignment()
	roots := g.Elements(0)
	a.Assign(roots[0], 0)
	a.Assign(roots[1], 1)

	propagateToChildren(g, a, 0, 2)

	require.Equal(t, 2+8+32, a.Len())
	require.Equal(t, []int{4, 4}, a.CountsOnLevel(1))
	require.Equal(t, []int{16, 16}, a.CountsOnLevel(2))

	t.Run("stops at the window top", func(t *testing.T) {
		a := types.NewPartitionAssignment()
		a.AssignAll(roots, 1)
		propagateToChildren(g, a, 0, 1)
		require.Equal(t, 2+8, a.Len())
	})
}
