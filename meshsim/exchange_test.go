package meshsim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/comm"
	"github.com/arloliu/meshpart/types"
)

func TestExchange_MovesSubtreesWithGhostParents(t *testing.T) {
	root := NewStructuredGrid(0, 4, 2)
	_, err := root.RefineLevel(0)
	require.NoError(t, err)

	x := NewExchange([]*Grid{root, NewGrid(1)})
	cluster := comm.NewLocalCluster(2)

	err = cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		g := x.Grid(world.Rank())
		a := types.NewPartitionAssignment()
		procMap := []int{world.Rank()}

		if world.Rank() == 0 {
			procMap = []int{0, 1}
			for _, e := range g.Elements(0) {
				a.Assign(e, 0)
				part := 0
				if types.Center(g, g, e)[0] < 2 {
					part = 1
				}
				a.AssignAll(g.Children(e), part)
			}
		}

		return x.Redistributor(world).Redistribute(ctx, a, procMap)
	})
	require.NoError(t, err)

	sender, receiver := x.Grid(0), x.Grid(1)
	require.Equal(t, 8+16, sender.NumOwned())
	require.Equal(t, 16, receiver.NumOwned())
	require.Equal(t, 16, types.CountOwned(receiver, 1))
	require.Equal(t, 4, receiver.NumElements(0))

	for _, parent := range receiver.Elements(0) {
		require.True(t, receiver.IsGhost(parent))
		require.Len(t, receiver.Children(parent), 4)
		require.Empty(t, sender.Children(parent))
	}
	for _, child := range receiver.Elements(1) {
		_, ok := receiver.Parent(child)
		require.True(t, ok)
		require.Less(t, types.Center(receiver, receiver, child)[0], 2.0)
	}
}

func TestExchange_KeepsGhostWhenChildrenStay(t *testing.T) {
	root := NewStructuredGrid(0, 1, 1)
	_, err := root.RefineLevel(0)
	require.NoError(t, err)

	x := NewExchange([]*Grid{root, NewGrid(1)})
	cluster := comm.NewLocalCluster(2)

	err = cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		g := x.Grid(world.Rank())
		a := types.NewPartitionAssignment()
		if world.Rank() == 0 {
			a.AssignAll(g.Elements(0), 1)
			a.AssignAll(g.Elements(1), 0)
		}

		return x.Redistributor(world).Redistribute(ctx, a, []int{world.Rank(), 1 - world.Rank()})
	})
	require.NoError(t, err)

	parent := root.Elements(0)[0]
	require.True(t, x.Grid(0).IsGhost(parent))
	require.Len(t, x.Grid(0).Children(parent), 4)
	require.False(t, x.Grid(1).IsGhost(parent))
	require.Equal(t, 4, x.Grid(0).NumOwned())
	require.Equal(t, 1, x.Grid(1).NumOwned())
}

func TestExchange_InvalidProcessMapAbortsEverywhere(t *testing.T) {
	x := NewExchange([]*Grid{NewStructuredGrid(0, 2, 2), NewStructuredGrid(1, 2, 2)})
	cluster := comm.NewLocalCluster(2)

	errs := make([]error, 2)
	err := cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		g := x.Grid(world.Rank())
		a := types.NewPartitionAssignment()
		procMap := []int{world.Rank()}
		if world.Rank() == 0 {
			a.AssignAll(g.Elements(0), 1) // no entry for partition 1
		} else {
			a.AssignAll(g.Elements(0), 0)
		}
		errs[world.Rank()] = x.Redistributor(world).Redistribute(ctx, a, procMap)

		return nil
	})
	require.NoError(t, err)

	for rank, err := range errs {
		require.ErrorIs(t, err, types.ErrInvalidProcessMap, "rank %d", rank)
	}
	require.Equal(t, 4, x.Grid(0).NumOwned())
	require.Equal(t, 4, x.Grid(1).NumOwned())
}

func TestExchange_WorldSizeMismatch(t *testing.T) {
	x := NewExchange([]*Grid{NewGrid(0)})
	cluster := comm.NewLocalCluster(2)

	err := cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		return x.Redistributor(world).Redistribute(ctx, types.NewPartitionAssignment(), []int{world.Rank()})
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, types.ErrInvalidProcessMap))
}
