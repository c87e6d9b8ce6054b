package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/comm"
	"github.com/arloliu/meshpart/meshsim"
	"github.com/arloliu/meshpart/types"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		world  int
		opts   Options
		want   []Level
	}{
		{
			name:   "single process keeps the root",
			counts: []int{16, 64, 256},
			world:  1,
			opts:   Options{MinElementsPerProcPerLevel: 1, MaxRedistProcs: 4},
			want:   []Level{{0, 1}},
		},
		{
			name:   "grows with the element count",
			counts: []int{16, 64, 256, 1024},
			world:  16,
			opts:   Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 4},
			want:   []Level{{0, 1}, {1, 4}, {2, 4}},
		},
		{
			name:   "max procs caps the fan-out",
			counts: []int{16, 64, 256, 1024},
			world:  16,
			opts:   Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 4, MaxProcs: 8},
			want:   []Level{{0, 1}, {1, 4}, {2, 2}},
		},
		{
			name:   "distributes level 0 when large enough",
			counts: []int{64},
			world:  4,
			opts:   Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 8},
			want:   []Level{{0, 1}, {0, 4}},
		},
		{
			name:   "min distribution level",
			counts: []int{64, 256},
			world:  4,
			opts:   Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 8, MinDistributionLevel: 1},
			want:   []Level{{0, 1}, {1, 4}},
		},
		{
			name:   "forced redistribution after idle levels",
			counts: []int{4, 8, 16, 32},
			world:  4,
			opts:   Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 4, MaxLevelsWithoutRedist: 2},
			want:   []Level{{0, 1}, {2, 2}},
		},
		{
			name:   "too few elements",
			counts: []int{4, 8},
			world:  4,
			opts:   Options{MinElementsPerProcPerLevel: 16},
			want:   []Level{{0, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.counts, tt.world, tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	for _, opts := range []Options{
		{MinElementsPerProcPerLevel: 0, MaxRedistProcs: 2},
		{MinElementsPerProcPerLevel: 1, MaxRedistProcs: 0},
		{MinElementsPerProcPerLevel: 1, MaxRedistProcs: 2, MaxProcs: -1},
		{MinElementsPerProcPerLevel: 1, MaxRedistProcs: 2, MinDistributionLevel: -1},
		{MinElementsPerProcPerLevel: 1, MaxRedistProcs: 2, MaxLevelsWithoutRedist: -1},
	} {
		err := opts.Validate()
		require.ErrorIs(t, err, types.ErrInvalidHierarchy)
		require.ErrorIs(t, err, types.ErrConfiguration)
	}

	_, err := Plan([]int{1}, 2, Options{MinElementsPerProcPerLevel: -3})
	require.ErrorIs(t, err, types.ErrInvalidHierarchy)
}

func TestBuild(t *testing.T) {
	h, err := Build(1, 8, []Level{{0, 1}, {1, 2}, {3, 4}})
	require.NoError(t, err)
	require.Equal(t, 3, h.NumHierarchyLevels())
	require.Equal(t, 8, h.NumGlobalProcsInvolved(2))
	require.Equal(t, []int{1, 3, 5, 7}, h.ClusterProcs(2))

	_, err = Build(0, 8, []Level{{0, 1}, {3, 2}, {1, 2}})
	require.ErrorIs(t, err, types.ErrNonMonotonicLevels)
}

func TestCreateProcessHierarchy(t *testing.T) {
	grids := []*meshsim.Grid{meshsim.NewStructuredGrid(0, 2, 2), meshsim.NewStructuredGrid(1, 2, 2)}
	for _, g := range grids {
		_, err := g.RefineLevel(0)
		require.NoError(t, err)
	}
	_, err := grids[1].RefineLevel(1)
	require.NoError(t, err)

	cluster := comm.NewLocalCluster(2)
	hierarchies := make([]*types.ProcessHierarchy, 2)
	counts := make([][]int, 2)

	err = cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		g := grids[world.Rank()]

		c, err := GlobalLevelCounts(ctx, world, g)
		if err != nil {
			return err
		}
		counts[world.Rank()] = c

		h, err := CreateProcessHierarchy(ctx, world, g, Options{MinElementsPerProcPerLevel: 16, MaxRedistProcs: 2})
		hierarchies[world.Rank()] = h

		return err
	})
	require.NoError(t, err)

	require.Equal(t, []int{8, 32, 64}, counts[0])
	require.Equal(t, counts[0], counts[1])

	require.True(t, hierarchies[0].Equal(hierarchies[1]))
	require.Equal(t, 0, hierarchies[0].Rank())
	require.Equal(t, 1, hierarchies[1].Rank())
	require.Equal(t, 2, hierarchies[0].NumHierarchyLevels())
	require.Equal(t, 1, hierarchies[0].GridBaseLevel(1))
}
