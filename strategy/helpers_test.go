package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/comm"
	"github.com/arloliu/meshpart/meshsim"
	"github.com/arloliu/meshpart/types"
)

// fixture is an in-process cluster where rank 0 starts with the whole mesh.
type fixture struct {
	cluster  *comm.LocalCluster
	exchange *meshsim.Exchange
	parts    []types.Partitioner
}

func newFixture(t *testing.T, size, nx, ny, refinements int, newPartitioner func(world types.Communicator) types.Partitioner) *fixture {
	t.Helper()

	grids := make([]*meshsim.Grid, size)
	grids[0] = meshsim.NewStructuredGrid(0, nx, ny)
	for lvl := range refinements {
		_, err := grids[0].RefineLevel(lvl)
		require.NoError(t, err)
	}
	for r := 1; r < size; r++ {
		grids[r] = meshsim.NewGrid(r)
	}

	f := &fixture{
		cluster:  comm.NewLocalCluster(size),
		exchange: meshsim.NewExchange(grids),
		parts:    make([]types.Partitioner, size),
	}
	for r := range size {
		p := newPartitioner(f.cluster.Communicator(r))
		p.SetMesh(grids[r], grids[r])
		f.parts[r] = p
	}
	t.Cleanup(f.cluster.Close)

	return f
}

func (f *fixture) grid(rank int) *meshsim.Grid { return f.exchange.Grid(rank) }

// run executes fn on every rank with that rank's partitioner.
func (f *fixture) run(t *testing.T, fn func(ctx context.Context, world *comm.Communicator, p types.Partitioner) error) {
	t.Helper()

	err := f.cluster.Run(t.Context(), func(ctx context.Context, world *comm.Communicator) error {
		return fn(ctx, world, f.parts[world.Rank()])
	})
	require.NoError(t, err)
}

// partition runs Partition on every rank.
func (f *fixture) partition(t *testing.T, baseLevel, threshold int) {
	t.Helper()

	f.run(t, func(ctx context.Context, _ *comm.Communicator, p types.Partitioner) error {
		return p.Partition(ctx, baseLevel, threshold)
	})
}

// redistribute migrates elements according to the last partition.
func (f *fixture) redistribute(t *testing.T) {
	t.Helper()

	f.run(t, func(ctx context.Context, world *comm.Communicator, p types.Partitioner) error {
		return f.exchange.Redistributor(world).Redistribute(ctx, p.PartitionAssignment(), p.ProcessMap())
	})
}

// quality estimates the distribution quality on every rank.
func (f *fixture) quality(t *testing.T) ([]float64, [][]float64) {
	t.Helper()

	global := make([]float64, f.cluster.Size())
	perLevel := make([][]float64, f.cluster.Size())
	f.run(t, func(ctx context.Context, world *comm.Communicator, p types.Partitioner) error {
		var levels []float64
		q, err := p.EstimateDistributionQuality(ctx, &levels)
		global[world.Rank()] = q
		perLevel[world.Rank()] = levels

		return err
	})

	return global, perLevel
}

// stage sets the same hierarchy, built per rank, as next hierarchy on every rank.
func (f *fixture) stage(t *testing.T, levels ...[2]int) {
	t.Helper()

	for r, p := range f.parts {
		p.SetNextProcessHierarchy(buildHierarchy(t, r, f.cluster.Size(), levels...))
	}
}

func buildHierarchy(t *testing.T, rank, size int, levels ...[2]int) *types.ProcessHierarchy {
	t.Helper()

	h := types.NewProcessHierarchy(rank, size)
	for _, lvl := range levels {
		require.NoError(t, h.AddHierarchyLevel(lvl[0], lvl[1]))
	}

	return h
}

// targetCounts returns how many elements of level each global rank receives from rank.
func targetCounts(p types.Partitioner, level int) map[int]int {
	counts := make(map[int]int)
	procMap := p.ProcessMap()
	p.PartitionAssignment().Range(func(e types.Element, part int) bool {
		if e.Level == level {
			counts[procMap[part]]++
		}
		return true
	})

	return counts
}
