package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionAssignment(t *testing.T) {
	a := NewPartitionAssignment()
	require.Equal(t, 0, a.NumPartitions())

	e0 := Element{Level: 0, ID: 1}
	e1 := Element{Level: 1, ID: 2}
	e2 := Element{Level: 1, ID: 3}

	a.Assign(e0, 0)
	a.AssignAll([]Element{e1, e2}, 2)

	t.Run("lookup", func(t *testing.T) {
		p, ok := a.Partition(e1)
		require.True(t, ok)
		require.Equal(t, 2, p)

		_, ok = a.Partition(Element{Level: 5, ID: 1})
		require.False(t, ok)
	})

	t.Run("counts", func(t *testing.T) {
		require.Equal(t, 3, a.Len())
		require.Equal(t, 3, a.NumPartitions())
		require.Equal(t, []int{1, 0, 2}, a.Counts())
		require.Equal(t, []int{0, 0, 2}, a.CountsOnLevel(1))
	})

	t.Run("elements of partition are sorted", func(t *testing.T) {
		require.Equal(t, []Element{e1, e2}, a.ElementsOf(2))
	})

	t.Run("clear", func(t *testing.T) {
		a.Clear()
		require.Equal(t, 0, a.Len())
		require.Equal(t, 0, a.NumPartitions())
	})
}

func TestQuality(t *testing.T) {
	require.InDelta(t, 1.0, Quality(100, 100), 1e-12)
	require.InDelta(t, 0.0, Quality(0, 10), 1e-12)
	require.Equal(t, UndefinedQuality, Quality(0, 0))
	require.False(t, IsDefinedQuality(UndefinedQuality))
	require.Equal(t, "undefined", FormatQuality(UndefinedQuality))
	require.Equal(t, "0.50", FormatQuality(0.5))

	rec := QualityRecord{Label: "rebalance", LevelQualities: []float64{1, UndefinedQuality}, MinQuality: 1}
	require.Equal(t, "rebalance: min 1.00 | lvl 0: 1.00 lvl 1: undefined", rec.String())
}

func TestReduceOp(t *testing.T) {
	vals := []float64{3, 1, 2}
	require.InDelta(t, 1.0, ReduceMin.Apply(vals), 0)
	require.InDelta(t, 3.0, ReduceMax.Apply(vals), 0)
	require.InDelta(t, 6.0, ReduceSum.Apply(vals), 0)
	require.InDelta(t, 0.0, ReduceSum.Apply(nil), 0)
	require.Equal(t, "max", ReduceMax.String())
}
