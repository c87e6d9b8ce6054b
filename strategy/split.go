package strategy

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/arloliu/meshpart/types"
)

// SplitByBisection splits points into numParts groups of nearly equal size by
// recursive coordinate bisection.
//
// Each step sorts the points along the axis of largest variance and cuts them
// in proportion to the number of parts on either side. Ties are broken by
// point index, so the result is deterministic.
//
// Parameters:
//   - points: Coordinates to split, all of the same dimension
//   - numParts: Number of groups; values below 1 are treated as 1
//
// Returns:
//   - []int: Group index in [0, numParts) for every point
func SplitByBisection(points []types.Vector, numParts int) []int {
	parts := make([]int, len(points))
	if numParts <= 1 || len(points) == 0 {
		return parts
	}

	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	bisect(points, idx, 0, numParts, parts)

	return parts
}

func bisect(points []types.Vector, idx []int, first, numParts int, parts []int) {
	if numParts <= 1 || len(idx) == 0 {
		for _, i := range idx {
			parts[i] = first
		}

		return
	}

	axis := splitAxis(points, idx)
	slices.SortFunc(idx, func(a, b int) int {
		if c := cmp.Compare(coord(points[a], axis), coord(points[b], axis)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	left := numParts / 2
	cut := int(math.Round(float64(len(idx)) * float64(left) / float64(numParts)))
	bisect(points, idx[:cut], first, left, parts)
	bisect(points, idx[cut:], first+left, numParts-left, parts)
}

// splitAxis returns the coordinate axis with the largest variance over idx.
func splitAxis(points []types.Vector, idx []int) int {
	if len(idx) < 2 {
		return 0
	}

	dim := 0
	for _, i := range idx {
		dim = max(dim, len(points[i]))
	}

	best, bestVar := 0, -1.0
	values := make([]float64, len(idx))
	for axis := range dim {
		for j, i := range idx {
			values[j] = coord(points[i], axis)
		}
		if v := stat.Variance(values, nil); v > bestVar {
			best, bestVar = axis, v
		}
	}

	return best
}

func coord(p types.Vector, axis int) float64 {
	if axis < len(p) {
		return p[axis]
	}

	return 0
}

// centers returns the center of every element.
func centers(mg types.MultiGrid, pos types.PositionMap, elems []types.Element) []types.Vector {
	points := make([]types.Vector, len(elems))
	for i, e := range elems {
		points[i] = types.Center(mg, pos, e)
	}

	return points
}
