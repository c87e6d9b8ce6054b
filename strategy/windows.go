package strategy

import "github.com/arloliu/meshpart/types"

// window is the range of grid levels handled by one hierarchy level.
type window struct {
	hlevel int
	minLvl int
	maxLvl int
}

// planWindows returns the non-empty windows of h for grids with numLevels
// levels, clamped to start at baseLevel.
//
// The result only depends on its arguments, so every process computes the
// same windows.
func planWindows(h *types.ProcessHierarchy, baseLevel, numLevels int) []window {
	top := numLevels - 1
	n := h.NumHierarchyLevels()

	var windows []window
	for hl := 0; hl < n; hl++ {
		minLvl := max(h.GridBaseLevel(hl), baseLevel)
		maxLvl := top
		if hl+1 < n {
			maxLvl = min(top, h.GridBaseLevel(hl+1)-1)
		}
		if minLvl > maxLvl {
			continue
		}
		windows = append(windows, window{hlevel: hl, minLvl: minLvl, maxLvl: maxLvl})
	}

	return windows
}
