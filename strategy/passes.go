package strategy

import "github.com/arloliu/meshpart/types"

// clusterSiblings moves all children of every parent on level minLvl-1 into
// the partition of the first child.
func clusterSiblings(mg types.MultiGrid, a *types.PartitionAssignment, minLvl int) {
	if minLvl <= 0 {
		return
	}

	for _, parent := range mg.Elements(minLvl - 1) {
		children := mg.Children(parent)
		if len(children) < 2 {
			continue
		}

		p, ok := a.Partition(children[0])
		if !ok {
			continue
		}
		a.AssignAll(children[1:], p)
	}
}

// propagateToChildren copies the partition of every element on levels
// [minLvl, maxLvl) to its children, top-down, so whole subtrees follow their root.
func propagateToChildren(mg types.MultiGrid, a *types.PartitionAssignment, minLvl, maxLvl int) {
	for lvl := minLvl; lvl < maxLvl; lvl++ {
		for _, e := range mg.Elements(lvl) {
			p, ok := a.Partition(e)
			if !ok {
				continue
			}
			a.AssignAll(mg.Children(e), p)
		}
	}
}
