package redist

import (
	"fmt"
	"time"

	"github.com/arloliu/meshpart/types"
)

// PlanElement is the wire form of a mesh element.
type PlanElement struct {
	Level int    `json:"level"`
	ID    uint64 `json:"id"`
}

// MigrationPlan lists the elements one process hands to another.
type MigrationPlan struct {
	Version   int64         `json:"version"`
	Source    int           `json:"source"`
	Target    int           `json:"target"`
	Elements  []PlanElement `json:"elements"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ElementList converts the plan elements back to mesh elements.
func (p MigrationPlan) ElementList() []types.Element {
	elems := make([]types.Element, len(p.Elements))
	for i, e := range p.Elements {
		elems[i] = types.Element{Level: e.Level, ID: e.ID}
	}

	return elems
}

// BuildPlans groups the elements of a by destination rank.
//
// Elements whose partition maps to source are skipped. Plans are sorted by
// target, elements by level and ID.
//
// Returns:
//   - map[int][]types.Element: Elements per destination rank
//   - error: ErrInvalidProcessMap if a partition index has no process map entry
func BuildPlans(a *types.PartitionAssignment, processMap []int, source int) (map[int][]types.Element, error) {
	plans := make(map[int][]types.Element)

	var err error
	a.Range(func(e types.Element, part int) bool {
		if part < 0 || part >= len(processMap) {
			err = fmt.Errorf("%w: partition %d, process map length %d", types.ErrInvalidProcessMap, part, len(processMap))
			return false
		}
		if target := processMap[part]; target != source {
			plans[target] = append(plans[target], e)
		}

		return true
	})
	if err != nil {
		return nil, err
	}

	for _, elems := range plans {
		types.SortElements(elems)
	}

	return plans, nil
}
