package types

import "sort"

// PartitionAssignment maps mesh elements to local partition indices.
//
// Partition indices are translated into global ranks by the process map that
// accompanies the assignment. Partition 0 always means "stay on this process".
type PartitionAssignment struct {
	parts   map[Element]int
	highest int
}

// NewPartitionAssignment creates an empty assignment.
func NewPartitionAssignment() *PartitionAssignment {
	return &PartitionAssignment{parts: make(map[Element]int), highest: -1}
}

// Assign sets the partition of e, replacing any previous value.
func (a *PartitionAssignment) Assign(e Element, partition int) {
	a.parts[e] = partition
	if partition > a.highest {
		a.highest = partition
	}
}

// AssignAll sets the partition of every element in elems.
func (a *PartitionAssignment) AssignAll(elems []Element, partition int) {
	for _, e := range elems {
		a.Assign(e, partition)
	}
}

// Partition returns the partition of e and whether e is assigned.
func (a *PartitionAssignment) Partition(e Element) (int, bool) {
	p, ok := a.parts[e]
	return p, ok
}

// Len returns the number of assigned elements.
func (a *PartitionAssignment) Len() int { return len(a.parts) }

// NumPartitions returns the highest assigned partition index plus one.
func (a *PartitionAssignment) NumPartitions() int { return a.highest + 1 }

// Clear removes every assignment.
func (a *PartitionAssignment) Clear() {
	clear(a.parts)
	a.highest = -1
}

// Remap replaces every partition index p with remap[p].
func (a *PartitionAssignment) Remap(remap []int) {
	a.highest = -1
	for e, p := range a.parts {
		a.parts[e] = remap[p]
		a.highest = max(a.highest, remap[p])
	}
}

// Counts returns the number of elements per partition index.
func (a *PartitionAssignment) Counts() []int {
	counts := make([]int, a.NumPartitions())
	for _, p := range a.parts {
		counts[p]++
	}

	return counts
}

// CountsOnLevel returns the number of elements per partition index on one grid level.
func (a *PartitionAssignment) CountsOnLevel(level int) []int {
	counts := make([]int, a.NumPartitions())
	for e, p := range a.parts {
		if e.Level == level {
			counts[p]++
		}
	}

	return counts
}

// ElementsOf returns the elements assigned to partition, sorted by level and ID.
func (a *PartitionAssignment) ElementsOf(partition int) []Element {
	var elems []Element
	for e, p := range a.parts {
		if p == partition {
			elems = append(elems, e)
		}
	}
	SortElements(elems)

	return elems
}

// Range calls fn for every assigned element until fn returns false.
func (a *PartitionAssignment) Range(fn func(e Element, partition int) bool) {
	for e, p := range a.parts {
		if !fn(e, p) {
			return
		}
	}
}

// SortElements sorts elems by level, then ID.
func SortElements(elems []Element) {
	sort.Slice(elems, func(i, j int) bool {
		if elems[i].Level != elems[j].Level {
			return elems[i].Level < elems[j].Level
		}
		return elems[i].ID < elems[j].ID
	})
}
