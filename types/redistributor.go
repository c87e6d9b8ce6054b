package types

import "context"

// Redistributor moves elements to the processes chosen by a Partitioner.
//
// Redistribute is collective: every process calls it after Partition with its own
// assignment and process map. processMap[i] is the global rank that receives the
// elements assigned partition index i.
type Redistributor interface {
	Redistribute(ctx context.Context, assignment *PartitionAssignment, processMap []int) error
}

// RedistributorFunc adapts a function to Redistributor.
type RedistributorFunc func(ctx context.Context, assignment *PartitionAssignment, processMap []int) error

// Redistribute calls f.
func (f RedistributorFunc) Redistribute(ctx context.Context, assignment *PartitionAssignment, processMap []int) error {
	return f(ctx, assignment, processMap)
}
