package types

import "context"

// ReduceOp selects how a collective reduction combines contributions.
type ReduceOp int

const (
	// ReduceMin keeps the smallest contribution.
	ReduceMin ReduceOp = iota
	// ReduceMax keeps the largest contribution.
	ReduceMax
	// ReduceSum adds all contributions.
	ReduceSum
)

// String returns the lower-case name of the operation.
func (op ReduceOp) String() string {
	switch op {
	case ReduceMin:
		return "min"
	case ReduceMax:
		return "max"
	case ReduceSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Apply folds values with op. An empty slice yields 0.
func (op ReduceOp) Apply(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	acc := values[0]
	for _, v := range values[1:] {
		switch op {
		case ReduceMin:
			acc = min(acc, v)
		case ReduceMax:
			acc = max(acc, v)
		case ReduceSum:
			acc += v
		}
	}

	return acc
}

// Communicator performs blocking collective operations over a fixed set of process ranks.
//
// Collectives are matched by call order: every member must issue the same sequence
// of collective calls on communicators over the same rank set. A member that skips
// a call blocks its peers until their context expires.
//
// A Communicator is used by one goroutine of its process at a time.
type Communicator interface {
	// Rank returns the global rank of the calling process.
	Rank() int

	// Size returns the number of ranks in this communicator.
	Size() int

	// Ranks returns the global ranks of this communicator in ascending order.
	Ranks() []int

	// Contains reports whether rank is a member.
	Contains(rank int) bool

	// Sub returns a communicator restricted to ranks (deduplicated and sorted).
	// The calling process does not need to be a member; collectives on a
	// communicator it does not belong to fail with ErrNotMember.
	Sub(ranks []int) Communicator

	// AllReduce combines value over all members; every member receives the result.
	AllReduce(ctx context.Context, value float64, op ReduceOp) (float64, error)

	// AllGather collects one value per member, ordered like Ranks().
	AllGather(ctx context.Context, value float64) ([]float64, error)
}

// IsMember reports whether the calling process belongs to c.
func IsMember(c Communicator) bool {
	return c.Contains(c.Rank())
}
