package redist

import (
	"context"

	"github.com/arloliu/meshpart/types"
)

// Nop is a redistributor that moves nothing.
type Nop struct{}

var _ types.Redistributor = Nop{}

// NewNop returns a redistributor that ignores every plan.
func NewNop() Nop { return Nop{} }

// Redistribute does nothing.
func (Nop) Redistribute(context.Context, *types.PartitionAssignment, []int) error { return nil }

// Chain runs redistributors in order and stops at the first error.
//
// Every process must build the same chain, otherwise collective redistributors
// in it lose lock-step.
func Chain(rs ...types.Redistributor) types.Redistributor {
	return types.RedistributorFunc(func(ctx context.Context, a *types.PartitionAssignment, processMap []int) error {
		for _, r := range rs {
			if r == nil {
				continue
			}
			if err := r.Redistribute(ctx, a, processMap); err != nil {
				return err
			}
		}

		return nil
	})
}
