package types

import "context"

// Hooks defines callbacks for LoadBalancer events.
//
// All hooks are optional and run synchronously on the calling goroutine, after the
// collective part of the operation has completed, so they never affect lock-step
// between processes. Hook errors are logged and do not fail the operation.
//
// Example:
//
//	hooks := &meshpart.Hooks{
//	    OnRebalanced: func(ctx context.Context, rec meshpart.QualityRecord) error {
//	        log.Printf("quality after rebalance: %.2f", rec.MinQuality)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnRebalanced is called after a rebalance redistributed elements, with the
	// quality record taken afterwards.
	OnRebalanced func(ctx context.Context, record QualityRecord) error

	// OnError is called when Rebalance fails.
	OnError func(ctx context.Context, err error) error
}
