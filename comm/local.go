package comm

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// LocalCluster simulates a job of several ranks inside one process.
//
// Each rank owns its own Communicator; the communicators meet in shared slots.
type LocalCluster struct {
	tr    *localTransport
	comms []*Communicator
}

// NewLocalCluster creates an in-process cluster of size ranks.
//
// Parameters:
//   - size: Number of ranks (values below 1 are treated as 1)
//   - opts: Options applied to every rank's communicator
//
// Returns:
//   - *LocalCluster: Cluster whose ranks are driven with Run or Communicator
//
// Example:
//
//	cluster := comm.NewLocalCluster(4)
//	err := cluster.Run(ctx, func(ctx context.Context, world *comm.Communicator) error {
//	    total, err := world.AllReduce(ctx, 1, types.ReduceSum)
//	    ...
//	})
func NewLocalCluster(size int, opts ...Option) *LocalCluster {
	size = max(size, 1)
	s := applyOptions(opts)
	tr := &localTransport{slots: xsync.NewMap[string, *localSlot]()}

	lc := &LocalCluster{tr: tr, comms: make([]*Communicator, size)}
	for r := range lc.comms {
		lc.comms[r] = newWorld(r, size, tr, s)
	}

	return lc
}

// Size returns the number of ranks.
func (lc *LocalCluster) Size() int { return len(lc.comms) }

// Communicator returns the world communicator of rank.
func (lc *LocalCluster) Communicator(rank int) *Communicator { return lc.comms[rank] }

// Close closes every rank's communicator.
func (lc *LocalCluster) Close() {
	for _, c := range lc.comms {
		c.Close()
	}
}

// Run executes fn once per rank, each in its own goroutine, and waits for all.
//
// See RunAll for error handling.
func (lc *LocalCluster) Run(ctx context.Context, fn func(ctx context.Context, world *Communicator) error) error {
	return RunAll(ctx, lc.comms, fn)
}

// RunAll executes fn once per communicator, each in its own goroutine, and waits for all.
//
// The first failing rank cancels the context passed to the others so that ranks
// blocked in a collective return. Every rank's error is reported, prefixed with
// its rank.
func RunAll(ctx context.Context, comms []*Communicator, fn func(ctx context.Context, world *Communicator) error) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, c := range comms {
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("rank %d: %w", c.Rank(), err))
				mu.Unlock()

				return err
			}

			return nil
		})
	}
	_ = g.Wait()

	return errs.ErrorOrNil()
}

type localSlot struct {
	mu      sync.Mutex
	values  []float64
	arrived int
	read    int
	done    chan struct{}
}

type localTransport struct {
	slots *xsync.Map[string, *localSlot]
}

func (t *localTransport) name() string { return "local" }

func (t *localTransport) exchange(ctx context.Context, slot string, ranks []int, rank int, value float64) ([]float64, error) {
	idx, _ := slices.BinarySearch(ranks, rank)

	s, _ := t.slots.LoadOrStore(slot, &localSlot{
		values: make([]float64, len(ranks)),
		done:   make(chan struct{}),
	})

	s.mu.Lock()
	s.values[idx] = value
	s.arrived++
	if s.arrived == len(ranks) {
		close(s.done)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for collective %s: %w", slot, ctx.Err())
	}

	// values are immutable once done is closed
	out := slices.Clone(s.values)

	s.mu.Lock()
	s.read++
	last := s.read == len(ranks)
	s.mu.Unlock()
	if last {
		t.slots.Delete(slot)
	}

	return out, nil
}
