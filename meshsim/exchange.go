package meshsim

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/types"
)

// record is the migration payload of one element.
type record struct {
	elem      types.Element
	corners   [4]r2.Vec
	parent    types.Element
	hasParent bool
	children  []types.Element
	ghost     bool
}

// Exchange migrates elements between the grids of an in-process cluster.
//
// Grid i belongs to rank i. Each rank only touches its own grid; records travel
// through per-rank inboxes and two world reductions separate sending from receiving.
type Exchange struct {
	grids  []*Grid
	logger types.Logger

	mu    sync.Mutex
	inbox [][]record
}

// ExchangeOption configures an Exchange.
type ExchangeOption func(*Exchange)

// WithLogger sets the logger for migration summaries.
func WithLogger(logger types.Logger) ExchangeOption {
	return func(x *Exchange) {
		x.logger = logger
	}
}

// NewExchange creates an exchange over grids, indexed by rank.
func NewExchange(grids []*Grid, opts ...ExchangeOption) *Exchange {
	x := &Exchange{
		grids: grids,
		inbox: make([][]record, len(grids)),
	}
	for _, opt := range opts {
		opt(x)
	}
	x.logger = logging.OrNop(x.logger)

	return x
}

// Grid returns the grid of rank.
func (x *Exchange) Grid(rank int) *Grid { return x.grids[rank] }

// Grids returns all grids, indexed by rank.
func (x *Exchange) Grids() []*Grid { return x.grids }

// Redistributor returns the redistributor for the calling process of world.
func (x *Exchange) Redistributor(world types.Communicator) types.Redistributor {
	return types.RedistributorFunc(func(ctx context.Context, a *types.PartitionAssignment, processMap []int) error {
		return x.redistribute(ctx, world, a, processMap)
	})
}

// redistribute sends every owned element whose partition maps to another rank,
// then inserts everything received.
//
// A moved element whose parent stays behind arrives together with a ghost copy
// of the parent. A moved element with children that stay behind is kept as a
// ghost on the sender.
func (x *Exchange) redistribute(ctx context.Context, world types.Communicator, a *types.PartitionAssignment, processMap []int) error {
	rank := world.Rank()
	if rank < 0 || rank >= len(x.grids) || world.Size() != len(x.grids) {
		return fmt.Errorf("exchange holds %d grids, world has %d ranks (rank %d)", len(x.grids), world.Size(), rank)
	}
	g := x.grids[rank]

	targets, planErr := planTargets(g, a, processMap, rank)

	failed := 0.0
	sent := 0
	if planErr != nil {
		failed = 1
	} else {
		outgoing := g.pack(targets)
		x.mu.Lock()
		for target, recs := range outgoing {
			x.inbox[target] = append(x.inbox[target], recs...)
			sent += len(recs)
		}
		x.mu.Unlock()
	}

	anyFailed, err := world.AllReduce(ctx, failed, types.ReduceMax)
	if err != nil {
		return fmt.Errorf("failed to synchronize migration: %w", err)
	}
	if anyFailed > 0 {
		x.mu.Lock()
		x.inbox[rank] = nil
		x.mu.Unlock()

		if planErr != nil {
			return planErr
		}

		return fmt.Errorf("%w: migration aborted by another process", types.ErrInvalidProcessMap)
	}

	g.release(targets)

	x.mu.Lock()
	incoming := x.inbox[rank]
	x.inbox[rank] = nil
	x.mu.Unlock()
	g.receive(incoming)

	total, err := world.AllReduce(ctx, float64(sent), types.ReduceSum)
	if err != nil {
		return fmt.Errorf("failed to complete migration: %w", err)
	}

	x.logger.Debug("migrated elements",
		"rank", rank,
		"sent", sent,
		"received", len(incoming),
		"total", int(total),
		"owned", g.NumOwned(),
	)

	return nil
}

// planTargets returns the destination rank of every owned element leaving g.
func planTargets(g *Grid, a *types.PartitionAssignment, processMap []int, rank int) (map[types.Element]int, error) {
	targets := make(map[types.Element]int)
	var err error
	a.Range(func(e types.Element, p int) bool {
		c, ok := g.cells[e]
		if !ok || c.ghost {
			return true
		}
		if p < 0 || p >= len(processMap) {
			err = fmt.Errorf("%w: partition %d of element %s outside process map of length %d",
				types.ErrInvalidProcessMap, p, e, len(processMap))

			return false
		}
		if t := processMap[p]; t != rank {
			targets[e] = t
		}

		return true
	})

	return targets, err
}

// pack builds the records sent to each target rank.
func (g *Grid) pack(targets map[types.Element]int) map[int][]record {
	out := make(map[int][]record)
	ghostsSent := make(map[int]map[types.Element]bool)

	moving := make([]types.Element, 0, len(targets))
	for e := range targets {
		moving = append(moving, e)
	}
	types.SortElements(moving)

	for _, e := range moving {
		t := targets[e]
		c := g.cells[e]
		out[t] = append(out[t], g.record(e, false))

		if !c.hasParent {
			continue
		}
		if _, ok := g.cells[c.parent]; !ok {
			continue
		}
		if pt, ok := targets[c.parent]; ok && pt == t {
			continue
		}
		if ghostsSent[t] == nil {
			ghostsSent[t] = make(map[types.Element]bool)
		}
		if !ghostsSent[t][c.parent] {
			ghostsSent[t][c.parent] = true
			out[t] = append(out[t], g.record(c.parent, true))
		}
	}

	return out
}

func (g *Grid) record(e types.Element, ghost bool) record {
	c := g.cells[e]

	return record{
		elem:      e,
		corners:   c.corners,
		parent:    c.parent,
		hasParent: c.hasParent,
		children:  slices.Clone(c.children),
		ghost:     ghost,
	}
}

// release removes elements that left, keeping a ghost copy where children stay behind.
func (g *Grid) release(targets map[types.Element]int) {
	drop := make(map[types.Element]bool, len(targets))
	for e := range targets {
		stays := false
		for _, child := range g.Children(e) {
			if _, moving := targets[child]; !moving {
				stays = true
				break
			}
		}
		if stays {
			g.cells[e].ghost = true
		} else {
			drop[e] = true
		}
	}
	g.removeAll(drop)
}

// receive inserts records, coarse levels first. An owned record replaces a ghost copy.
func (g *Grid) receive(recs []record) {
	slices.SortStableFunc(recs, func(a, b record) int { return a.elem.Level - b.elem.Level })

	for _, rec := range recs {
		if c, ok := g.cells[rec.elem]; ok {
			if !rec.ghost {
				c.ghost = false
			}
			for _, child := range rec.children {
				if !slices.Contains(c.children, child) {
					c.children = append(c.children, child)
				}
			}

			continue
		}

		e := g.add(rec.elem.Level, rec.elem.ID, rec.corners, rec.parent, rec.hasParent, rec.ghost)
		g.cells[e].children = rec.children
	}
}
