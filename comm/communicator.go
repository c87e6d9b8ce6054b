package comm

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/meshpart/internal/hash"
	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/internal/metrics"
	"github.com/arloliu/meshpart/types"
)

// transport delivers one contribution per member of a rank set for a named slot.
type transport interface {
	name() string

	// exchange blocks until every member contributed to slot and returns the
	// contributions ordered like ranks.
	exchange(ctx context.Context, slot string, ranks []int, rank int, value float64) ([]float64, error)
}

// Communicator implements types.Communicator on top of a transport.
type Communicator struct {
	rank  int
	ranks []int
	key   string

	tr     transport
	seqs   *xsync.Map[string, *atomic.Uint64]
	closed *atomic.Bool

	logger  types.Logger
	metrics types.MetricsCollector
}

// Compile-time assertion that Communicator implements types.Communicator.
var _ types.Communicator = (*Communicator)(nil)

// Option configures communicators.
type Option func(*settings)

type settings struct {
	logger  types.Logger
	metrics types.MetricsCollector
}

// WithLogger sets the logger used for collective diagnostics.
func WithLogger(logger types.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the collector receiving collective latencies and failures.
func WithMetrics(m types.MetricsCollector) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

func applyOptions(opts []Option) settings {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = logging.OrNop(s.logger)
	s.metrics = metrics.OrNop(s.metrics)

	return s
}

// newWorld creates the communicator over ranks [0, size) for one process.
func newWorld(rank, size int, tr transport, s settings) *Communicator {
	ranks := make([]int, size)
	for i := range ranks {
		ranks[i] = i
	}

	return &Communicator{
		rank:    rank,
		ranks:   ranks,
		key:     hash.GroupKey(ranks),
		tr:      tr,
		seqs:    xsync.NewMap[string, *atomic.Uint64](),
		closed:  &atomic.Bool{},
		logger:  s.logger,
		metrics: s.metrics,
	}
}

// Rank returns the global rank of the calling process.
func (c *Communicator) Rank() int { return c.rank }

// Size returns the number of ranks in this communicator.
func (c *Communicator) Size() int { return len(c.ranks) }

// Ranks returns the member ranks in ascending order.
func (c *Communicator) Ranks() []int { return slices.Clone(c.ranks) }

// Contains reports whether rank is a member.
func (c *Communicator) Contains(rank int) bool {
	_, found := slices.BinarySearch(c.ranks, rank)
	return found
}

// Sub returns a communicator restricted to ranks.
//
// Sub-communicators share the sequence counters and the closed state of their parent.
func (c *Communicator) Sub(ranks []int) types.Communicator {
	sorted := slices.Clone(ranks)
	sort.Ints(sorted)
	sorted = slices.Compact(sorted)

	sub := *c
	sub.ranks = sorted
	sub.key = hash.GroupKey(sorted)

	return &sub
}

// Close makes every further collective on this communicator and its
// sub-communicators fail with ErrCommunicatorClosed.
func (c *Communicator) Close() {
	c.closed.Store(true)
}

// AllReduce combines value over all members.
func (c *Communicator) AllReduce(ctx context.Context, value float64, op types.ReduceOp) (float64, error) {
	values, err := c.collect(ctx, op.String(), value)
	if err != nil {
		return 0, err
	}

	return op.Apply(values), nil
}

// AllGather collects one value per member, ordered like Ranks().
func (c *Communicator) AllGather(ctx context.Context, value float64) ([]float64, error) {
	return c.collect(ctx, "gather", value)
}

func (c *Communicator) collect(ctx context.Context, op string, value float64) ([]float64, error) {
	if c.closed.Load() {
		return nil, types.ErrCommunicatorClosed
	}
	if !c.Contains(c.rank) {
		return nil, types.ErrNotMember
	}
	if len(c.ranks) == 1 {
		return []float64{value}, nil
	}

	counter, _ := c.seqs.LoadOrStore(c.key, &atomic.Uint64{})
	slot := c.key + "." + strconv.FormatUint(counter.Add(1), 10)

	start := time.Now()
	values, err := c.tr.exchange(ctx, slot, c.ranks, c.rank, value)
	if err != nil {
		c.metrics.RecordCollectiveFailure(c.tr.name(), op)
		c.logger.Warn("collective failed",
			"transport", c.tr.name(),
			"op", op,
			"slot", slot,
			"rank", c.rank,
			"error", err,
		)

		return nil, err
	}
	c.metrics.RecordCollectiveDuration(c.tr.name(), op, time.Since(start).Seconds())

	return values, nil
}
