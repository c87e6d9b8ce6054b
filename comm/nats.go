package comm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arloliu/meshpart/internal/kvutil"
	"github.com/arloliu/meshpart/internal/natsutil"
	"github.com/arloliu/meshpart/types"
)

const (
	defaultCollectiveBucket  = "meshpart-collectives"
	defaultCollectiveTTL     = 10 * time.Minute
	defaultOperationTimeout  = 30 * time.Second
	defaultCollectiveRetries = 5
)

// NATSConfig configures a NATS backed communicator.
type NATSConfig struct {
	// Bucket is the JetStream KV bucket holding contributions.
	Bucket string

	// Session identifies the job; every rank of a job must use the same value.
	Session string

	// Rank is the global rank of this process, in [0, Size).
	Rank int

	// Size is the number of processes of the job.
	Size int

	// TTL bounds how long contributions stay in the bucket.
	TTL time.Duration

	// OperationTimeout bounds a single collective.
	OperationTimeout time.Duration

	// MaxRetries bounds retries of KV writes on connectivity errors.
	MaxRetries int
}

// NewSession returns a fresh session identifier for a job.
//
// The launcher generates it once and hands it to every rank.
func NewSession() string {
	return uuid.NewString()
}

func (c *NATSConfig) setDefaults() {
	if c.Bucket == "" {
		c.Bucket = defaultCollectiveBucket
	}
	if c.TTL == 0 {
		c.TTL = defaultCollectiveTTL
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = defaultOperationTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultCollectiveRetries
	}
}

func (c *NATSConfig) validate() error {
	if c.Session == "" {
		return errors.New("session is required")
	}
	if _, err := uuid.Parse(c.Session); err != nil {
		return fmt.Errorf("session must be a UUID: %w", err)
	}
	if c.Size < 1 {
		return fmt.Errorf("size must be >= 1, got %d", c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("rank %d outside [0, %d)", c.Rank, c.Size)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must be >= 0, got %d", c.MaxRetries)
	}

	return nil
}

// NewNATS creates the world communicator of one rank on top of NATS JetStream.
//
// Contributions are written to the KV key "<session>.<group>.<seq>.<rank>" and
// collected with a key watch, so ranks may arrive in any order.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - cfg: Communicator configuration (Session, Rank and Size are required)
//   - opts: Logger and metrics options
//
// Returns:
//   - *Communicator: World communicator of cfg.Rank
//   - error: Invalid configuration or bucket creation failure
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	world, err := comm.NewNATS(ctx, js, comm.NATSConfig{Session: session, Rank: rank, Size: size})
func NewNATS(ctx context.Context, js jetstream.JetStream, cfg NATSConfig, opts ...Option) (*Communicator, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}

	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "meshpart collective contributions",
		TTL:         cfg.TTL,
		Storage:     jetstream.MemoryStorage,
	}, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to open collective bucket: %w", err)
	}

	s := applyOptions(opts)
	tr := &natsTransport{kv: kv, cfg: cfg, metrics: s.metrics}

	return newWorld(cfg.Rank, cfg.Size, tr, s), nil
}

type contribution struct {
	Rank  int     `msgpack:"r"`
	Value float64 `msgpack:"v"`
}

type natsTransport struct {
	kv      jetstream.KeyValue
	cfg     NATSConfig
	metrics types.MetricsCollector
}

func (t *natsTransport) name() string { return "nats" }

func (t *natsTransport) exchange(ctx context.Context, slot string, ranks []int, rank int, value float64) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.OperationTimeout)
	defer cancel()

	prefix := t.cfg.Session + "." + slot + "."
	if err := t.put(ctx, prefix+strconv.Itoa(rank), contribution{Rank: rank, Value: value}); err != nil {
		return nil, err
	}

	watchStart := time.Now()
	watcher, err := t.kv.Watch(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to watch collective %s: %w", slot, err)
	}
	defer func() { _ = watcher.Stop() }()

	index := make(map[int]int, len(ranks))
	for i, r := range ranks {
		index[r] = i
	}
	values := make([]float64, len(ranks))
	seen := make([]bool, len(ranks))
	remaining := len(ranks)

	for remaining > 0 {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s, %d of %d contributions missing", types.ErrCollectiveTimeout, slot, remaining, len(ranks))
			}

			return nil, ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil, fmt.Errorf("watcher for collective %s closed", slot)
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			var c contribution
			if err := msgpack.Unmarshal(entry.Value(), &c); err != nil {
				return nil, fmt.Errorf("failed to decode contribution %s: %w", entry.Key(), err)
			}
			i, member := index[c.Rank]
			if !member || seen[i] {
				continue
			}
			values[i] = c.Value
			seen[i] = true
			remaining--
		}
	}
	t.metrics.RecordKVOperationDuration("watch", time.Since(watchStart).Seconds())

	return values, nil
}

// put writes a contribution, retrying on connectivity errors.
func (t *natsTransport) put(ctx context.Context, key string, c contribution) error {
	payload, err := msgpack.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode contribution: %w", err)
	}

	start := time.Now()
	err = natsutil.Retry(ctx, t.cfg.MaxRetries, func() error {
		_, err := t.kv.Put(ctx, key, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to publish contribution %s: %w", key, err)
	}
	t.metrics.RecordKVOperationDuration("put", time.Since(start).Seconds())

	return nil
}
