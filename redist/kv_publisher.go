package redist

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/internal/metrics"
	"github.com/arloliu/meshpart/internal/natsutil"
	"github.com/arloliu/meshpart/types"
)

// publishRetries bounds retries of a plan write on connectivity errors.
const publishRetries = 3

// KVPublisher publishes migration plans to a NATS KV bucket.
//
// Keys have the form "prefix.<source>.<target>". Every publish replaces the
// plans of the calling process and removes its plans for targets that no
// longer receive anything, so consumers never act on stale plans. Versions are
// monotonic per source, also across restarts (see DiscoverHighestVersion).
type KVPublisher struct {
	kv        jetstream.KeyValue
	prefix    string
	keyPrefix string // "prefix.<source>."
	source    int

	mu          sync.Mutex
	version     int64
	lastPublish time.Time

	logger  types.Logger
	metrics types.MetricsCollector
}

var _ types.Redistributor = (*KVPublisher)(nil)

// NewKVPublisher creates a publisher for the process with rank source.
//
// Parameters:
//   - kv: KV bucket receiving the plans
//   - prefix: Key prefix (e.g., "migration")
//   - source: Global rank of the calling process
//   - logger: Logger for publish events (nil for none)
//   - m: Metrics collector (nil for none)
//
// Returns:
//   - *KVPublisher: Publisher starting at version 0
func NewKVPublisher(kv jetstream.KeyValue, prefix string, source int, logger types.Logger, m types.MetricsCollector) *KVPublisher {
	return &KVPublisher{
		kv:        kv,
		prefix:    prefix,
		keyPrefix: fmt.Sprintf("%s.%d.", prefix, source),
		source:    source,
		logger:    logging.OrNop(logger),
		metrics:   metrics.OrNop(m),
	}
}

// DiscoverHighestVersion scans the bucket for the highest version published by this source.
func (p *KVPublisher) DiscoverHighestVersion(ctx context.Context) error {
	keys, err := p.ownKeys(ctx)
	if err != nil {
		return err
	}

	highest := int64(0)
	for _, key := range keys {
		plan, err := p.get(ctx, key)
		if err != nil {
			p.logger.Debug("skipping unreadable migration plan", "key", key, "error", err)
			continue
		}
		highest = max(highest, plan.Version)
	}

	p.mu.Lock()
	p.version = highest
	p.mu.Unlock()

	if highest > 0 {
		p.logger.Info("discovered existing migration plans", "source", p.source, "highest_version", highest)
	}

	return nil
}

// Redistribute publishes one plan per destination rank.
//
// The call is local to the calling process; no collective is involved.
func (p *KVPublisher) Redistribute(ctx context.Context, a *types.PartitionAssignment, processMap []int) error {
	plans, err := BuildPlans(a, processMap, p.source)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.version++
	now := time.Now()

	active := make(map[string]bool, len(plans))
	for target := range plans {
		active[strconv.Itoa(target)] = true
	}
	if err := p.cleanup(ctx, active); err != nil {
		p.logger.Warn("stale migration plan cleanup failed, continuing with publish", "error", err)
	}

	total := 0
	for target, elems := range plans {
		plan := MigrationPlan{
			Version:   p.version,
			Source:    p.source,
			Target:    target,
			Elements:  make([]PlanElement, len(elems)),
			CreatedAt: now,
		}
		for i, e := range elems {
			plan.Elements[i] = PlanElement{Level: e.Level, ID: e.ID}
		}

		data, err := json.Marshal(plan)
		if err != nil {
			return fmt.Errorf("failed to marshal migration plan: %w", err)
		}

		key := p.keyPrefix + strconv.Itoa(target)
		start := time.Now()
		err = natsutil.Retry(ctx, publishRetries, func() error {
			_, err := p.kv.Put(ctx, key, data)
			return err
		})
		p.metrics.RecordKVOperationDuration("put", time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("%w: key %s: %w", types.ErrPublishFailed, key, err)
		}
		total += len(elems)
	}

	p.lastPublish = now
	p.metrics.RecordMigrationPlan(len(plans), total)

	p.logger.Debug("migration plans published",
		"source", p.source,
		"version", p.version,
		"targets", len(plans),
		"elements", total,
	)

	return nil
}

// Incoming returns the current plans of every source that sends elements to target.
func (p *KVPublisher) Incoming(ctx context.Context, target int) ([]MigrationPlan, error) {
	keys, err := p.kv.Keys(ctx)
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list KV keys: %w", err)
	}

	suffix := "." + strconv.Itoa(target)
	var plans []MigrationPlan
	for _, key := range keys {
		if !strings.HasPrefix(key, p.prefix+".") || !strings.HasSuffix(key, suffix) {
			continue
		}
		plan, err := p.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if plan.Target == target {
			plans = append(plans, plan)
		}
	}

	return plans, nil
}

// CleanupAll removes every plan published by this source.
func (p *KVPublisher) CleanupAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cleanup(ctx, nil)
}

// CurrentVersion returns the version of the last publish.
func (p *KVPublisher) CurrentVersion() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.version
}

// LastPublishTime returns the time of the last successful publish.
func (p *KVPublisher) LastPublishTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastPublish
}

// cleanup deletes own plans whose target is not in active (nil deletes all).
func (p *KVPublisher) cleanup(ctx context.Context, active map[string]bool) error {
	keys, err := p.ownKeys(ctx)
	if err != nil {
		return err
	}

	deleted := 0
	for _, key := range keys {
		target := strings.TrimPrefix(key, p.keyPrefix)
		if active != nil && active[target] {
			continue
		}

		start := time.Now()
		err := p.kv.Delete(ctx, key)
		p.metrics.RecordKVOperationDuration("delete", time.Since(start).Seconds())
		if err != nil {
			p.logger.Warn("failed to delete stale migration plan", "key", key, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		p.logger.Debug("cleaned up stale migration plans", "source", p.source, "deleted", deleted)
	}

	return nil
}

func (p *KVPublisher) ownKeys(ctx context.Context) ([]string, error) {
	keys, err := p.kv.Keys(ctx)
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list KV keys: %w", err)
	}

	own := keys[:0]
	for _, key := range keys {
		if strings.HasPrefix(key, p.keyPrefix) {
			own = append(own, key)
		}
	}

	return own, nil
}

func (p *KVPublisher) get(ctx context.Context, key string) (MigrationPlan, error) {
	start := time.Now()
	entry, err := p.kv.Get(ctx, key)
	p.metrics.RecordKVOperationDuration("get", time.Since(start).Seconds())
	if err != nil {
		return MigrationPlan{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var plan MigrationPlan
	if err := json.Unmarshal(entry.Value(), &plan); err != nil {
		return MigrationPlan{}, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return plan, nil
}
