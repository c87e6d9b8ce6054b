// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
)

// EnsureKVBucketWithRetry creates or opens a KV bucket.
//
// Every rank of a job calls this for the same bucket at roughly the same time,
// so a concurrent creation by another rank is expected: ErrBucketExists falls
// back to opening the bucket. Other failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of retries (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: The last error once retries are exhausted or ctx is done
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "meshpart-collectives",
//	    TTL:    10 * time.Minute,
//	}, 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var kv jetstream.KeyValue
	attempts := 0
	op := func() error {
		attempts++

		created, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			kv = created
			return nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			existing, openErr := js.KeyValue(ctx, config.Bucket)
			if openErr == nil {
				kv = existing
				return nil
			}

			return fmt.Errorf("bucket exists but failed to open: %w", openErr)
		}

		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx) //nolint:gosec // maxRetries is positive
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w", config.Bucket, attempts, err)
	}

	return kv, nil
}
