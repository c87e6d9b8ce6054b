package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	meshtest "github.com/arloliu/meshpart/testing"
)

func TestEnsureKVBucketWithRetry(t *testing.T) {
	_, nc := meshtest.StartEmbeddedNATS(t)

	ctx := context.Background()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
			Bucket: "kvutil-create",
			TTL:    5 * time.Second,
		}, 3)
		require.NoError(t, err)
		require.Equal(t, "kvutil-create", kv.Bucket())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{Bucket: "kvutil-existing", TTL: 5 * time.Second}
		first, err := js.CreateKeyValue(ctx, cfg)
		require.NoError(t, err)
		_, err = first.Put(ctx, "k", []byte("v"))
		require.NoError(t, err)

		kv, err := EnsureKVBucketWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		entry, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), entry.Value())
	})

	t.Run("concurrent ranks share the bucket", func(t *testing.T) {
		const ranks = 8
		cfg := jetstream.KeyValueConfig{Bucket: "kvutil-concurrent", TTL: 5 * time.Second}

		var wg sync.WaitGroup
		errs := make([]error, ranks)
		for i := range ranks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = EnsureKVBucketWithRetry(ctx, js, cfg, 5)
			}()
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, "rank %d", i)
		}
	})

	t.Run("expired context fails", func(t *testing.T) {
		shortCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := EnsureKVBucketWithRetry(shortCtx, js, jetstream.KeyValueConfig{Bucket: "kvutil-timeout"}, 3)
		require.Error(t, err)
		require.Contains(t, err.Error(), "context")
	})
}
