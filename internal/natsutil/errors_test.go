package natsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/types"
)

func TestIsConnectivityError(t *testing.T) {
	connectivity := []error{
		types.ErrConnectivity,
		nats.ErrTimeout,
		fmt.Errorf("put failed: %w", nats.ErrNoServers),
		nats.ErrConnectionClosed,
		errors.New("dial tcp 127.0.0.1:4222: connection refused"),
		errors.New("read: i/o timeout"),
	}
	for _, err := range connectivity {
		require.True(t, IsConnectivityError(err), "%v", err)
	}

	require.False(t, IsConnectivityError(nil))
	require.False(t, IsConnectivityError(errors.New("invalid key")))
	require.False(t, IsConnectivityError(types.ErrPublishFailed))
}

func TestRetry(t *testing.T) {
	t.Run("retries connectivity errors", func(t *testing.T) {
		calls := 0
		err := Retry(t.Context(), 3, func() error {
			calls++
			if calls < 3 {
				return nats.ErrTimeout
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		err := Retry(t.Context(), 3, func() error {
			calls++
			return errors.New("invalid key")
		})
		require.EqualError(t, err, "invalid key")
		require.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := Retry(t.Context(), 1, func() error {
			calls++
			return nats.ErrNoServers
		})
		require.ErrorIs(t, err, nats.ErrNoServers)
		require.Equal(t, 2, calls)
	})

	t.Run("negative max retries runs once", func(t *testing.T) {
		calls := 0
		err := Retry(t.Context(), -1, func() error {
			calls++
			return nats.ErrNoServers
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := Retry(ctx, 3, func() error { return nats.ErrTimeout })
		require.Error(t, err)
	})
}
