package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/types"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnRebalanced)
	require.NotNil(t, hooks.OnError)
	require.NoError(t, hooks.OnRebalanced(context.Background(), types.QualityRecord{Label: "rebalance"}))
	require.NoError(t, hooks.OnError(context.Background(), errors.New("boom")))
}

func TestOrNop(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		hooks := OrNop(nil)
		require.NotNil(t, hooks.OnRebalanced)
		require.NotNil(t, hooks.OnError)
	})

	t.Run("keeps custom callbacks", func(t *testing.T) {
		called := false
		hooks := OrNop(&types.Hooks{
			OnError: func(context.Context, error) error {
				called = true
				return nil
			},
		})

		require.NoError(t, hooks.OnError(context.Background(), errors.New("boom")))
		require.True(t, called)
		require.NotNil(t, hooks.OnRebalanced)
	})
}
