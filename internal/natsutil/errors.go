// Package natsutil holds the NATS error handling shared by the collective
// transport and the migration plan publisher.
package natsutil

import (
	"context"
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/meshpart/types"
)

// IsConnectivityError reports whether err means the server could not be reached
// or did not answer in time, as opposed to a rejected request.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Retry runs op until it succeeds, retrying connectivity errors with
// exponential backoff at most maxRetries times.
//
// Any other error ends the loop at once: a collective contribution or a
// migration plan that the server rejected will not be accepted later.
// Negative maxRetries count as zero.
//
// Returns:
//   - error: The last error of op, or the context error if ctx ended first
func Retry(ctx context.Context, maxRetries int, op func() error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(maxRetries, 0))), //nolint:gosec // clamped above
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsConnectivityError(err) {
			return backoff.Permanent(err)
		}

		return err
	}, b)
}
