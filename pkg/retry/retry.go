// Package retry implements bounded retry with exponential backoff for
// transient failures, keyed off the error codes in pkg/errors: NETWORK and
// TIMEOUT errors retry, everything else fails fast.
package retry

import (
	"context"
	"time"

	"github.com/viewgrid/viewgrid/pkg/errors"
)

// Do executes fn up to attempts times with exponential backoff. Only
// transient errors (per [IsTransient]) are retried; other errors return
// immediately. The delay doubles after each failed attempt. Returns the
// last error if all attempts fail, or ctx.Err() if cancelled.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsTransient(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// WithBackoff is a convenience wrapper around [Do] with defaults suited
// to reconnecting a stream: 3 attempts with 1 second initial delay.
func WithBackoff(ctx context.Context, fn func() error) error {
	return Do(ctx, 3, time.Second, fn)
}

// IsTransient reports whether an error is worth retrying: network and
// timeout failures are, everything else (validation, corrupt data,
// not-found) is not.
func IsTransient(err error) bool {
	return errors.Is(err, errors.ErrCodeNetwork) || errors.Is(err, errors.ErrCodeTimeout)
}
