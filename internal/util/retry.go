package util

import (
	"context"
	"errors"
	"time"
)

// Permanent wraps an error that should not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// NoRetry marks err as permanent so the retry helpers stop immediately.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// RetryWithContext calls fn up to maxTries times until it returns nil error,
// or until ctx is done. Between attempts it waits backoff, doubling each time.
// If maxTries <= 0, it defaults to 1. Errors wrapped with NoRetry and context
// errors end the loop early.
func RetryWithContext[T any](ctx context.Context, maxTries int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return zero, perm.Err
		}
		lastErr = err

		if i < maxTries-1 && backoff > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, maxTries int, backoff time.Duration, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, maxTries, backoff, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
