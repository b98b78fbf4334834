package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry is returned from a polled function to ask for one more try.
var ErrRetry = errors.New("retry")

// ErrTooManyAttempts is returned by a Backoff made with Limited,
// when the number of attempts is used up.
var ErrTooManyAttempts = errors.New("too many attempts")

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
//
// Zero or negative interval means "retry at once" (context is still honoured).
var StaticBackoff = func(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// For N-th call, it waits for `initialInterval * r^N` or context to be done.
var ExponentialBackoff = func(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		if interval <= 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}

		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Limited wraps b so that it permits at most `attempts` retries.
//
// After that, the returned Backoff returns ErrTooManyAttempts without waiting.
// When attempts <= 0, b is returned as is (unlimited).
func Limited(b Backoff, attempts int) Backoff {
	if attempts <= 0 {
		return b
	}
	used := 0
	return func(ctx context.Context) error {
		if attempts <= used {
			return ErrTooManyAttempts
		}
		used += 1
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// f is called once at first, and then, each time it returns ErrRetry,
// called again after b allows.
//
// # Returns
//
// - T: last return value of f
//
// - error: nil when f succeeds. Otherwise, error from f or from b
// (ctx.Err() or ErrTooManyAttempts).
func Blocking[T any](ctx context.Context, b Backoff, f func(context.Context) (T, error)) (T, error) {
	for {
		select {
		case <-ctx.Done():
			return *new(T), ctx.Err()
		default:
		}

		last, err := f(ctx)
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}

		if err := b(ctx); err != nil {
			return last, err
		}
	}
}
