package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/retry"
)

func TestBlocking(t *testing.T) {
	t.Run("it returns the value when f succeeds at once, without backoff", func(t *testing.T) {
		backoffCalled := 0
		b := func(context.Context) error {
			backoffCalled += 1
			return nil
		}

		got, err := retry.Blocking(context.Background(), b, func(context.Context) (int, error) {
			return 42, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if got != 42 {
			t.Errorf("value: got %d, want 42", got)
		}
		if backoffCalled != 0 {
			t.Errorf("backoff is called %d times", backoffCalled)
		}
	})

	t.Run("it retries while f returns ErrRetry", func(t *testing.T) {
		calls := 0
		got, err := retry.Blocking(
			context.Background(), retry.StaticBackoff(0),
			func(context.Context) (int, error) {
				calls += 1
				if calls < 5 {
					return calls, retry.ErrRetry
				}
				return calls, nil
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if got != 5 || calls != 5 {
			t.Errorf("(got, calls) = (%d, %d), want (5, 5)", got, calls)
		}
	})

	t.Run("it stops at non-retry error", func(t *testing.T) {
		expected := errors.New("fake error")
		calls := 0
		_, err := retry.Blocking(
			context.Background(), retry.StaticBackoff(0),
			func(context.Context) (int, error) {
				calls += 1
				return 0, expected
			},
		)
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("f is called %d times", calls)
		}
	})

	t.Run("it gives up when Limited backoff is exhausted", func(t *testing.T) {
		calls := 0
		_, err := retry.Blocking(
			context.Background(), retry.Limited(retry.StaticBackoff(0), 3),
			func(context.Context) (int, error) {
				calls += 1
				return 0, retry.ErrRetry
			},
		)
		if !errors.Is(err, retry.ErrTooManyAttempts) {
			t.Errorf("unexpected error: %v", err)
		}
		if calls != 4 { // first try + 3 retries
			t.Errorf("f is called %d times", calls)
		}
	})

	t.Run("it stops when context is done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := retry.Blocking(
			ctx, retry.StaticBackoff(5*time.Millisecond),
			func(context.Context) (int, error) { return 0, retry.ErrRetry },
		)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("it waits longer and longer", func(t *testing.T) {
		b := retry.ExponentialBackoff(5*time.Millisecond, 2)
		ctx := context.Background()

		begin := time.Now()
		for range 3 {
			if err := b(ctx); err != nil {
				t.Fatal(err)
			}
		}
		// 5 + 10 + 20
		if elapsed := time.Since(begin); elapsed < 35*time.Millisecond {
			t.Errorf("too short: %s", elapsed)
		}
	})

	t.Run("it returns ctx.Err() when the context has been done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := retry.StaticBackoff(time.Hour)(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
