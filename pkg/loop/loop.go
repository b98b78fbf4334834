package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task run.
type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// continue loop after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// break loop. Pass nil to break without error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is called repeatedly by Start.
//
// It receives a context and the value returned by the previous call
// (the initial value, for the first call).
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop, until it returns Break(...) or ctx is done.
//
// Zero value of Next (Next{}) equals Continue(0), that is, "go next ASAP!".
//
// Example: count 1 to 10
//
//	Start(ctx, 1, func(_ context.Context, value int) (int, Next) {
//		value += 1
//		if 10 <= value {
//			return value, Break(nil)
//		}
//		return value, Continue(0)
//	})
//
// # Returns
//
// - T: the value task returned at last.
// This value is always returned whether or not error is returned together.
//
// - error: error in Break(error), or ctx.Err() when ctx is done.
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		lc := &config{ctx: ctx}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, n := func() (T, Next) {
			if lc.deferred != nil {
				defer lc.deferred()
			}
			return task(lc.ctx, value)
		}()

		if n.err != nil {
			return v, n.err
		}
		if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

type config struct {
	ctx      context.Context
	deferred func()
}

type Option func(*config) *config

// WithTimeout sets timeout per a task run.
//
// The timeout is set on the context.Context passed to the task.
func WithTimeout(d time.Duration) Option {
	return func(lc *config) *config {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &config{
			ctx: ctx,
			deferred: func() {
				if lc.deferred != nil {
					defer lc.deferred()
				}
				cancel()
			},
		}
	}
}
