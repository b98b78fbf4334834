package session

import (
	"context"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/loop"
	"github.com/labstack/gommon/log"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Sweeper evicts sessions older than TTL from a Store.
type Sweeper struct {
	store       *Store
	ttl         time.Duration
	interval    time.Duration
	beforeEvict func(context.Context, *Session) error
	logger      *log.Logger
}

type SweeperOption func(*Sweeper) *Sweeper

// WithSweepInterval sets the interval between sweeps.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(sw *Sweeper) *Sweeper {
		sw.interval = d
		return sw
	}
}

// BeforeEvict sets a hook called for each expired session before it is removed.
//
// When the hook returns error, the session is kept and tried again at the next sweep.
func BeforeEvict(hook func(context.Context, *Session) error) SweeperOption {
	return func(sw *Sweeper) *Sweeper {
		sw.beforeEvict = hook
		return sw
	}
}

func WithSweeperLogger(l *log.Logger) SweeperOption {
	return func(sw *Sweeper) *Sweeper {
		sw.logger = l
		return sw
	}
}

func NewSweeper(store *Store, ttl time.Duration, options ...SweeperOption) *Sweeper {
	sw := &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: DefaultSweepInterval,
		logger:   log.New("sweeper"),
	}
	for _, opt := range options {
		sw = opt(sw)
	}
	return sw
}

// Expired tells whether the session is older than TTL at the time `now`.
func (sw *Sweeper) Expired(s *Session, now time.Time) bool {
	return sw.ttl < now.Sub(s.CreatedAt())
}

// Sweep evicts expired sessions once, and returns how many sessions are evicted.
func (sw *Sweeper) Sweep(ctx context.Context) int {
	now := sw.store.Now()

	expired := []*Session{}
	sw.store.Range(func(s *Session) bool {
		if sw.Expired(s, now) {
			expired = append(expired, s)
		}
		return true
	})

	evicted := 0
	for _, s := range expired {
		if sw.beforeEvict != nil {
			if err := sw.beforeEvict(ctx, s); err != nil {
				sw.logger.Warnf("session %s is expired, but kept: %s", s.ID(), err)
				continue
			}
		}
		if sw.store.Remove(s.ID()) {
			evicted += 1
		}
	}
	if 0 < evicted {
		sw.logger.Infof("%d session(s) evicted", evicted)
	}
	return evicted
}

// Run sweeps repeatedly until ctx is done.
//
// The first sweep is performed after the interval.
func (sw *Sweeper) Run(ctx context.Context) error {
	_, err := loop.Start(
		ctx, 0,
		func(ctx context.Context, round int) (int, loop.Next) {
			if round == 0 {
				return round + 1, loop.Continue(sw.interval)
			}
			sw.Sweep(ctx)
			return round + 1, loop.Continue(sw.interval)
		},
	)
	return err
}
