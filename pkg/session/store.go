package session

import (
	"time"

	derr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/domain/errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Store is a concurrent map from session id to Session.
type Store struct {
	sessions *xsync.Map[string, *Session]
	now      func() time.Time
}

type StoreOption func(*Store) *Store

// WithClock replaces the clock which stamps creation time of sessions.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) *Store {
		s.now = now
		return s
	}
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{
		sessions: xsync.NewMap[string, *Session](),
		now:      time.Now,
	}
	for _, opt := range options {
		s = opt(s)
	}
	return s
}

// Now is the time by the clock of this store.
func (st *Store) Now() time.Time {
	return st.now()
}

// Create makes a new session for the task, with a fresh id, and puts it.
func (st *Store) Create(task Task) *Session {
	for {
		s := NewSession(uuid.NewString(), st.now(), task)
		if _, loaded := st.sessions.LoadOrStore(s.ID(), s); !loaded {
			return s
		}
	}
}

// Put stores the session, replacing one with the same id.
func (st *Store) Put(s *Session) {
	st.sessions.Store(s.ID(), s)
}

// Get finds a session.
//
// # Returns
//
// - *Session
//
// - error: ErrSessionNotFound when missing.
func (st *Store) Get(id string) (*Session, error) {
	s, ok := st.sessions.Load(id)
	if !ok {
		return nil, derr.ErrSessionNotFound
	}
	return s, nil
}

// Remove deletes the session. Removing missing one is no-op.
//
// It returns true when the session has been removed by this call.
func (st *Store) Remove(id string) bool {
	_, ok := st.sessions.LoadAndDelete(id)
	return ok
}

// Range calls f for each session until f returns false.
func (st *Store) Range(f func(*Session) bool) {
	st.sessions.Range(func(_ string, s *Session) bool {
		return f(s)
	})
}

func (st *Store) Len() int {
	return st.sessions.Size()
}
