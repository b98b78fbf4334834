package session

import (
	"sync"
	"time"
)

// Session is one submitted copy job and its runtime state.
//
// Methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time
	task      Task

	mu          sync.Mutex
	credentials Credentials
	started     bool
	targetDir   string
	workers     []string
	snapshot    []ProgressReport
	done        bool
	result      error
}

func NewSession(id string, createdAt time.Time, task Task) *Session {
	return &Session{id: id, createdAt: createdAt, task: task.clone()}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Task returns a copy of the task of this session.
func (s *Session) Task() Task {
	return s.task.clone()
}

// SetCredentials sets credentials only once.
//
// It returns false when credentials have been set already (and they are kept).
func (s *Session) SetCredentials(c Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentials != nil {
		return false
	}
	s.credentials = c
	return true
}

// Credentials, or nil if not logged in.
func (s *Session) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials
}

func (s *Session) IsLoggedIn() bool {
	return s.Credentials() != nil
}

// MarkStarted sets the started flag, with the target directory of the copy.
//
// Only the first call returns true. Later calls return false and change nothing.
func (s *Session) MarkStarted(targetDir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	s.started = true
	s.targetDir = targetDir
	return true
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// directory passed to MarkStarted.
func (s *Session) TargetDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetDir
}

// SetWorkers records addresses of live workers.
func (s *Session) SetWorkers(addrs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append([]string{}, addrs...)
}

// Workers returns addresses recorded with SetWorkers, or nil when cleared.
func (s *Session) Workers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return nil
	}
	return append([]string{}, s.workers...)
}

func (s *Session) ClearWorkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = nil
}

// SetSnapshot keeps the latest progress.
func (s *Session) SetSnapshot(reports []ProgressReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = append([]ProgressReport{}, reports...)
}

// Snapshot returns the progress given to SetSnapshot last.
//
// When no snapshots are set, it returns progress of the task items as submitted.
func (s *Session) Snapshot() []ProgressReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Reports(s.task.Items)
	}
	return append([]ProgressReport{}, s.snapshot...)
}

// SetResult records the terminal result. nil means success.
//
// Only the first call is effective.
func (s *Session) SetResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.result = err
}

// Result returns whether the job has been terminated, and its error.
func (s *Session) Result() (done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.result
}
