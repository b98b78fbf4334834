package orchestrator

import (
	"context"
	"errors"
	"sync"
)

// State of a copy job.
type State int

const (
	NotStarted State = iota
	Provisioning
	AwaitingReadiness
	Distributing
	AwaitingCompletion
	Reclaiming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Provisioning:
		return "Provisioning"
	case AwaitingReadiness:
		return "AwaitingReadiness"
	case Distributing:
		return "Distributing"
	case AwaitingCompletion:
		return "AwaitingCompletion"
	case Reclaiming:
		return "Reclaiming"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal tells the state is Completed or Failed.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// the job is cancelled with Kill.
var ErrKilled = errors.New("killed")

// the session of the job is expired.
var ErrExpired = errors.New("session expired")

// Job is the background execution of a copy for a session.
type Job struct {
	sessionId string
	cancel    context.CancelCauseFunc

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newJob(sessionId string, cancel context.CancelCauseFunc) *Job {
	return &Job{
		sessionId: sessionId,
		cancel:    cancel,
		state:     NotStarted,
		done:      make(chan struct{}),
	}
}

func (j *Job) SessionId() string {
	return j.sessionId
}

// Done is closed when the job reaches Completed or Failed.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err is the reason of failure. nil while running or when completed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Wait blocks until the job terminates or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transit moves to non-terminal state. It returns false if the job has been terminated.
func (j *Job) transit(s State) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = s
	return true
}

// finish moves to terminal state. Only the first call is effective.
func (j *Job) finish(s State, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = s
	j.err = err
	close(j.done)
	return true
}
