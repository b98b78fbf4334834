package errors

import (
	"errors"
	"fmt"

	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
)

// requested session is not known.
var ErrSessionNotFound = errors.New("session not found")

// the copy process of the session has been started already.
var ErrAlreadyStarted = errors.New("process already started")

// no worker pool is tracked for the session.
var ErrNoWorkerPool = errors.New("no worker pool")

// the session has no credentials yet.
var ErrNotLoggedIn = errors.New("not logged in")

// progress could not be collected from (some of) workers.
var ErrProgressUnavailable = errors.New("progress unavailable")

// waiting for workers takes too long time.
var ErrDeadlineExceeded = errors.New("deadline exceeded")

type wrappingError struct {
	message  string
	causedBy error
}

func (e wrappingError) format() string {
	if e.causedBy == nil {
		return e.message
	}
	if e.message == "" {
		return fmt.Sprintf("caused by: %+v", e.causedBy)
	}
	return fmt.Sprintf("%s / caused by: %+v", e.message, e.causedBy)
}

func as[E error](err error) (E, bool) {
	var target E
	if err == nil {
		return target, false
	}
	ok := errors.As(err, &target)
	return target, ok
}

// The cluster rejects to provision a worker pool.
//
// Diagnostic is the message from the cluster, as is.
type ErrProvisioning struct {
	PoolName   string
	Diagnostic string
	causedBy   error
}

func NewProvisioning(poolName string, err error) error {
	diag := ""
	if err != nil {
		diag = err.Error()
	}
	return xe.WrapAsOuter(&ErrProvisioning{PoolName: poolName, Diagnostic: diag, causedBy: err}, 1)
}

func (e *ErrProvisioning) Error() string {
	return wrappingError{
		message:  fmt.Sprintf("provisioning worker pool %s failed", e.PoolName),
		causedBy: e.causedBy,
	}.format()
}

func (e *ErrProvisioning) Unwrap() error {
	return e.causedBy
}

var AsProvisioning = as[*ErrProvisioning]

// A batch could not be sent to a worker.
type ErrDispatch struct {
	Worker string
}

func NewDispatch(worker string) error {
	return xe.WrapAsOuter(&ErrDispatch{Worker: worker}, 1)
}

func (e *ErrDispatch) Error() string {
	return fmt.Sprintf("dispatching a batch to worker %s failed", e.Worker)
}

var AsDispatch = as[*ErrDispatch]
