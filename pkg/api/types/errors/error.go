package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	derr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/domain/errors"
	"github.com/labstack/echo/v4"
)

// ErrorMessage is the payload of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(b []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Advice *string `json:"advice,omitempty"`
	})
	if err := json.Unmarshal(b, f); err != nil {
		return err
	}
	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason
	if f.Advice != nil {
		em.Advice = *f.Advice
	}
	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type Option func(*ErrorMessage) *ErrorMessage

func WithAdvice(advice string) Option {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) Option {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func New(code int, reason string, opts ...Option) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound(reason string, opts ...Option) *echo.HTTPError {
	return New(http.StatusNotFound, reason, opts...)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return New(http.StatusBadRequest, "bad request", WithAdvice(advice), WithError(err))
}

func Conflict(reason string, opts ...Option) *echo.HTTPError {
	return New(http.StatusConflict, reason, opts...)
}

func Forbidden(reason string, opts ...Option) *echo.HTTPError {
	return New(http.StatusForbidden, reason, opts...)
}

func Unauthorized(reason string, err error) *echo.HTTPError {
	return New(http.StatusUnauthorized, reason, WithError(err))
}

func InternalServerError(err error) *echo.HTTPError {
	return New(http.StatusInternalServerError, "unexpected error", WithAdvice("ask your system admin."), WithError(err))
}

// FromDomain converts errors of the orchestration into responses.
//
// Unknown errors are internal server errors.
func FromDomain(err error) *echo.HTTPError {
	if he := new(echo.HTTPError); errors.As(err, &he) {
		return he
	}
	if p, ok := derr.AsProvisioning(err); ok {
		return Conflict(
			"cannot provision workers", WithAdvice(p.Diagnostic), WithError(err),
		)
	}

	switch {
	case errors.Is(err, derr.ErrSessionNotFound):
		return NotFound("session not found", WithError(err))
	case errors.Is(err, derr.ErrNoWorkerPool):
		return NotFound("no running workers for the session", WithError(err))
	case errors.Is(err, derr.ErrAlreadyStarted):
		return Conflict("Process already started", WithError(err))
	case errors.Is(err, derr.ErrNotLoggedIn):
		return Forbidden("not logged in", WithAdvice("login before starting copy."), WithError(err))
	case errors.Is(err, derr.ErrProgressUnavailable):
		return New(http.StatusServiceUnavailable, "progress is not available now", WithError(err))
	}
	return InternalServerError(err)
}
