package backend

import (
	"errors"
	"fmt"
)

// Error kinds returned by the adapter. Callers match them with errors.Is.
var (
	ErrBackendUnavailable = errors.New("analysis backend unavailable")
	ErrBackendError       = errors.New("analysis backend failed")
	ErrParseFailure       = errors.New("analysis backend output could not be parsed")
	ErrTimeout            = errors.New("analysis backend timed out")

	ErrNotConfigured      = errors.New("analysis backend is not configured")
	ErrTrainingInProgress = errors.New("training is already in progress")
	ErrTrainerStopped     = errors.New("trainer is shutting down")
)

// Error is a classified backend failure. Stderr holds whatever the process
// wrote to stderr and is intended for logs only.
type Error struct {
	Kind   error
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the error kind of err, or nil if err is not a backend error.
func KindOf(err error) error {
	for _, kind := range []error{ErrBackendUnavailable, ErrBackendError, ErrParseFailure, ErrTimeout} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
