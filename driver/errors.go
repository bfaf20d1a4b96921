package driver

import (
	"context"
	"errors"
	"fmt"
)

// Class tags why a driver operation failed and decides retry
// eligibility.
type Class string

const (
	ClassUnknown     Class = "unknown"
	ClassNotFound    Class = "not_found"
	ClassStale       Class = "stale"
	ClassTimedOut    Class = "timed_out"
	ClassIntercepted Class = "intercepted"
	ClassSessionDead Class = "session_dead"
)

// Sentinel errors for the common driver failures.
var (
	ErrNoSuchElement = errors.New("no such element")
	ErrStaleElement  = errors.New("element is stale or detached from the document")
	ErrIntercepted   = errors.New("element click would be intercepted by another element")
	ErrSessionDead   = errors.New("session is dead")
)

// An Error couples a driver failure with its classification and the
// operation that produced it. The original cause stays reachable via
// Unwrap.
type Error struct {
	Class   Class
	Op      string
	Session string
	Context string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Context != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Context)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Class)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Classification() Class { return e.Class }

// classifier is implemented by errors that know their own class.
type classifier interface {
	Classification() Class
}

// ClassOf resolves the classification of err by walking its wrap
// chain. Errors without a recognizable class come back as
// ClassUnknown, which is never retryable.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var c classifier
	if errors.As(err, &c) {
		return c.Classification()
	}
	switch {
	case errors.Is(err, ErrNoSuchElement):
		return ClassNotFound
	case errors.Is(err, ErrStaleElement):
		return ClassStale
	case errors.Is(err, ErrIntercepted):
		return ClassIntercepted
	case errors.Is(err, ErrSessionDead):
		return ClassSessionDead
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimedOut
	case errors.Is(err, context.Canceled):
		return ClassSessionDead
	}
	return ClassUnknown
}
