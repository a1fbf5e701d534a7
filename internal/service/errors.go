package service

import (
	"errors"
	"fmt"
)

// invalidQueryError rejects a request before any routing happens.
type invalidQueryError struct{ msg string }

func (e invalidQueryError) Error() string { return "invalid query: " + e.msg }

// ErrInvalidQuery constructs an invalidQueryError.
func ErrInvalidQuery(format string, args ...any) error {
	return invalidQueryError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidQuery reports whether err rejects the request input (return 400).
func IsInvalidQuery(err error) bool {
	var e invalidQueryError
	return errors.As(err, &e)
}

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string { return e.kind + " not found: " + e.id }

// ErrSessionNotFound is returned by session lookups for unknown ids.
func ErrSessionNotFound(id string) error { return notFoundError{kind: "session", id: id} }

// ErrTaskNotFound is returned when no handler is registered for a task type.
func ErrTaskNotFound(typ string) error { return notFoundError{kind: "task type", id: typ} }

// IsNotFound reports whether err names an unknown session or task type (return 404).
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// notRunningError is returned when a request reaches a stopped service.
type notRunningError struct{}

func (notRunningError) Error() string { return "service is not running" }

// IsNotRunning reports whether err was caused by a stopped service (return 503).
func IsNotRunning(err error) bool {
	var e notRunningError
	return errors.As(err, &e)
}
