package backend

import (
	"context"
	"errors"
	"fmt"
)

// timeoutError means the model did not answer within its deadline.
type timeoutError struct {
	model string
	err   error
}

func (e timeoutError) Error() string { return fmt.Sprintf("backend timeout: %s: %v", e.model, e.err) }
func (e timeoutError) Unwrap() error { return e.err }

// ErrTimeout constructs a timeout error for model.
func ErrTimeout(model string, err error) error { return timeoutError{model: model, err: err} }

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool {
	var t timeoutError
	return errors.As(err, &t)
}

// failureError is any other backend error: transport, HTTP status, decoding.
type failureError struct {
	model string
	err   error
}

func (e failureError) Error() string { return fmt.Sprintf("backend failure: %s: %v", e.model, e.err) }
func (e failureError) Unwrap() error { return e.err }

// ErrFailure constructs a failure error for model.
func ErrFailure(model string, err error) error { return failureError{model: model, err: err} }

// IsFailure reports whether err is a non-timeout backend failure.
func IsFailure(err error) bool {
	var f failureError
	return errors.As(err, &f)
}

// classify maps a transport error to Timeout or Failure, using ctx to tell
// deadline expiry apart from other errors. Caller cancellation stays a
// failure wrapping context.Canceled.
func classify(ctx context.Context, model string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout(model, context.DeadlineExceeded)
	}
	return ErrFailure(model, err)
}
