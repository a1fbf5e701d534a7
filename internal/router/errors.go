package router

import (
	"errors"
	"fmt"

	"tierd/pkg/types"
)

// serviceUnavailableError means the selected tier and the Light retry both
// failed. The HTTP layer maps it to 503.
type serviceUnavailableError struct {
	tier types.Tier
	err  error
}

func (e serviceUnavailableError) Error() string {
	return fmt.Sprintf("service unavailable (last tier %s): %v", e.tier, e.err)
}

func (e serviceUnavailableError) Unwrap() error { return e.err }

// ErrServiceUnavailable constructs a serviceUnavailableError.
func ErrServiceUnavailable(tier types.Tier, err error) error {
	return serviceUnavailableError{tier: tier, err: err}
}

// IsServiceUnavailable reports whether err indicates no tier could answer.
func IsServiceUnavailable(err error) bool {
	var e serviceUnavailableError
	return errors.As(err, &e)
}

// noBackendError is returned when the router was built without a backend.
type noBackendError struct{}

func (noBackendError) Error() string { return "router: no backend configured" }
