package dispatch

import "errors"

// Domain-specific errors for command dispatch.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDevice is returned when the target device has no controller.
	ErrUnknownDevice = errors.New("dispatch: unknown device")

	// ErrTimeout is returned when a device call exceeds the dispatch timeout.
	ErrTimeout = errors.New("dispatch: command timed out")
)
