package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device ID has no registration.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with a duplicate ID.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrUnknownClass is returned when a device names a class with no
	// registered factory.
	ErrUnknownClass = errors.New("device: unknown device class")

	// ErrUnknownAction is returned when an action is not in the device's
	// command schema.
	ErrUnknownAction = errors.New("device: unknown action")

	// ErrInvalidDevice is returned when a device fails validation.
	ErrInvalidDevice = errors.New("device: invalid device")
)
