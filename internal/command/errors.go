package command

import (
	"errors"
	"fmt"
)

// Domain-specific errors for command parameter resolution.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingParameter is returned when a required parameter is absent.
	ErrMissingParameter = errors.New("command: missing required parameter")

	// ErrTypeMismatch is returned when a parameter value cannot be coerced
	// within its declared type family.
	ErrTypeMismatch = errors.New("command: parameter type mismatch")

	// ErrOutOfRange is returned when a numeric parameter violates its bounds.
	ErrOutOfRange = errors.New("command: parameter out of range")

	// ErrInvalidDefinition is returned when a command definition fails
	// load-time validation.
	ErrInvalidDefinition = errors.New("command: invalid definition")
)

// MissingParameterError reports an absent required parameter.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// Unwrap allows errors.Is(err, ErrMissingParameter).
func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// TypeMismatchError reports a value outside its declared type family.
type TypeMismatchError struct {
	Name     string
	Expected ParamType
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %q: expected %s, got %s", e.Name, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrTypeMismatch).
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// OutOfRangeError reports a numeric value violating its declared bounds.
type OutOfRangeError struct {
	Name  string
	Value float64
	Min   *float64
	Max   *float64
}

func (e *OutOfRangeError) Error() string {
	lo, hi := "-inf", "+inf"
	if e.Min != nil {
		lo = fmt.Sprintf("%v", *e.Min)
	}
	if e.Max != nil {
		hi = fmt.Sprintf("%v", *e.Max)
	}
	return fmt.Sprintf("parameter %q: value %v outside [%s, %s]", e.Name, e.Value, lo, hi)
}

// Unwrap allows errors.Is(err, ErrOutOfRange).
func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
