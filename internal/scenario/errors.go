package scenario

import "errors"

// Domain-specific errors for scenario orchestration.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrScenarioNotFound is returned when a scenario ID has no definition.
	ErrScenarioNotFound = errors.New("scenario: not found")

	// ErrScenarioExists is returned when creating a scenario with a
	// duplicate ID.
	ErrScenarioExists = errors.New("scenario: already exists")

	// ErrInvalidDefinition is returned when a scenario fails load-time
	// validation.
	ErrInvalidDefinition = errors.New("scenario: invalid definition")

	// ErrInvalidCondition is returned when a step condition does not parse
	// under the restricted grammar.
	ErrInvalidCondition = errors.New("scenario: invalid condition")

	// ErrWrongRoom is returned when activating a scenario in a room it does
	// not belong to.
	ErrWrongRoom = errors.New("scenario: scenario belongs to a different room")

	// ErrNoActiveScenario is returned by role resolution when the room has
	// no active scenario.
	ErrNoActiveScenario = errors.New("scenario: no active scenario")

	// ErrRoleNotFound is returned when the active scenario does not define
	// the requested role.
	ErrRoleNotFound = errors.New("scenario: role not found")

	// ErrSequenceCancelled marks a sequence preempted by a newer activation
	// or deactivation. A distinct terminal marker, not a failure.
	ErrSequenceCancelled = errors.New("scenario: sequence cancelled")
)
