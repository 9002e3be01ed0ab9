package scenario

import (
	"fmt"
)

// ValidateDefinition checks a scenario definition at load time.
//
// Rules:
//   - id and room_id must be non-empty
//   - the devices set must be a superset of every device referenced by
//     steps and role targets
//   - every step needs a device and command, a non-negative delay, and a
//     parseable condition when one is present
//   - role names and targets must be non-empty
func ValidateDefinition(def *Definition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	if def.RoomID == "" {
		return fmt.Errorf("%w: %s: room_id is required", ErrInvalidDefinition, def.ID)
	}

	participating := make(map[string]bool, len(def.Devices))
	for _, id := range def.Devices {
		if id == "" {
			return fmt.Errorf("%w: %s: empty device id in devices", ErrInvalidDefinition, def.ID)
		}
		participating[id] = true
	}

	for role, target := range def.Roles {
		if role == "" {
			return fmt.Errorf("%w: %s: empty role name", ErrInvalidDefinition, def.ID)
		}
		if target == "" {
			return fmt.Errorf("%w: %s: role %q has no target device", ErrInvalidDefinition, def.ID, role)
		}
		if !participating[target] {
			return fmt.Errorf("%w: %s: role %q targets %q which is not in devices", ErrInvalidDefinition, def.ID, role, target)
		}
	}

	if err := validateSequence(def, SequenceStartup, def.StartupSequence, participating); err != nil {
		return err
	}
	return validateSequence(def, SequenceShutdown, def.ShutdownSequence, participating)
}

func validateSequence(def *Definition, kind SequenceKind, steps []Step, participating map[string]bool) error {
	for i, step := range steps {
		if step.DeviceID == "" {
			return fmt.Errorf("%w: %s: %s step %d: device_id is required", ErrInvalidDefinition, def.ID, kind, i)
		}
		if step.Command == "" {
			return fmt.Errorf("%w: %s: %s step %d: command is required", ErrInvalidDefinition, def.ID, kind, i)
		}
		if !participating[step.DeviceID] {
			return fmt.Errorf("%w: %s: %s step %d: device %q is not in devices", ErrInvalidDefinition, def.ID, kind, i, step.DeviceID)
		}
		if step.DelayAfterMs < 0 {
			return fmt.Errorf("%w: %s: %s step %d: negative delay", ErrInvalidDefinition, def.ID, kind, i)
		}
		if step.Condition != "" {
			if _, err := ParseCondition(step.Condition); err != nil {
				return fmt.Errorf("%w: %s: %s step %d: %w", ErrInvalidDefinition, def.ID, kind, i, err)
			}
		}
	}
	return nil
}
