package device

import (
	"fmt"

	"github.com/avbridge/avbridge-core/internal/command"
)

// ValidateDevice checks a device definition at load time.
//
// The class is checked against the factory map separately by the registry;
// this validates everything intrinsic to the device itself.
func ValidateDevice(dev *Device) error {
	if dev.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if dev.RoomID == "" {
		return fmt.Errorf("%w: %s: room_id is required", ErrInvalidDevice, dev.ID)
	}
	if dev.Class == "" {
		return fmt.Errorf("%w: %s: class is required", ErrInvalidDevice, dev.ID)
	}

	seen := make(map[string]bool, len(dev.Commands))
	for i := range dev.Commands {
		def := &dev.Commands[i]
		if err := command.ValidateDefinition(def); err != nil {
			return fmt.Errorf("%w: %s: command %d: %w", ErrInvalidDevice, dev.ID, i, err)
		}
		if seen[def.Action] {
			return fmt.Errorf("%w: %s: duplicate command action %q", ErrInvalidDevice, dev.ID, def.Action)
		}
		seen[def.Action] = true
	}

	return nil
}
