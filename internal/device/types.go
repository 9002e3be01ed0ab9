package device

import (
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
)

// Device represents one controllable AV endpoint known to the bridge.
// This matches the database schema in migrations/20260210_100000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// RoomID is the room this device belongs to.
	RoomID string `json:"room_id"`

	// Class selects the controller implementation. Must name an entry in
	// the factory registry; validated eagerly when the registry loads.
	Class string `json:"class"`

	// Address holds class-specific addressing ("topic" overrides for the
	// mqtt class, blaster IDs for IR gear).
	Address map[string]any `json:"address,omitempty"`

	// Config holds class-specific configuration.
	Config map[string]any `json:"config,omitempty"`

	// Commands is the device's command schema, immutable after load.
	Commands []command.Definition `json:"commands,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommandByAction returns the device's command definition for an action.
func (d *Device) CommandByAction(action string) (*command.Definition, bool) {
	for i := range d.Commands {
		if d.Commands[i].Action == action {
			return &d.Commands[i], true
		}
	}
	return nil, false
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.Address = deepCopyMap(d.Address)
	cpy.Config = deepCopyMap(d.Config)

	if d.Commands != nil {
		cpy.Commands = make([]command.Definition, len(d.Commands))
		for i := range d.Commands {
			cpy.Commands[i] = *d.Commands[i].DeepCopy()
		}
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
