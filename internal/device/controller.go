package device

import (
	"context"

	"github.com/avbridge/avbridge-core/internal/command"
)

// Controller is the capability boundary to a device driver.
//
// Invoke executes one already-resolved command. On success it returns the
// state delta the command produced; on failure it returns an error and no
// delta. Drivers are potentially slow and network-bound: implementations
// must honour ctx cancellation, and callers apply their own timeout.
//
// A Controller must be safe for concurrent use; the dispatcher serializes
// calls per device, but health checks may overlap with commands.
type Controller interface {
	Invoke(ctx context.Context, action string, params command.ResolvedParams) (map[string]any, error)
}

// resolveEffects materialises a command definition's declared state effects
// against the resolved parameters.
//
// Effect values of the form "$name" are replaced by the parameter of that
// name; all other values pass through as literals. Effects referencing an
// absent parameter are dropped rather than written as nil.
func resolveEffects(def *command.Definition, params command.ResolvedParams) map[string]any {
	if len(def.Effects) == 0 {
		return nil
	}

	delta := make(map[string]any, len(def.Effects))
	for attr, v := range def.Effects {
		ref, ok := v.(string)
		if ok && len(ref) > 1 && ref[0] == '$' {
			if pv, present := params[ref[1:]]; present {
				delta[attr] = pv
			}
			continue
		}
		delta[attr] = v
	}
	return delta
}
