package scenario

import (
	"context"
	"fmt"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/dispatch"
)

// ResolveRole maps a logical role name to the concrete device filling it in
// the room's active scenario.
//
// Returns ErrNoActiveScenario if the room has nothing active, and
// ErrRoleNotFound if the active scenario does not define the role.
func (e *Executor) ResolveRole(ctx context.Context, roomID, role string) (string, error) {
	state := e.RoomState(roomID)
	if state.ActiveScenarioID == "" {
		return "", fmt.Errorf("%w: room %s", ErrNoActiveScenario, roomID)
	}

	def, err := e.scenarios.Get(ctx, state.ActiveScenarioID)
	if err != nil {
		return "", err
	}

	deviceID, ok := def.Roles[role]
	if !ok {
		return "", fmt.Errorf("%w: %q in scenario %s", ErrRoleNotFound, role, def.ID)
	}
	return deviceID, nil
}

// InvokeRole routes a role-addressed command to the resolved device.
//
// The resolved device's own command schema is inherited for validation:
// role resolution never fabricates a command, it only aliases an existing
// device+command pair. Parameter errors surface immediately with no
// partial execution.
func (e *Executor) InvokeRole(ctx context.Context, roomID, role, action string, params map[string]any) (dispatch.CommandResult, error) {
	deviceID, err := e.ResolveRole(ctx, roomID, role)
	if err != nil {
		return dispatch.CommandResult{}, err
	}

	dev, err := e.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return dispatch.CommandResult{}, err
	}

	cmdDef, ok := dev.CommandByAction(action)
	if !ok {
		return dispatch.CommandResult{}, fmt.Errorf("device %s has no command %q", deviceID, action)
	}

	resolved, err := command.Resolve(cmdDef, params)
	if err != nil {
		return dispatch.CommandResult{}, err
	}

	return e.dispatcher.Execute(ctx, deviceID, action, resolved, "role:"+role)
}
