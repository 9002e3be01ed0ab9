package device

import (
	"context"
	"fmt"

	"github.com/avbridge/avbridge-core/internal/command"
)

// loopbackController applies command effects directly with no I/O.
//
// Virtual devices (a "room lighting mood" pseudo-device, test fixtures)
// use this class: the declared effects become the state delta verbatim.
type loopbackController struct {
	dev *Device
}

func newLoopbackController(dev *Device, _ FactoryDeps) (Controller, error) {
	return &loopbackController{dev: dev}, nil
}

func (c *loopbackController) Invoke(ctx context.Context, action string, params command.ResolvedParams) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def, ok := c.dev.CommandByAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAction, action, c.dev.ID)
	}

	return resolveEffects(def, params), nil
}
