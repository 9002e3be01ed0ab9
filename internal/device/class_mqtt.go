package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/infrastructure/mqtt"
)

// commandQoS is the QoS level for device command publishes.
// At-least-once: a lost power_on is worse than a duplicated one.
const commandQoS = 1

// mqttController drives a device through its vendor bridge over MQTT.
//
// Commands are published as JSON to avbridge/command/{device} (or the topic
// in the device's address config). The bridge is trusted to apply them; the
// returned state delta is the command's declared effects, so conditions see
// the expected outcome immediately. Authoritative state corrections arrive
// asynchronously on avbridge/state/{device}.
type mqttController struct {
	dev       *Device
	topic     string
	publisher CommandPublisher
}

// commandPayload is the wire format published to the device bridge.
type commandPayload struct {
	Action    string                 `json:"action"`
	Params    command.ResolvedParams `json:"params,omitempty"`
	IRCode    string                 `json:"ir_code,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func newMQTTController(dev *Device, deps FactoryDeps) (Controller, error) {
	if deps.Publisher == nil {
		return nil, fmt.Errorf("mqtt class requires a command publisher (device %s)", dev.ID)
	}

	topic := mqtt.Topics{}.DeviceCommand(dev.ID)
	if override, ok := dev.Address["topic"].(string); ok && override != "" {
		topic = override
	}

	return &mqttController{
		dev:       dev,
		topic:     topic,
		publisher: deps.Publisher,
	}, nil
}

func (c *mqttController) Invoke(ctx context.Context, action string, params command.ResolvedParams) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def, ok := c.dev.CommandByAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAction, action, c.dev.ID)
	}

	payload := commandPayload{
		Action:    action,
		Params:    params,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if def.Variant == command.VariantIR {
		payload.IRCode = def.IRCode
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding command payload: %w", err)
	}

	if err := c.publisher.Publish(c.topic, data, commandQoS, false); err != nil {
		return nil, fmt.Errorf("publishing command %s to %s: %w", action, c.dev.ID, err)
	}

	return resolveEffects(def, params), nil
}
