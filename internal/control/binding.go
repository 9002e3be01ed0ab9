package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/avbridge/avbridge-core/internal/dispatch"
	"github.com/avbridge/avbridge-core/internal/infrastructure/mqtt"
	"github.com/avbridge/avbridge-core/internal/scenario"
)

// Topic layout: avbridge/room/{room_id}/{verb}[/...].
const (
	roomTopicParts = 4 // avbridge/room/{room}/{verb}
	roleTopicParts = 6 // avbridge/room/{room}/role/{role}/{action}

	controlQoS = 1
)

// MQTTClient is the interface for MQTT operations.
// Satisfied by the infrastructure mqtt.Client; narrowed for mocking.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Orchestrator runs scenario operations. Satisfied by *scenario.Executor.
type Orchestrator interface {
	Activate(ctx context.Context, roomID, scenarioID string) ([]scenario.StepReport, error)
	Deactivate(ctx context.Context, roomID string) ([]scenario.StepReport, error)
	InvokeRole(ctx context.Context, roomID, role, action string, params map[string]any) (dispatch.CommandResult, error)
	RoomState(roomID string) scenario.RoomState
}

// StateApplier ingests authoritative state pushed by device drivers.
// Satisfied by *dispatch.Dispatcher.
type StateApplier interface {
	ApplyExternalState(deviceID string, delta map[string]any)
}

// StateObserver is notified after a driver state push has been applied.
// Satisfied by the API WebSocket hub; optional.
type StateObserver interface {
	DeviceStateChanged(deviceID string, delta map[string]any)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Binding subscribes the orchestration engine to the MQTT control plane.
//
// Inbound:
//   - avbridge/room/{room}/activate     {"scenario_id": "..."}
//   - avbridge/room/{room}/deactivate   (empty payload)
//   - avbridge/room/{room}/role/{role}/{action}  optional params object
//   - avbridge/state/{device}           attribute map pushed by drivers
//
// Outbound (via publisher.go):
//   - avbridge/room/{room}/status       retained room state
//   - avbridge/room/{room}/report       retained last run report
//
// Scenario runs can take tens of seconds (delays between steps), so control
// messages are handled in their own goroutines; the paho receive loop is
// never blocked by a running sequence.
type Binding struct {
	mqtt     MQTTClient
	executor Orchestrator
	states   StateApplier
	observer StateObserver
	topics   mqtt.Topics

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	logger Logger
}

// activateRequest is the payload for room activation.
type activateRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// NewBinding creates the MQTT control binding. Call Start to subscribe.
func NewBinding(client MQTTClient, executor Orchestrator, states StateApplier) *Binding {
	ctx, cancel := context.WithCancel(context.Background())
	return &Binding{
		mqtt:      client,
		executor:  executor,
		states:    states,
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the binding.
func (b *Binding) SetLogger(logger Logger) { b.logger = logger }

// SetStateObserver sets an observer notified after driver state pushes.
func (b *Binding) SetStateObserver(observer StateObserver) { b.observer = observer }

// Start subscribes to the control and state topics.
func (b *Binding) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllRoomActivations(), b.handleActivate},
		{b.topics.AllRoomDeactivations(), b.handleDeactivate},
		{b.topics.AllRoomRoleActions(), b.handleRoleAction},
		{b.topics.AllDeviceStates(), b.handleDeviceState},
	}

	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, controlQoS, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
		b.logger.Info("control subscription active", "topic", s.topic)
	}
	return nil
}

// Stop cancels in-flight control operations and waits for handlers to drain.
func (b *Binding) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()
		b.logger.Info("control binding stopped")
	})
}

// handleActivate processes avbridge/room/{room}/activate.
func (b *Binding) handleActivate(topic string, payload []byte) error {
	roomID, ok := roomFromTopic(topic)
	if !ok {
		return fmt.Errorf("malformed activation topic: %s", topic)
	}

	var req activateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parsing activation payload: %w", err)
	}
	if req.ScenarioID == "" {
		return fmt.Errorf("activation for room %s missing scenario_id", roomID)
	}

	b.async(func(ctx context.Context) {
		if _, err := b.executor.Activate(ctx, roomID, req.ScenarioID); err != nil {
			b.logger.Warn("activation failed",
				"room", roomID,
				"scenario", req.ScenarioID,
				"error", err,
			)
		}
	})
	return nil
}

// handleDeactivate processes avbridge/room/{room}/deactivate.
func (b *Binding) handleDeactivate(topic string, _ []byte) error {
	roomID, ok := roomFromTopic(topic)
	if !ok {
		return fmt.Errorf("malformed deactivation topic: %s", topic)
	}

	b.async(func(ctx context.Context) {
		if _, err := b.executor.Deactivate(ctx, roomID); err != nil {
			b.logger.Warn("deactivation failed", "room", roomID, "error", err)
		}
	})
	return nil
}

// handleRoleAction processes avbridge/room/{room}/role/{role}/{action}.
// The payload, when present, is the parameter object for the command.
func (b *Binding) handleRoleAction(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != roleTopicParts || parts[3] != "role" {
		return fmt.Errorf("malformed role topic: %s", topic)
	}
	roomID, role, action := parts[2], parts[4], parts[5]

	var params map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			return fmt.Errorf("parsing role action payload: %w", err)
		}
	}

	b.async(func(ctx context.Context) {
		result, err := b.executor.InvokeRole(ctx, roomID, role, action, params)
		if err != nil {
			b.logger.Warn("role action failed",
				"room", roomID,
				"role", role,
				"action", action,
				"error", err,
			)
			return
		}
		if !result.Success {
			b.logger.Warn("role command rejected by device",
				"room", roomID,
				"role", role,
				"action", action,
				"error", result.Error,
			)
		}
	})
	return nil
}

// handleDeviceState processes avbridge/state/{device}.
//
// Drivers push authoritative attribute maps here; they flow into the state
// store through the dispatcher, which is the store's only writer.
func (b *Binding) handleDeviceState(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] == "" {
		return fmt.Errorf("malformed state topic: %s", topic)
	}
	deviceID := parts[2]

	var delta map[string]any
	if err := json.Unmarshal(payload, &delta); err != nil {
		return fmt.Errorf("parsing state payload for %s: %w", deviceID, err)
	}
	if len(delta) == 0 {
		return nil
	}

	b.states.ApplyExternalState(deviceID, delta)
	if b.observer != nil {
		b.observer.DeviceStateChanged(deviceID, delta)
	}
	b.logger.Debug("driver state applied", "device", deviceID, "attributes", len(delta))
	return nil
}

// async runs fn on the binding's lifecycle context without blocking the
// MQTT receive loop.
func (b *Binding) async(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// roomFromTopic extracts the room ID from avbridge/room/{room}/{verb}.
func roomFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != roomTopicParts || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
