package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/device"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ControllerProvider resolves a device ID to its controller.
// Satisfied by device.Registry.
type ControllerProvider interface {
	Controller(deviceID string) (device.Controller, error)
}

// CommandResult is the structured outcome of one dispatch.
type CommandResult struct {
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	StateDelta map[string]any `json:"state_delta,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// Dispatcher routes resolved commands to device controllers and owns all
// writes to the StateStore.
//
// Guarantees:
//   - at most one in-flight call per device (mutex per device); different
//     devices dispatch fully concurrently
//   - every call carries the configured timeout; a timeout is a command
//     failure, not a fault
//   - exactly one state mutation per successful call; failed or timed-out
//     calls record the attempt but never touch attribute state
type Dispatcher struct {
	controllers ControllerProvider
	store       *StateStore
	timeout     time.Duration

	// locks serializes dispatches per device.
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex

	logger Logger
}

// NewDispatcher creates a dispatcher.
// The store must be owned exclusively by this dispatcher.
func NewDispatcher(controllers ControllerProvider, store *StateStore, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		controllers: controllers,
		store:       store,
		timeout:     timeout,
		locks:       make(map[string]*sync.Mutex),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Store returns the state store for read access (conditions, API).
func (d *Dispatcher) Store() *StateStore {
	return d.store
}

// Execute routes one resolved command to its device controller.
//
// The returned error is non-nil only for routing faults (unknown device);
// driver failures and timeouts come back as CommandResult{Success: false}
// so sequence runners can apply their soft-fail policy uniformly.
func (d *Dispatcher) Execute(ctx context.Context, deviceID, action string, params command.ResolvedParams, source string) (CommandResult, error) {
	ctrl, err := d.controllers.Controller(deviceID)
	if err != nil {
		return CommandResult{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	lock := d.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	delta, invokeErr := d.invokeWithTimeout(ctx, ctrl, action, params)
	duration := time.Since(start)

	result := CommandResult{Duration: duration}

	if invokeErr != nil {
		result.Error = invokeErr.Error()
		d.store.recordLastCommand(deviceID, LastCommand{
			Action:    action,
			Params:    params,
			Source:    source,
			Success:   false,
			Timestamp: time.Now().UTC(),
		})
		d.logger.Warn("command dispatch failed",
			"device", deviceID,
			"action", action,
			"duration_ms", duration.Milliseconds(),
			"error", invokeErr,
		)
		return result, nil
	}

	// Exactly one state mutation per successful call.
	d.store.applyDelta(deviceID, delta)
	d.store.recordLastCommand(deviceID, LastCommand{
		Action:    action,
		Params:    params,
		Source:    source,
		Success:   true,
		Timestamp: time.Now().UTC(),
	})

	result.Success = true
	result.StateDelta = delta

	d.logger.Debug("command dispatched",
		"device", deviceID,
		"action", action,
		"duration_ms", duration.Milliseconds(),
	)
	return result, nil
}

// ApplyExternalState merges a driver-reported state update into the store.
//
// Drivers push authoritative state on avbridge/state/{device}; those merges
// route through the dispatcher so the store keeps a single writer.
func (d *Dispatcher) ApplyExternalState(deviceID string, delta map[string]any) {
	d.store.applyDelta(deviceID, delta)
	d.logger.Debug("external state applied", "device", deviceID, "attributes", len(delta))
}

// invokeWithTimeout runs the controller call under the dispatch timeout.
//
// The invoke runs in its own goroutine so a driver that ignores context
// cancellation still cannot stall the caller; a late result from a
// timed-out call is discarded, never merged.
func (d *Dispatcher) invokeWithTimeout(ctx context.Context, ctrl device.Controller, action string, params command.ResolvedParams) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		delta map[string]any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		delta, err := ctrl.Invoke(callCtx, action, params)
		done <- outcome{delta: delta, err: err}
	}()

	select {
	case out := <-done:
		return out.delta, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, action, d.timeout)
	}
}

// deviceLock returns the mutex serializing dispatches to one device.
func (d *Dispatcher) deviceLock(deviceID string) *sync.Mutex {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()

	lock, ok := d.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[deviceID] = lock
	}
	return lock
}
