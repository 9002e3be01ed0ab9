package device

import (
	"fmt"
)

// Device class identifiers. The class set is closed: a device naming any
// other class is rejected at load time, not at first dispatch.
const (
	// ClassMQTT drives devices whose vendor bridge listens on
	// avbridge/command/{device} and reports on avbridge/state/{device}.
	ClassMQTT = "mqtt"

	// ClassLoopback applies command effects directly with no I/O.
	// Used for virtual devices and wiring tests.
	ClassLoopback = "loopback"
)

// CommandPublisher publishes command payloads to the broker.
// Satisfied by mqtt.Client.
type CommandPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// FactoryDeps carries the shared dependencies controller factories may need.
type FactoryDeps struct {
	Publisher CommandPublisher
	Logger    Logger
}

// ControllerFactory constructs a Controller for one device.
type ControllerFactory func(dev *Device, deps FactoryDeps) (Controller, error)

// BuiltinFactories returns the explicit class-to-factory map.
//
// Class resolution is a startup-time table lookup, never reflection: adding
// a class means adding an entry here, and an unknown class fails device
// load eagerly.
func BuiltinFactories() map[string]ControllerFactory {
	return map[string]ControllerFactory{
		ClassMQTT:     newMQTTController,
		ClassLoopback: newLoopbackController,
	}
}

// resolveFactory returns the factory for a device's class.
func resolveFactory(factories map[string]ControllerFactory, class string) (ControllerFactory, error) {
	f, ok := factories[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return f, nil
}
