// Package device models the AV endpoints the bridge controls.
//
// A Device carries its room, class, addressing and an immutable command
// schema. The class names an entry in an explicit factory map
// (BuiltinFactories) which constructs the device's Controller — the
// capability boundary to the driver layer. Class resolution is an eager
// table lookup at load time, never reflection.
//
//	┌──────────┐   RefreshCache    ┌───────────────┐
//	│ Registry │──────────────────▶│  Repository   │ (SQLite)
//	│  cache   │                   └───────────────┘
//	│          │   class → factory ┌───────────────┐
//	│          │──────────────────▶│  Controller   │ (mqtt | loopback)
//	└──────────┘                   └───────────────┘
//
// The mqtt class publishes commands to the device's vendor bridge over the
// broker; the loopback class applies declared effects directly and exists
// for virtual devices and tests.
package device
