// Package control binds the scenario orchestration engine to the MQTT
// control plane.
//
// The Binding subscribes to room control topics (activate, deactivate,
// role actions) and driver state pushes, translating them into executor
// and dispatcher calls. The StatusPublisher mirrors room lifecycle events
// back out as retained MQTT messages for wall panels and integrations.
//
// Control handlers never block the MQTT receive loop: scenario runs are
// handed to goroutines tied to the binding's lifecycle, and Stop() drains
// them before returning.
package control
