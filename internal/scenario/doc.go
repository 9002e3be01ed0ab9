// Package scenario implements the orchestration engine: declarative
// multi-device modes executed as ordered, conditional, delayed command
// sequences.
//
// Architecture:
//
//	            activate / deactivate / invokeRole
//	                         │
//	                    ┌────▼─────┐   per-room state machine
//	                    │ Executor │   Idle→Starting→Running→Stopping→Idle
//	                    └────┬─────┘
//	          ┌──────────────┼───────────────┐
//	     ┌────▼────┐   ┌─────▼─────┐   ┌─────▼──────┐
//	     │Registry │   │ Condition │   │ Dispatcher │ (internal/dispatch)
//	     │ (cache) │   │ Evaluator │   │ via iface  │
//	     └────┬────┘   └───────────┘   └────────────┘
//	     ┌────▼───────┐
//	     │ Repository │ (SQLite: definitions + run reports)
//	     └────────────┘
//
// Sequences run strictly in declaration order. Steps are gated by a
// restricted condition grammar evaluated against the device state store,
// continue past individual failures (soft-fail), and suspend on declared
// delays without blocking other rooms. A newer activation cancels an
// in-flight sequence cooperatively at its next step boundary.
//
// Roles alias logical functions ("volume") to concrete devices within the
// active scenario; role-addressed commands inherit the resolved device's
// own command schema.
package scenario
