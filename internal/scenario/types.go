package scenario

import (
	"time"
)

// Phase is the execution phase of a room's scenario state machine.
type Phase string

// Execution phases.
const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"

	// PhaseFailed marks an unrecoverable sequencing fault (unknown scenario
	// mid-switch, broken definition). Individual step failures never
	// produce it.
	PhaseFailed Phase = "failed"
)

// SequenceKind distinguishes the two sequences of a scenario.
type SequenceKind string

// Sequence kinds.
const (
	SequenceStartup  SequenceKind = "startup"
	SequenceShutdown SequenceKind = "shutdown"
)

// Step is one conditional, delayed command invocation within a sequence.
// Immutable, part of the scenario definition.
type Step struct {
	DeviceID string         `json:"device_id"`
	Command  string         `json:"command"`
	Params   map[string]any `json:"params,omitempty"`

	// Condition optionally gates the step: "device.<attr> ==|!= <literal>",
	// evaluated against the step's own device. Empty means always execute.
	Condition string `json:"condition,omitempty"`

	// DelayAfterMs suspends the sequence after this step. Skipped steps
	// incur no delay.
	DelayAfterMs int `json:"delay_after_ms,omitempty"`

	// Critical aborts the remainder of the sequence if this step's dispatch
	// fails. Default false: scenarios are best-effort over physical devices,
	// one unreachable device must not strand the rest.
	Critical bool `json:"critical,omitempty"`
}

// Definition is a named, declarative multi-device mode with symmetric
// startup and shutdown sequences. Loaded at startup; immutable at runtime.
type Definition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RoomID string `json:"room_id"`

	// Roles aliases logical function names ("volume", "playback") to the
	// concrete device filling that function while this scenario is active.
	Roles map[string]string `json:"roles,omitempty"`

	// Devices is the set of participating device IDs. Must be a superset of
	// every device referenced by steps and roles; enforced at load.
	Devices []string `json:"devices"`

	StartupSequence  []Step `json:"startup_sequence"`
	ShutdownSequence []Step `json:"shutdown_sequence"`

	// ManualInstructions is surfaced to the user verbatim ("lower the
	// projector screen by hand"). Never executed.
	ManualInstructions string `json:"manual_instructions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Definition.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Definition) DeepCopy() *Definition {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Roles != nil {
		cpy.Roles = make(map[string]string, len(d.Roles))
		for k, v := range d.Roles {
			cpy.Roles[k] = v
		}
	}

	if d.Devices != nil {
		cpy.Devices = make([]string, len(d.Devices))
		copy(cpy.Devices, d.Devices)
	}

	cpy.StartupSequence = deepCopySteps(d.StartupSequence)
	cpy.ShutdownSequence = deepCopySteps(d.ShutdownSequence)

	return &cpy
}

func deepCopySteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	cpy := make([]Step, len(steps))
	for i, s := range steps {
		cpy[i] = s
		if s.Params != nil {
			params := make(map[string]any, len(s.Params))
			for k, v := range s.Params {
				params[k] = v
			}
			cpy[i].Params = params
		}
	}
	return cpy
}

// StepReport records the outcome of one step for diagnostics.
type StepReport struct {
	StepIndex       int       `json:"step_index"`
	DeviceID        string    `json:"device_id"`
	Command         string    `json:"command"`
	ConditionResult bool      `json:"condition_result"`
	Executed        bool      `json:"executed"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// RunReport is the outcome of one sequence run.
type RunReport struct {
	RunID      string       `json:"run_id"`
	ScenarioID string       `json:"scenario_id"`
	RoomID     string       `json:"room_id"`
	Sequence   SequenceKind `json:"sequence"`
	Steps      []StepReport `json:"steps"`

	// Cancelled marks a run preempted by a newer activation or
	// deactivation. Not a failure.
	Cancelled bool `json:"cancelled,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RoomState is the externally visible scenario state of one room.
type RoomState struct {
	RoomID           string       `json:"room_id"`
	ActiveScenarioID string       `json:"active_scenario_id,omitempty"`
	Phase            Phase        `json:"phase"`
	LastReport       []StepReport `json:"last_report,omitempty"`
}
