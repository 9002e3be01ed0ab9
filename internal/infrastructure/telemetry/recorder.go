package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/avbridge/avbridge-core/internal/scenario"
)

// stepStatus folds a step outcome into a low-cardinality tag value.
func stepStatus(step scenario.StepReport) string {
	switch {
	case !step.Executed:
		return "skipped"
	case step.Success:
		return "ok"
	default:
		return "failed"
	}
}

// RecordStep writes one scenario step outcome as a time-series point.
// Satisfies the executor's Recorder interface.
//
// The write is non-blocking; data is batched and sent asynchronously, so a
// slow or absent InfluxDB never stalls a running sequence.
func (c *Client) RecordStep(roomID, scenarioID string, sequence scenario.SequenceKind, step scenario.StepReport) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scenario_steps",
		map[string]string{
			"room":     roomID,
			"scenario": scenarioID,
			"sequence": string(sequence),
			"device":   step.DeviceID,
			"command":  step.Command,
			"status":   stepStatus(step),
		},
		map[string]interface{}{
			"step_index": step.StepIndex,
			"executed":   step.Executed,
			"success":    step.Success,
		},
		step.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// RecordCommand writes a direct device command dispatch measurement.
//
// Used for tracking per-device command latency and failure rates outside
// scenario runs (role commands, API commands, MQTT commands).
func (c *Client) RecordCommand(deviceID, action, source string, duration time.Duration, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_commands",
		map[string]string{
			"device": deviceID,
			"action": action,
			"source": source,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
			"success":     success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordRoomPhase writes a room phase transition.
func (c *Client) RecordRoomPhase(roomID string, phase scenario.Phase, activeScenarioID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"room_phases",
		map[string]string{
			"room":  roomID,
			"phase": string(phase),
		},
		map[string]interface{}{
			"active_scenario": activeScenarioID,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
