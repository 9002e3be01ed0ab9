// Package telemetry provides InfluxDB-backed time-series recording for the
// bridge.
//
// It wraps the official influxdb-client-go v2 library for:
//   - per-step scenario run outcomes (scenario_steps)
//   - device command latency and failure rates (device_commands)
//   - room phase transitions (room_phases)
//
// # Usage
//
//	client, err := telemetry.Connect(cfg.Telemetry)
//	if errors.Is(err, telemetry.ErrDisabled) {
//	    // run without telemetry; the executor falls back to its noop recorder
//	}
//	defer client.Close()
//
//	executor.SetRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes, so recording
// never blocks a running sequence.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package telemetry
