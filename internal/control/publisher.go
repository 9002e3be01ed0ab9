package control

import (
	"encoding/json"

	"github.com/avbridge/avbridge-core/internal/infrastructure/mqtt"
	"github.com/avbridge/avbridge-core/internal/scenario"
)

// StatusPublisher broadcasts room lifecycle events over MQTT.
// Implements the executor's EventSink.
//
// Both topics are published retained so wall panels and late subscribers
// immediately see the current room state and the last run's outcome.
type StatusPublisher struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	logger Logger
}

// NewStatusPublisher creates an MQTT status publisher.
func NewStatusPublisher(client MQTTClient) *StatusPublisher {
	return &StatusPublisher{mqtt: client, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher.
func (p *StatusPublisher) SetLogger(logger Logger) { p.logger = logger }

// RoomPhaseChanged publishes the room's state to avbridge/room/{room}/status.
func (p *StatusPublisher) RoomPhaseChanged(state scenario.RoomState) {
	// The last report rides on the report topic; keep status payloads small.
	state.LastReport = nil

	payload, err := json.Marshal(state)
	if err != nil {
		p.logger.Error("encoding room status", "room", state.RoomID, "error", err)
		return
	}

	if err := p.mqtt.Publish(p.topics.RoomStatus(state.RoomID), payload, controlQoS, true); err != nil {
		p.logger.Warn("publishing room status", "room", state.RoomID, "error", err)
	}
}

// RunCompleted publishes the run report to avbridge/room/{room}/report.
func (p *StatusPublisher) RunCompleted(report scenario.RunReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		p.logger.Error("encoding run report", "room", report.RoomID, "error", err)
		return
	}

	if err := p.mqtt.Publish(p.topics.RoomReport(report.RoomID), payload, controlQoS, true); err != nil {
		p.logger.Warn("publishing run report", "room", report.RoomID, "error", err)
	}
}
