package device

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/avbridge/avbridge-core/internal/command"
)

// ─── Mock Dependencies ───

type mockPublisher struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
	calls    int
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.calls++
	m.topic = topic
	m.payload = payload
	m.qos = qos
	m.retained = retained
	return m.err
}

// ─── Tests ───

func TestMQTTController_PublishesCommand(t *testing.T) {
	pub := &mockPublisher{}
	dev := testTV()
	dev.Class = ClassMQTT

	ctrl, err := newMQTTController(dev, FactoryDeps{Publisher: pub})
	if err != nil {
		t.Fatalf("newMQTTController() error = %v", err)
	}

	delta, err := ctrl.Invoke(context.Background(), "set_input", command.ResolvedParams{"input": "hdmi3"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if pub.topic != "avbridge/command/living-room-tv" {
		t.Errorf("topic = %q, want avbridge/command/living-room-tv", pub.topic)
	}
	if pub.retained {
		t.Error("commands must not be retained")
	}

	var payload commandPayload
	if err := json.Unmarshal(pub.payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Action != "set_input" {
		t.Errorf("payload.Action = %q, want set_input", payload.Action)
	}
	if payload.Params["input"] != "hdmi3" {
		t.Errorf("payload.Params[input] = %v, want hdmi3", payload.Params["input"])
	}

	if delta["input"] != "hdmi3" {
		t.Errorf("delta[input] = %v, want hdmi3 (declared effect)", delta["input"])
	}
}

func TestMQTTController_TopicOverride(t *testing.T) {
	pub := &mockPublisher{}
	dev := testTV()
	dev.Class = ClassMQTT
	dev.Address = map[string]any{"topic": "vendor/tv/cmd"}

	ctrl, err := newMQTTController(dev, FactoryDeps{Publisher: pub})
	if err != nil {
		t.Fatalf("newMQTTController() error = %v", err)
	}

	if _, err := ctrl.Invoke(context.Background(), "power_on", nil); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if pub.topic != "vendor/tv/cmd" {
		t.Errorf("topic = %q, want vendor/tv/cmd", pub.topic)
	}
}

func TestMQTTController_IRCommandCarriesCode(t *testing.T) {
	pub := &mockPublisher{}
	dev := testTV()
	dev.Class = ClassMQTT
	dev.Commands = append(dev.Commands, command.Definition{
		Action:  "eject",
		Variant: command.VariantIR,
		IRCode:  "0x20DF10EF",
	})

	ctrl, err := newMQTTController(dev, FactoryDeps{Publisher: pub})
	if err != nil {
		t.Fatalf("newMQTTController() error = %v", err)
	}

	if _, err := ctrl.Invoke(context.Background(), "eject", nil); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	var payload commandPayload
	if err := json.Unmarshal(pub.payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.IRCode != "0x20DF10EF" {
		t.Errorf("payload.IRCode = %q, want 0x20DF10EF", payload.IRCode)
	}
}

func TestMQTTController_PublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker unreachable")}
	dev := testTV()
	dev.Class = ClassMQTT

	ctrl, err := newMQTTController(dev, FactoryDeps{Publisher: pub})
	if err != nil {
		t.Fatalf("newMQTTController() error = %v", err)
	}

	delta, err := ctrl.Invoke(context.Background(), "power_on", nil)
	if err == nil {
		t.Fatal("Invoke() succeeded despite publish failure")
	}
	if delta != nil {
		t.Error("failed invoke must not return a state delta")
	}
}

func TestMQTTController_RequiresPublisher(t *testing.T) {
	dev := testTV()
	dev.Class = ClassMQTT

	if _, err := newMQTTController(dev, FactoryDeps{}); err == nil {
		t.Fatal("newMQTTController() succeeded without a publisher")
	}
}
