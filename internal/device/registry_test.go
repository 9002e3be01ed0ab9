package device

import (
	"context"
	"errors"
	"testing"

	"github.com/avbridge/avbridge-core/internal/command"
)

// ─── Mock Dependencies ───

// mockRepository is an in-memory Repository for registry tests.
type mockRepository struct {
	devices map[string]*Device
}

func newMockRepository(devices ...*Device) *mockRepository {
	m := &mockRepository{devices: make(map[string]*Device)}
	for _, d := range devices {
		m.devices[d.ID] = d
	}
	return m
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Device, error) {
	var out []Device
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) ListByRoom(_ context.Context, roomID string) ([]Device, error) {
	var out []Device
	for _, d := range m.devices {
		if d.RoomID == roomID {
			out = append(out, *d.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, dev *Device) error {
	if _, ok := m.devices[dev.ID]; ok {
		return ErrDeviceExists
	}
	m.devices[dev.ID] = dev.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, dev *Device) error {
	if _, ok := m.devices[dev.ID]; !ok {
		return ErrDeviceNotFound
	}
	m.devices[dev.ID] = dev.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

// ─── Test Fixtures ───

func testTV() *Device {
	return &Device{
		ID:     "living-room-tv",
		Name:   "Living Room TV",
		RoomID: "living-room",
		Class:  ClassLoopback,
		Commands: []command.Definition{
			{
				Action:  "power_on",
				Group:   "power",
				Effects: map[string]any{"power": true},
			},
			{
				Action:  "set_input",
				Group:   "input",
				Effects: map[string]any{"input": "$input"},
				Parameters: []command.ParameterDefinition{
					{Name: "input", Type: command.TypeString, Required: true},
				},
			},
		},
	}
}

func newTestRegistry(t *testing.T, devices ...*Device) *Registry {
	t.Helper()
	reg := NewRegistry(newMockRepository(devices...), BuiltinFactories(), FactoryDeps{})
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return reg
}

// ─── Tests ───

func TestRegistry_RefreshCacheBuildsControllers(t *testing.T) {
	reg := newTestRegistry(t, testTV())

	if reg.DeviceCount() != 1 {
		t.Fatalf("DeviceCount() = %d, want 1", reg.DeviceCount())
	}

	ctrl, err := reg.Controller("living-room-tv")
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}

	delta, err := ctrl.Invoke(context.Background(), "power_on", nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if delta["power"] != true {
		t.Errorf("delta[power] = %v, want true", delta["power"])
	}
}

func TestRegistry_RefreshCacheRejectsUnknownClass(t *testing.T) {
	dev := testTV()
	dev.Class = "upnp" // no factory registered

	reg := NewRegistry(newMockRepository(dev), BuiltinFactories(), FactoryDeps{})
	err := reg.RefreshCache(context.Background())
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("RefreshCache() error = %v, want ErrUnknownClass", err)
	}
}

func TestRegistry_RefreshCacheRejectsInvalidCommands(t *testing.T) {
	dev := testTV()
	dev.Commands = append(dev.Commands, command.Definition{
		Action:  "blast",
		Variant: command.VariantIR, // missing ir_code
	})

	reg := NewRegistry(newMockRepository(dev), BuiltinFactories(), FactoryDeps{})
	if err := reg.RefreshCache(context.Background()); err == nil {
		t.Fatal("RefreshCache() succeeded with invalid command definition")
	}
}

func TestRegistry_GetDeviceReturnsCopy(t *testing.T) {
	reg := newTestRegistry(t, testTV())

	first, err := reg.GetDevice(context.Background(), "living-room-tv")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}

	// Mutating the returned copy must not leak into the cache.
	first.Commands[0].Effects["power"] = false

	second, err := reg.GetDevice(context.Background(), "living-room-tv")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if second.Commands[0].Effects["power"] != true {
		t.Error("cache was mutated through a returned copy")
	}
}

func TestRegistry_GetDeviceNotFound(t *testing.T) {
	reg := newTestRegistry(t, testTV())

	_, err := reg.GetDevice(context.Background(), "ghost")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_GetDevicesByRoom(t *testing.T) {
	tv := testTV()
	amp := testTV()
	amp.ID = "mf-amplifier"
	amp.RoomID = "cinema"

	reg := newTestRegistry(t, tv, amp)

	devices, err := reg.GetDevicesByRoom(context.Background(), "cinema")
	if err != nil {
		t.Fatalf("GetDevicesByRoom() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "mf-amplifier" {
		t.Errorf("GetDevicesByRoom() = %v, want [mf-amplifier]", devices)
	}
}

func TestRegistry_CreateDeviceValidatesClass(t *testing.T) {
	reg := newTestRegistry(t)

	dev := testTV()
	dev.Class = "reflection"
	err := reg.CreateDevice(context.Background(), dev)
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("CreateDevice() error = %v, want ErrUnknownClass", err)
	}
}

func TestLoopbackController_UnknownAction(t *testing.T) {
	reg := newTestRegistry(t, testTV())

	ctrl, err := reg.Controller("living-room-tv")
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}

	_, err = ctrl.Invoke(context.Background(), "levitate", nil)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Invoke() error = %v, want ErrUnknownAction", err)
	}
}

func TestResolveEffects_ParamReferences(t *testing.T) {
	def := &command.Definition{
		Action: "set_input",
		Effects: map[string]any{
			"input": "$input",
			"power": true,
			"mode":  "$missing",
		},
	}

	delta := resolveEffects(def, command.ResolvedParams{"input": "hdmi3"})

	if delta["input"] != "hdmi3" {
		t.Errorf("input = %v, want hdmi3", delta["input"])
	}
	if delta["power"] != true {
		t.Errorf("power = %v, want literal true", delta["power"])
	}
	if _, ok := delta["mode"]; ok {
		t.Error("effect referencing absent parameter should be dropped")
	}
}
