package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/device"
)

// ─── Mock Dependencies ───

// mockController scripts Invoke outcomes and records concurrency.
type mockController struct {
	mu       sync.Mutex
	delta    map[string]any
	err      error
	delay    time.Duration
	inFlight int
	maxSeen  int
	calls    int
}

func (m *mockController) Invoke(ctx context.Context, _ string, _ command.ResolvedParams) (map[string]any, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.delta, nil
}

// mockProvider maps device IDs to controllers.
type mockProvider struct {
	controllers map[string]device.Controller
}

func (m *mockProvider) Controller(deviceID string) (device.Controller, error) {
	c, ok := m.controllers[deviceID]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return c, nil
}

func newTestDispatcher(t *testing.T, timeout time.Duration, controllers map[string]device.Controller) *Dispatcher {
	t.Helper()
	return NewDispatcher(&mockProvider{controllers: controllers}, NewStateStore(), timeout)
}

// ─── Tests ───

func TestExecute_SuccessMergesDelta(t *testing.T) {
	ctrl := &mockController{delta: map[string]any{"power": true}}
	d := newTestDispatcher(t, time.Second, map[string]device.Controller{"tv": ctrl})

	result, err := d.Execute(context.Background(), "tv", "power_on", nil, "test")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false, error = %s", result.Error)
	}

	if v, ok := d.Store().Get("tv", "power"); !ok || v != true {
		t.Errorf("Store().Get(tv, power) = %v, %v; want true, true", v, ok)
	}

	lc, ok := d.Store().LastCommand("tv")
	if !ok || !lc.Success || lc.Action != "power_on" || lc.Source != "test" {
		t.Errorf("LastCommand = %+v, %v; want successful power_on from test", lc, ok)
	}
}

func TestExecute_FailureDoesNotMutateState(t *testing.T) {
	ctrl := &mockController{err: errors.New("device unreachable")}
	d := newTestDispatcher(t, time.Second, map[string]device.Controller{"tv": ctrl})

	result, err := d.Execute(context.Background(), "tv", "power_on", nil, "test")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true for a failing controller")
	}
	if result.Error == "" {
		t.Error("result.Error is empty for a failing controller")
	}

	if _, ok := d.Store().Get("tv", "power"); ok {
		t.Error("failed dispatch mutated attribute state")
	}

	// The failed attempt itself is still recorded.
	lc, ok := d.Store().LastCommand("tv")
	if !ok || lc.Success {
		t.Errorf("LastCommand = %+v, %v; want recorded failed attempt", lc, ok)
	}
}

func TestExecute_TimeoutIsCommandFailure(t *testing.T) {
	ctrl := &mockController{delay: 200 * time.Millisecond, delta: map[string]any{"power": true}}
	d := newTestDispatcher(t, 20*time.Millisecond, map[string]device.Controller{"tv": ctrl})

	result, err := d.Execute(context.Background(), "tv", "power_on", nil, "test")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true for a timed-out call")
	}

	if _, ok := d.Store().Get("tv", "power"); ok {
		t.Error("timed-out dispatch mutated attribute state")
	}
}

func TestExecute_UnknownDevice(t *testing.T) {
	d := newTestDispatcher(t, time.Second, map[string]device.Controller{})

	_, err := d.Execute(context.Background(), "ghost", "power_on", nil, "test")
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Execute() error = %v, want ErrUnknownDevice", err)
	}
}

func TestExecute_SerializesPerDevice(t *testing.T) {
	ctrl := &mockController{delay: 20 * time.Millisecond, delta: map[string]any{"ok": true}}
	d := newTestDispatcher(t, time.Second, map[string]device.Controller{"amp": ctrl})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Execute(context.Background(), "amp", "volume_up", nil, "test")
		}()
	}
	wg.Wait()

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.calls != 5 {
		t.Errorf("calls = %d, want 5", ctrl.calls)
	}
	if ctrl.maxSeen > 1 {
		t.Errorf("max concurrent invokes on one device = %d, want 1", ctrl.maxSeen)
	}
}

func TestExecute_DevicesDispatchConcurrently(t *testing.T) {
	slow := &mockController{delay: 100 * time.Millisecond, delta: map[string]any{"ok": true}}
	fast := &mockController{delta: map[string]any{"ok": true}}
	d := newTestDispatcher(t, time.Second, map[string]device.Controller{"slow": slow, "fast": fast})

	release := make(chan struct{})
	go func() {
		defer close(release)
		_, _ = d.Execute(context.Background(), "slow", "noop", nil, "test")
	}()

	// The fast device must not queue behind the slow one.
	start := time.Now()
	if _, err := d.Execute(context.Background(), "fast", "noop", nil, "test"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("fast device blocked %v behind slow device", elapsed)
	}
	<-release
}

func TestApplyExternalState_CreatesEntry(t *testing.T) {
	d := newTestDispatcher(t, time.Second, nil)

	d.ApplyExternalState("streamer", map[string]any{"playing": true, "track": "intro"})

	if v, ok := d.Store().Get("streamer", "playing"); !ok || v != true {
		t.Errorf("Get(streamer, playing) = %v, %v; want true", v, ok)
	}

	snap := d.Store().Snapshot("streamer")
	if len(snap) != 2 {
		t.Errorf("Snapshot() has %d attributes, want 2", len(snap))
	}

	// Snapshot is a copy.
	snap["playing"] = false
	if v, _ := d.Store().Get("streamer", "playing"); v != true {
		t.Error("store mutated through snapshot copy")
	}
}

func TestStateStore_AbsentDistinctFromNil(t *testing.T) {
	store := NewStateStore()

	if _, ok := store.Get("tv", "power"); ok {
		t.Error("Get on unseen device reported presence")
	}

	store.applyDelta("tv", map[string]any{"power": nil})
	if _, ok := store.Get("tv", "power"); !ok {
		t.Error("explicitly stored nil should report presence")
	}
}
