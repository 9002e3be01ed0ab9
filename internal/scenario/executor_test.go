package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/device"
	"github.com/avbridge/avbridge-core/internal/dispatch"
)

// ─── Mock Dependencies ───

// mockScenarioRepo is an in-memory scenario Repository.
type mockScenarioRepo struct {
	mu      sync.Mutex
	defs    map[string]*Definition
	reports []RunReport
}

func newMockScenarioRepo(defs ...*Definition) *mockScenarioRepo {
	m := &mockScenarioRepo{defs: make(map[string]*Definition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *mockScenarioRepo) GetByID(_ context.Context, id string) (*Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, ErrScenarioNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockScenarioRepo) List(_ context.Context) ([]Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Definition
	for _, d := range m.defs {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *mockScenarioRepo) ListByRoom(_ context.Context, roomID string) ([]Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Definition
	for _, d := range m.defs {
		if d.RoomID == roomID {
			out = append(out, *d.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockScenarioRepo) Create(_ context.Context, def *Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[def.ID]; ok {
		return ErrScenarioExists
	}
	m.defs[def.ID] = def.DeepCopy()
	return nil
}

func (m *mockScenarioRepo) Update(_ context.Context, def *Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def.DeepCopy()
	return nil
}

func (m *mockScenarioRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	return nil
}

func (m *mockScenarioRepo) SaveRunReport(_ context.Context, report *RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *report)
	return nil
}

func (m *mockScenarioRepo) ListRunReports(_ context.Context, roomID string, _ int) ([]RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RunReport
	for _, r := range m.reports {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockDeviceSource serves fixed device definitions.
type mockDeviceSource struct {
	devices map[string]*device.Device
}

func (m *mockDeviceSource) GetDevice(_ context.Context, id string) (*device.Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// mockState is a plain attribute map implementing StateReader.
type mockState struct {
	mu    sync.Mutex
	attrs map[string]map[string]any
}

func newMockState() *mockState {
	return &mockState{attrs: make(map[string]map[string]any)}
}

func (m *mockState) Get(deviceID, attribute string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attrs, ok := m.attrs[deviceID]
	if !ok {
		return nil, false
	}
	v, ok := attrs[attribute]
	return v, ok
}

func (m *mockState) set(deviceID string, delta map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attrs, ok := m.attrs[deviceID]
	if !ok {
		attrs = make(map[string]any)
		m.attrs[deviceID] = attrs
	}
	for k, v := range delta {
		attrs[k] = v
	}
}

// dispatchCall records one Execute invocation.
type dispatchCall struct {
	DeviceID string
	Action   string
	Params   command.ResolvedParams
	Source   string
}

// mockDispatcher scripts per-device/action outcomes and mirrors successful
// deltas into the shared mockState, like the real dispatcher does.
type mockDispatcher struct {
	mu      sync.Mutex
	calls   []dispatchCall
	failing map[string]string         // "device/action" -> error message
	deltas  map[string]map[string]any // "device/action" -> state delta
	state   *mockState
	delay   time.Duration
}

func newMockDispatcher(state *mockState) *mockDispatcher {
	return &mockDispatcher{
		failing: make(map[string]string),
		deltas:  make(map[string]map[string]any),
		state:   state,
	}
}

func (m *mockDispatcher) Execute(ctx context.Context, deviceID, action string, params command.ResolvedParams, source string) (dispatch.CommandResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, dispatchCall{DeviceID: deviceID, Action: action, Params: params, Source: source})
	msg, fails := m.failing[deviceID+"/"+action]
	delta := m.deltas[deviceID+"/"+action]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	if fails {
		return dispatch.CommandResult{Success: false, Error: msg}, nil
	}
	if delta != nil && m.state != nil {
		m.state.set(deviceID, delta)
	}
	return dispatch.CommandResult{Success: true, StateDelta: delta}, nil
}

func (m *mockDispatcher) callLog() []dispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dispatchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ─── Test Fixtures ───

func cinemaDevices() map[string]*device.Device {
	mk := func(id, room string, commands ...command.Definition) *device.Device {
		return &device.Device{ID: id, RoomID: room, Class: device.ClassLoopback, Commands: commands}
	}
	powerCmds := []command.Definition{
		{Action: "power_on", Group: "power"},
		{Action: "power_off", Group: "power"},
	}
	return map[string]*device.Device{
		"living-room-tv": mk("living-room-tv", "living-room", powerCmds...),
		"zappiti": mk("zappiti", "living-room",
			command.Definition{Action: "play", Group: "playback"},
			command.Definition{Action: "stop", Group: "playback"},
		),
		"mf-amplifier": mk("mf-amplifier", "living-room",
			command.Definition{Action: "power_on", Group: "power"},
			command.Definition{Action: "power_off", Group: "power"},
			command.Definition{
				Action: "set_volume",
				Group:  "volume",
				Parameters: []command.ParameterDefinition{
					{Name: "level", Type: command.TypeRange, Required: true, Min: floatPtr(0), Max: floatPtr(100)},
				},
			},
		),
		"bedroom-tv": mk("bedroom-tv", "bedroom", powerCmds...),
	}
}

func floatPtr(f float64) *float64 { return &f }

func movieScenario() *Definition {
	return &Definition{
		ID:     "movie-zappiti",
		Name:   "Movie (Zappiti)",
		RoomID: "living-room",
		Roles:  map[string]string{"volume": "mf-amplifier"},
		Devices: []string{
			"living-room-tv", "zappiti", "mf-amplifier",
		},
		StartupSequence: []Step{
			{DeviceID: "living-room-tv", Command: "power_on", Condition: "device.power != True"},
			{DeviceID: "mf-amplifier", Command: "power_on"},
			{DeviceID: "zappiti", Command: "play"},
		},
		ShutdownSequence: []Step{
			{DeviceID: "zappiti", Command: "stop"},
			{DeviceID: "mf-amplifier", Command: "power_off"},
			{DeviceID: "living-room-tv", Command: "power_off"},
		},
	}
}

func musicScenario() *Definition {
	return &Definition{
		ID:      "music",
		Name:    "Music",
		RoomID:  "living-room",
		Roles:   map[string]string{"volume": "mf-amplifier"},
		Devices: []string{"mf-amplifier"},
		StartupSequence: []Step{
			{DeviceID: "mf-amplifier", Command: "power_on"},
		},
		ShutdownSequence: []Step{
			{DeviceID: "mf-amplifier", Command: "power_off"},
		},
	}
}

type testHarness struct {
	executor   *Executor
	dispatcher *mockDispatcher
	state      *mockState
	repo       *mockScenarioRepo
}

func newTestHarness(t *testing.T, defs ...*Definition) *testHarness {
	t.Helper()

	repo := newMockScenarioRepo(defs...)
	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	state := newMockState()
	disp := newMockDispatcher(state)
	exec := NewExecutor(registry, &mockDeviceSource{devices: cinemaDevices()}, disp, state)
	exec.SetReportSink(repo)

	return &testHarness{executor: exec, dispatcher: disp, state: state, repo: repo}
}

// ─── Tests ───

func TestActivate_RunsStartupInOrder(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	calls := h.dispatcher.callLog()
	wantOrder := []string{"power_on", "power_on", "play"}
	if len(calls) != len(wantOrder) {
		t.Fatalf("dispatched %d commands, want %d", len(calls), len(wantOrder))
	}
	for i, want := range wantOrder {
		if calls[i].Action != want {
			t.Errorf("call %d action = %q, want %q", i, calls[i].Action, want)
		}
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for i, r := range reports {
		if r.StepIndex != i {
			t.Errorf("report %d has index %d; declaration order must be preserved", i, r.StepIndex)
		}
		if !r.Success {
			t.Errorf("report %d not successful: %s", i, r.Error)
		}
	}

	state := h.executor.RoomState("living-room")
	if state.Phase != PhaseRunning {
		t.Errorf("phase = %s, want running", state.Phase)
	}
	if state.ActiveScenarioID != "movie-zappiti" {
		t.Errorf("active = %q, want movie-zappiti", state.ActiveScenarioID)
	}
}

func TestActivate_SkipsFalseConditionWithoutDelay(t *testing.T) {
	def := movieScenario()
	def.StartupSequence[0].DelayAfterMs = 5000 // must not be waited when skipped
	h := newTestHarness(t, def)

	// TV already on: step 0's condition (power != True) is false.
	h.state.set("living-room-tv", map[string]any{"power": true})

	start := time.Now()
	reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("skipped step incurred its delay (%v)", elapsed)
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3 (skips are recorded)", len(reports))
	}
	if reports[0].Executed || reports[0].ConditionResult {
		t.Errorf("step 0 = %+v, want skipped with condition_result=false", reports[0])
	}
	if !reports[1].Executed || !reports[2].Executed {
		t.Error("remaining steps must still execute in order")
	}

	for _, c := range h.dispatcher.callLog() {
		if c.DeviceID == "living-room-tv" {
			t.Error("skipped step was dispatched")
		}
	}
}

func TestActivate_SoftFailContinues(t *testing.T) {
	h := newTestHarness(t, movieScenario())
	h.dispatcher.failing["mf-amplifier/power_on"] = "device unreachable"

	reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	if reports[1].Success || reports[1].Error == "" {
		t.Errorf("step 1 = %+v, want recorded failure", reports[1])
	}
	if !reports[2].Executed || !reports[2].Success {
		t.Error("step after a failed step must still execute")
	}

	// Partial failure is visible in the report, but the room still runs.
	if phase := h.executor.RoomState("living-room").Phase; phase != PhaseRunning {
		t.Errorf("phase = %s, want running (soft-fail policy)", phase)
	}
}

func TestActivate_CriticalStepAborts(t *testing.T) {
	def := movieScenario()
	def.StartupSequence[0].Critical = true
	def.StartupSequence[0].Condition = ""
	h := newTestHarness(t, def)
	h.dispatcher.failing["living-room-tv/power_on"] = "no response"

	reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1 (critical failure aborts remainder)", len(reports))
	}
	if len(h.dispatcher.callLog()) != 1 {
		t.Error("steps after a failed critical step were dispatched")
	}
}

func TestActivate_SwitchRunsShutdownFirst(t *testing.T) {
	h := newTestHarness(t, movieScenario(), musicScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate(movie) error = %v", err)
	}

	if _, err := h.executor.Activate(context.Background(), "living-room", "music"); err != nil {
		t.Fatalf("Activate(music) error = %v", err)
	}

	calls := h.dispatcher.callLog()
	// 3 movie startup + 3 movie shutdown + 1 music startup.
	if len(calls) != 7 {
		t.Fatalf("dispatched %d commands, want 7", len(calls))
	}

	shutdown := calls[3:6]
	wantShutdown := []string{"stop", "power_off", "power_off"}
	for i, want := range wantShutdown {
		if shutdown[i].Action != want {
			t.Errorf("shutdown call %d = %q, want %q (old scenario must wind down before new starts)", i, shutdown[i].Action, want)
		}
	}
	if calls[6].DeviceID != "mf-amplifier" || calls[6].Action != "power_on" {
		t.Errorf("final call = %+v, want music startup", calls[6])
	}

	state := h.executor.RoomState("living-room")
	if state.ActiveScenarioID != "music" {
		t.Errorf("active = %q, want music", state.ActiveScenarioID)
	}
}

func TestDeactivate_RunsShutdownAndIdles(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	reports, err := h.executor.Deactivate(context.Background(), "living-room")
	if err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d shutdown reports, want 3", len(reports))
	}

	state := h.executor.RoomState("living-room")
	if state.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", state.Phase)
	}
	if state.ActiveScenarioID != "" {
		t.Errorf("active = %q, want empty", state.ActiveScenarioID)
	}
}

func TestDeactivate_NoActiveScenarioIsNoop(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	reports, err := h.executor.Deactivate(context.Background(), "living-room")
	if err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("got %d reports, want none", len(reports))
	}
	if len(h.dispatcher.callLog()) != 0 {
		t.Error("deactivating an idle room dispatched commands")
	}
}

func TestActivate_WrongRoom(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	_, err := h.executor.Activate(context.Background(), "bedroom", "movie-zappiti")
	if !errors.Is(err, ErrWrongRoom) {
		t.Fatalf("Activate() error = %v, want ErrWrongRoom", err)
	}
}

func TestActivate_UnknownScenario(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	_, err := h.executor.Activate(context.Background(), "living-room", "ghost")
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Fatalf("Activate() error = %v, want ErrScenarioNotFound", err)
	}
}

func TestActivate_PreemptionCancelsInFlight(t *testing.T) {
	def := movieScenario()
	def.StartupSequence[0].DelayAfterMs = 2000
	h := newTestHarness(t, def, musicScenario())

	type outcome struct {
		reports []StepReport
		err     error
	}
	first := make(chan outcome, 1)

	go func() {
		reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
		first <- outcome{reports, err}
	}()

	// Let the first activation reach its post-step delay.
	waitForCalls(t, h.dispatcher, 1)

	// Preempt with a different scenario.
	if _, err := h.executor.Activate(context.Background(), "living-room", "music"); err != nil {
		t.Fatalf("preempting Activate() error = %v", err)
	}

	out := <-first
	if !errors.Is(out.err, ErrSequenceCancelled) {
		t.Fatalf("preempted Activate() error = %v, want ErrSequenceCancelled", out.err)
	}
	// Cancellation does not roll back: the step that ran stays run.
	if len(out.reports) != 1 {
		t.Errorf("preempted run reported %d steps, want 1", len(out.reports))
	}

	state := h.executor.RoomState("living-room")
	if state.ActiveScenarioID != "music" {
		t.Errorf("active = %q, want music (preempting scenario wins)", state.ActiveScenarioID)
	}
}

func waitForCalls(t *testing.T, d *mockDispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(d.callLog()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d dispatches", n)
}

// slowControllerProvider hands the same controller out for every device.
type slowControllerProvider struct{ ctrl device.Controller }

func (p *slowControllerProvider) Controller(string) (device.Controller, error) {
	return p.ctrl, nil
}

// slowController signals when a command is in flight, then completes after
// a fixed hold regardless of the caller's context.
type slowController struct {
	started chan struct{}
	hold    time.Duration
	once    sync.Once
}

func (c *slowController) Invoke(context.Context, string, command.ResolvedParams) (map[string]any, error) {
	c.once.Do(func() { close(c.started) })
	time.Sleep(c.hold)
	return map[string]any{"power": true}, nil
}

func TestPreemption_InFlightCommandRunsToCompletion(t *testing.T) {
	def := &Definition{
		ID:      "slow-start",
		RoomID:  "living-room",
		Devices: []string{"living-room-tv"},
		StartupSequence: []Step{
			{DeviceID: "living-room-tv", Command: "power_on"},
		},
	}

	repo := newMockScenarioRepo(def)
	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	// Real dispatcher and store: a command held on the wire while the room
	// is preempted must still land its state delta.
	ctrl := &slowController{started: make(chan struct{}), hold: 300 * time.Millisecond}
	store := dispatch.NewStateStore()
	disp := dispatch.NewDispatcher(&slowControllerProvider{ctrl: ctrl}, store, 5*time.Second)
	exec := NewExecutor(registry, &mockDeviceSource{devices: cinemaDevices()}, disp, store)

	type outcome struct {
		reports []StepReport
		err     error
	}
	first := make(chan outcome, 1)
	go func() {
		reports, err := exec.Activate(context.Background(), "living-room", "slow-start")
		first <- outcome{reports, err}
	}()

	// Deactivate while the command is mid-dispatch.
	<-ctrl.started
	second := make(chan error, 1)
	go func() {
		_, err := exec.Deactivate(context.Background(), "living-room")
		second <- err
	}()

	out := <-first
	if out.err != nil {
		t.Fatalf("Activate() error = %v", out.err)
	}
	if len(out.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(out.reports))
	}
	if !out.reports[0].Executed || !out.reports[0].Success || out.reports[0].Error != "" {
		t.Fatalf("step report = %+v, want clean success despite the concurrent deactivate", out.reports[0])
	}

	// The completed command's delta reached the store.
	if v, ok := store.Get("living-room-tv", "power"); !ok || v != true {
		t.Errorf("state after dispatch = %v, %v; want true", v, ok)
	}

	if err := <-second; err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
}

func TestPreemption_SupersededRequestStartsCancelled(t *testing.T) {
	rt := &roomRuntime{}

	first := rt.preempt()
	// A newer request arrives before the first one stores its cancel.
	second := rt.preempt()

	ctx1, cancel1 := context.WithCancel(context.Background())
	rt.setCancel(cancel1, first)
	if ctx1.Err() == nil {
		t.Fatal("superseded request's context not cancelled; the newest request must win")
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	rt.setCancel(cancel2, second)
	defer rt.clearCancel(cancel2)
	if ctx2.Err() != nil {
		t.Fatal("newest request's context cancelled prematurely")
	}
}

func TestRooms_RunIndependently(t *testing.T) {
	bedroom := &Definition{
		ID:      "bedtime",
		RoomID:  "bedroom",
		Devices: []string{"bedroom-tv"},
		StartupSequence: []Step{
			{DeviceID: "bedroom-tv", Command: "power_on"},
		},
	}
	living := movieScenario()
	living.StartupSequence[0].DelayAfterMs = 500
	living.StartupSequence[0].Condition = ""

	h := newTestHarness(t, living, bedroom)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	}()

	waitForCalls(t, h.dispatcher, 1)

	// The bedroom must not queue behind the living room's delay.
	start := time.Now()
	if _, err := h.executor.Activate(context.Background(), "bedroom", "bedtime"); err != nil {
		t.Fatalf("Activate(bedroom) error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("bedroom activation blocked %v behind living room", elapsed)
	}
	<-done
}

func TestEndToEnd_ConditionSeesDispatchedState(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	// power_on reports power=true; the dispatcher merges it into state.
	h.dispatcher.deltas["living-room-tv/power_on"] = map[string]any{"power": true}
	h.state.set("living-room-tv", map[string]any{"power": false})

	reports, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if !reports[0].Executed {
		t.Fatal("power_on should execute while power=false")
	}

	if v, ok := h.state.Get("living-room-tv", "power"); !ok || v != true {
		t.Fatalf("state after dispatch = %v, %v; want true", v, ok)
	}

	// Re-activating: the condition now sees the updated state and skips.
	reports, err = h.executor.Activate(context.Background(), "living-room", "movie-zappiti")
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if reports[0].Executed {
		t.Error("power_on should be skipped once power=true")
	}
}

func TestInvokeRole_RoutesToResolvedDevice(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	result, err := h.executor.InvokeRole(context.Background(), "living-room", "volume", "set_volume", map[string]any{"level": 20})
	if err != nil {
		t.Fatalf("InvokeRole() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("InvokeRole() result = %+v", result)
	}

	calls := h.dispatcher.callLog()
	last := calls[len(calls)-1]
	if last.DeviceID != "mf-amplifier" || last.Action != "set_volume" {
		t.Errorf("role command routed to %s/%s, want mf-amplifier/set_volume", last.DeviceID, last.Action)
	}
	// Validated against the amplifier's own schema: range becomes float64.
	if last.Params["level"] != float64(20) {
		t.Errorf("level = %v (%T), want 20.0", last.Params["level"], last.Params["level"])
	}
}

func TestInvokeRole_ValidatesAgainstInheritedSchema(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	before := len(h.dispatcher.callLog())
	_, err := h.executor.InvokeRole(context.Background(), "living-room", "volume", "set_volume", map[string]any{"level": 500})
	if !errors.Is(err, command.ErrOutOfRange) {
		t.Fatalf("InvokeRole() error = %v, want ErrOutOfRange", err)
	}
	if len(h.dispatcher.callLog()) != before {
		t.Error("invalid role command was dispatched")
	}
}

func TestInvokeRole_NoActiveScenario(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	_, err := h.executor.InvokeRole(context.Background(), "living-room", "volume", "set_volume", map[string]any{"level": 20})
	if !errors.Is(err, ErrNoActiveScenario) {
		t.Fatalf("InvokeRole() error = %v, want ErrNoActiveScenario", err)
	}
}

func TestInvokeRole_RoleNotFound(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	_, err := h.executor.InvokeRole(context.Background(), "living-room", "lighting", "dim", nil)
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("InvokeRole() error = %v, want ErrRoleNotFound", err)
	}
}

func TestActivate_PersistsRunReports(t *testing.T) {
	h := newTestHarness(t, movieScenario())

	if _, err := h.executor.Activate(context.Background(), "living-room", "movie-zappiti"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	reports, err := h.repo.ListRunReports(context.Background(), "living-room", 10)
	if err != nil {
		t.Fatalf("ListRunReports() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("persisted %d runs, want 1", len(reports))
	}
	if reports[0].Sequence != SequenceStartup || len(reports[0].Steps) != 3 {
		t.Errorf("persisted run = %+v, want startup with 3 steps", reports[0])
	}
}
