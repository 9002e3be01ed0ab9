package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/device"
	"github.com/avbridge/avbridge-core/internal/dispatch"
)

// CommandDispatcher executes resolved commands. Satisfied by
// dispatch.Dispatcher.
type CommandDispatcher interface {
	Execute(ctx context.Context, deviceID, action string, params command.ResolvedParams, source string) (dispatch.CommandResult, error)
}

// StateReader reads last-known device attributes for condition evaluation.
// Satisfied by dispatch.StateStore.
type StateReader interface {
	Get(deviceID, attribute string) (any, bool)
}

// DeviceSource supplies device definitions (command schemas).
// Satisfied by device.Registry.
type DeviceSource interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
}

// EventSink receives room lifecycle notifications. Implementations must not
// block; the executor calls them inline at phase transitions.
type EventSink interface {
	RoomPhaseChanged(state RoomState)
	RunCompleted(report RunReport)
}

// Recorder receives per-step telemetry points.
type Recorder interface {
	RecordStep(roomID, scenarioID string, sequence SequenceKind, step StepReport)
}

// ReportSink persists run reports. Satisfied by Repository.
type ReportSink interface {
	SaveRunReport(ctx context.Context, report *RunReport) error
}

type noopEvents struct{}

func (noopEvents) RoomPhaseChanged(RoomState) {}
func (noopEvents) RunCompleted(RunReport)     {}

type noopRecorder struct{}

func (noopRecorder) RecordStep(string, string, SequenceKind, StepReport) {}

// Executor runs scenario sequences and owns per-room scenario state.
//
// State machine per room: Idle → Starting → Running → Stopping → Idle, with
// Failed reachable only on a sequencing fault (the active scenario's
// definition has vanished mid-switch). Individual step failures never
// produce Failed: sequences are best-effort and continue past errors.
//
// Concurrency:
//   - at most one sequence runs per room; a newer Activate/Deactivate
//     cooperatively cancels the in-flight sequence at the next step
//     boundary and then takes the room
//   - rooms are fully independent, there is no global lock
//   - delays are context-aware waits, so a suspended room costs a timer,
//     not a thread, and cancellation cuts the wait short
type Executor struct {
	scenarios  *Registry
	devices    DeviceSource
	dispatcher CommandDispatcher
	states     StateReader

	events   EventSink
	recorder Recorder
	reports  ReportSink

	rooms   map[string]*roomRuntime
	roomsMu sync.Mutex

	logger Logger
}

// roomRuntime is the executor's private per-room state.
type roomRuntime struct {
	// opMu serializes control operations (activate/deactivate) for the room.
	opMu sync.Mutex

	// cancelMu guards cancel and gen. cancel preempts the in-flight
	// sequence; gen identifies the room's newest control request.
	cancelMu sync.Mutex
	cancel   context.CancelFunc
	gen      uint64

	// stateMu guards the externally visible state.
	stateMu sync.RWMutex
	state   RoomState
}

// NewExecutor creates a scenario executor.
func NewExecutor(scenarios *Registry, devices DeviceSource, dispatcher CommandDispatcher, states StateReader) *Executor {
	return &Executor{
		scenarios:  scenarios,
		devices:    devices,
		dispatcher: dispatcher,
		states:     states,
		events:     noopEvents{},
		recorder:   noopRecorder{},
		rooms:      make(map[string]*roomRuntime),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) { e.logger = logger }

// SetEvents sets the lifecycle event sink.
func (e *Executor) SetEvents(events EventSink) { e.events = events }

// SetRecorder sets the step telemetry recorder.
func (e *Executor) SetRecorder(rec Recorder) { e.recorder = rec }

// SetReportSink sets the run report persistence sink.
func (e *Executor) SetReportSink(sink ReportSink) { e.reports = sink }

// Activate runs the named scenario's startup sequence in its room.
//
// If a different scenario is active, its shutdown sequence runs to
// completion first. If a sequence is already in flight for the room, it is
// cancelled at its next step boundary and this call takes over.
//
// Returns the step reports of everything this call ran (shutdown of the
// previous scenario, then startup). ErrSequenceCancelled means an even
// newer request preempted this one; the reports cover what ran before the
// cancellation point.
func (e *Executor) Activate(ctx context.Context, roomID, scenarioID string) ([]StepReport, error) {
	def, err := e.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if def.RoomID != roomID {
		return nil, fmt.Errorf("%w: %s is defined for room %s", ErrWrongRoom, scenarioID, def.RoomID)
	}

	rt := e.runtime(roomID)
	gen := rt.preempt()
	rt.opMu.Lock()
	defer rt.opMu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	rt.setCancel(cancel, gen)
	defer rt.clearCancel(cancel)

	var all []StepReport

	// Switching scenarios: wind the current one down first.
	current := rt.snapshot().ActiveScenarioID
	if current != "" && current != scenarioID {
		currentDef, err := e.scenarios.Get(ctx, current)
		if err != nil {
			// Sequencing fault: the active scenario has no definition.
			e.setPhase(rt, PhaseFailed)
			return nil, fmt.Errorf("active scenario %s: %w", current, err)
		}

		e.setPhase(rt, PhaseStopping)
		reports, cancelled := e.runSequence(opCtx, currentDef, SequenceShutdown)
		all = append(all, reports...)

		rt.setActive("")
		if cancelled {
			e.finishCancelled(rt, all)
			return all, ErrSequenceCancelled
		}
	}

	e.setPhase(rt, PhaseStarting)
	reports, cancelled := e.runSequence(opCtx, def, SequenceStartup)
	all = append(all, reports...)

	if cancelled {
		e.finishCancelled(rt, all)
		return all, ErrSequenceCancelled
	}

	// Soft-fail policy: the room is Running even if individual steps
	// failed — the report carries the partial failure.
	rt.setActive(scenarioID)
	rt.setLastReport(all)
	e.setPhase(rt, PhaseRunning)

	e.logger.Info("scenario activated",
		"room", roomID,
		"scenario", scenarioID,
		"steps", len(all),
	)
	return all, nil
}

// Deactivate runs the active scenario's shutdown sequence and returns the
// room to Idle. A room with no active scenario is left untouched.
func (e *Executor) Deactivate(ctx context.Context, roomID string) ([]StepReport, error) {
	rt := e.runtime(roomID)
	gen := rt.preempt()
	rt.opMu.Lock()
	defer rt.opMu.Unlock()

	current := rt.snapshot().ActiveScenarioID
	if current == "" {
		return nil, nil
	}

	def, err := e.scenarios.Get(ctx, current)
	if err != nil {
		e.setPhase(rt, PhaseFailed)
		return nil, fmt.Errorf("active scenario %s: %w", current, err)
	}

	opCtx, cancel := context.WithCancel(ctx)
	rt.setCancel(cancel, gen)
	defer rt.clearCancel(cancel)

	e.setPhase(rt, PhaseStopping)
	reports, cancelled := e.runSequence(opCtx, def, SequenceShutdown)

	rt.setActive("")
	rt.setLastReport(reports)

	if cancelled {
		e.finishCancelled(rt, reports)
		return reports, ErrSequenceCancelled
	}

	e.setPhase(rt, PhaseIdle)

	e.logger.Info("scenario deactivated", "room", roomID, "scenario", current)
	return reports, nil
}

// RoomState returns the current scenario state of a room.
// Unknown rooms report Idle.
func (e *Executor) RoomState(roomID string) RoomState {
	e.roomsMu.Lock()
	rt, ok := e.rooms[roomID]
	e.roomsMu.Unlock()

	if !ok {
		return RoomState{RoomID: roomID, Phase: PhaseIdle}
	}
	return rt.snapshot()
}

// RoomStates returns the state of every room the executor has touched.
func (e *Executor) RoomStates() []RoomState {
	e.roomsMu.Lock()
	defer e.roomsMu.Unlock()

	states := make([]RoomState, 0, len(e.rooms))
	for _, rt := range e.rooms {
		states = append(states, rt.snapshot())
	}
	return states
}

// runSequence executes steps strictly in declaration order.
//
// Cancellation is checked between steps and during delays, never while a
// command is in flight. Step failures are recorded and execution continues
// unless the step is marked critical.
func (e *Executor) runSequence(ctx context.Context, def *Definition, kind SequenceKind) (reports []StepReport, cancelled bool) {
	steps := def.StartupSequence
	if kind == SequenceShutdown {
		steps = def.ShutdownSequence
	}

	started := time.Now().UTC()
	runID := uuid.New().String()

	defer func() {
		e.finishRun(ctx, RunReport{
			RunID:      runID,
			ScenarioID: def.ID,
			RoomID:     def.RoomID,
			Sequence:   kind,
			Steps:      reports,
			Cancelled:  cancelled,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		})
	}()

	for i, step := range steps {
		// Cooperative cancellation at the step boundary.
		if ctx.Err() != nil {
			return reports, true
		}

		// A dispatched command always runs to completion; preemption only
		// takes effect at boundaries and delays. The dispatcher's per-call
		// timeout still bounds the dispatch.
		report := e.runStep(context.WithoutCancel(ctx), def, kind, i, step)
		reports = append(reports, report)
		e.recorder.RecordStep(def.RoomID, def.ID, kind, report)

		// Skipped steps continue immediately, no delay.
		if !report.Executed {
			continue
		}

		if step.Critical && !report.Success {
			e.logger.Warn("critical step failed, aborting sequence",
				"room", def.RoomID,
				"scenario", def.ID,
				"sequence", kind,
				"step", i,
			)
			return reports, false
		}

		// Delay is a suspension point: other rooms and devices keep going,
		// and cancellation cuts the wait short.
		if step.DelayAfterMs > 0 {
			timer := time.NewTimer(time.Duration(step.DelayAfterMs) * time.Millisecond)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return reports, true
			}
		}
	}

	return reports, false
}

// runStep evaluates, resolves and dispatches a single step.
// All failure modes are folded into the report; nothing here aborts.
func (e *Executor) runStep(ctx context.Context, def *Definition, kind SequenceKind, index int, step Step) StepReport {
	report := StepReport{
		StepIndex: index,
		DeviceID:  step.DeviceID,
		Command:   step.Command,
		Timestamp: time.Now().UTC(),
	}

	// Condition gate: reads the step's own device, absent state never
	// equals a defined literal.
	conditionResult := true
	if step.Condition != "" {
		cond, err := ParseCondition(step.Condition)
		if err != nil {
			// Definitions are validated at load; a parse failure here means
			// the definition was tampered with. Record and skip.
			report.Error = err.Error()
			return report
		}
		value, present := e.states.Get(step.DeviceID, cond.Attribute)
		conditionResult = cond.Evaluate(value, present)
	}
	report.ConditionResult = conditionResult

	if !conditionResult {
		return report
	}

	dev, err := e.devices.GetDevice(ctx, step.DeviceID)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	cmdDef, ok := dev.CommandByAction(step.Command)
	if !ok {
		report.Error = fmt.Sprintf("device %s has no command %q", step.DeviceID, step.Command)
		return report
	}

	resolved, err := command.Resolve(cmdDef, step.Params)
	if err != nil {
		// Parameter errors are surfaced in the report, never retried.
		report.Error = err.Error()
		return report
	}

	report.Executed = true

	result, err := e.dispatcher.Execute(ctx, step.DeviceID, step.Command, resolved, "scenario:"+def.ID)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Success = result.Success
	report.Error = result.Error
	return report
}

// finishRun persists and broadcasts a completed (or cancelled) run.
func (e *Executor) finishRun(ctx context.Context, report RunReport) {
	if e.reports != nil {
		// Persistence is diagnostics, not control flow: a failed save is
		// logged and the run result stands.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.reports.SaveRunReport(saveCtx, &report); err != nil {
			e.logger.Error("saving run report failed",
				"room", report.RoomID,
				"scenario", report.ScenarioID,
				"error", err,
			)
		}
	}
	e.events.RunCompleted(report)
}

// finishCancelled releases a preempted room. The preempting request owns
// the room's next phase; cancellation itself parks it at Idle.
func (e *Executor) finishCancelled(rt *roomRuntime, reports []StepReport) {
	rt.setLastReport(reports)
	e.setPhase(rt, PhaseIdle)
	e.logger.Debug("sequence cancelled", "room", rt.snapshot().RoomID, "steps_run", len(reports))
}

func (e *Executor) setPhase(rt *roomRuntime, phase Phase) {
	rt.setPhase(phase)
	e.events.RoomPhaseChanged(rt.snapshot())
}

// runtime returns the room's runtime, creating it on first touch.
func (e *Executor) runtime(roomID string) *roomRuntime {
	e.roomsMu.Lock()
	defer e.roomsMu.Unlock()

	rt, ok := e.rooms[roomID]
	if !ok {
		rt = &roomRuntime{state: RoomState{RoomID: roomID, Phase: PhaseIdle}}
		e.rooms[roomID] = rt
	}
	return rt
}

// ─── roomRuntime ───

// preempt cancels the room's in-flight sequence, if any, and stamps the
// caller as the room's newest control request. The returned generation is
// handed back to setCancel once the caller holds opMu.
func (rt *roomRuntime) preempt() uint64 {
	rt.cancelMu.Lock()
	defer rt.cancelMu.Unlock()
	rt.gen++
	if rt.cancel != nil {
		rt.cancel()
	}
	return rt.gen
}

// setCancel stores the caller's cancel func. A caller that is no longer the
// room's newest request (another preempt ran while it waited on opMu) starts
// cancelled, so the newest request always wins.
func (rt *roomRuntime) setCancel(cancel context.CancelFunc, gen uint64) {
	rt.cancelMu.Lock()
	rt.cancel = cancel
	stale := rt.gen != gen
	rt.cancelMu.Unlock()
	if stale {
		cancel()
	}
}

// clearCancel removes the stored cancel func and releases our context.
// Only the holder of opMu stores a cancel, so the one cleared here is ours.
func (rt *roomRuntime) clearCancel(own context.CancelFunc) {
	rt.cancelMu.Lock()
	rt.cancel = nil
	rt.cancelMu.Unlock()
	own()
}

func (rt *roomRuntime) snapshot() RoomState {
	rt.stateMu.RLock()
	defer rt.stateMu.RUnlock()

	cpy := rt.state
	if rt.state.LastReport != nil {
		cpy.LastReport = make([]StepReport, len(rt.state.LastReport))
		copy(cpy.LastReport, rt.state.LastReport)
	}
	return cpy
}

func (rt *roomRuntime) setPhase(phase Phase) {
	rt.stateMu.Lock()
	rt.state.Phase = phase
	rt.stateMu.Unlock()
}

func (rt *roomRuntime) setActive(scenarioID string) {
	rt.stateMu.Lock()
	rt.state.ActiveScenarioID = scenarioID
	rt.stateMu.Unlock()
}

func (rt *roomRuntime) setLastReport(reports []StepReport) {
	rt.stateMu.Lock()
	rt.state.LastReport = reports
	rt.stateMu.Unlock()
}
