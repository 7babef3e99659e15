// Package controller implements the irrigation control loop: a finite
// state machine that sequences sensing, the watering decision, the local
// display, and telemetry, services the hardware watchdog every iteration,
// and routes failures through the fault manager.
//
// The loop is one goroutine. Every blocking wait goes through pause, which
// sleeps in short slices and feeds the watchdog between them, and the
// watering engine feeds through its liveness callback, so no code path can
// starve the watchdog regardless of how long a state lingers. Periodic
// clock resync is checked every iteration, orthogonal to the active state.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pumphouse/internal/types"
)

// asyncPollPause is the display-refresh interval while an upload is in
// flight: AsyncSending re-renders and waits this long between polls.
const asyncPollPause = time.Second

// SensorGateway produces one sensing-cycle snapshot.
type SensorGateway interface {
	Sample(ctx context.Context) types.Reading
}

// IrrigationEngine evaluates and runs the watering policy for a reading.
type IrrigationEngine interface {
	ShouldWater(r types.Reading) bool
	DecideAndActuate(ctx context.Context, r types.Reading) error
}

// Renderer draws the rotating status pages.
type Renderer interface {
	Render(r types.Reading, state types.State)
}

// Uploader is the two-phase telemetry transfer: BeginSend launches,
// Poll inspects, Abort cancels on shutdown.
type Uploader interface {
	BeginSend(ctx context.Context, r types.Reading) error
	Poll(now time.Time) types.SendOutcome
	Abort()
}

// FaultManager tracks the active fault episode and the consecutive
// upload-failure counter.
type FaultManager interface {
	Report(code types.FaultCode)
	ActiveCode() types.FaultCode
	DisplayOnce(code types.FaultCode) bool
	ClearEpisode()
	Recover(ctx context.Context, code types.FaultCode) bool
	SendFailed() bool
	SendSucceeded()
}

// TimeKeeper is the NTP-backed clock surface the loop resyncs
// periodically.
type TimeKeeper interface {
	Sync() error
	Synced() bool
	LastSync() time.Time
}

// Feeder services the hardware watchdog.
type Feeder interface {
	Feed()
}

// Metrics receives loop instrumentation. internal/status provides the
// Prometheus implementation; a no-op stands in when none is wired.
type Metrics interface {
	ObserveIteration(state types.State)
	ObserveTransition(from, to types.State)
	ObserveSensorCycle(valid bool)
	ObserveFault(code types.FaultCode)
	ObserveUpload(outcome types.SendOutcome)
	AddWateringSeconds(seconds float64)
	ObserveWatchdogFeed()
}

type nopMetrics struct{}

func (nopMetrics) ObserveIteration(types.State)               {}
func (nopMetrics) ObserveTransition(types.State, types.State) {}
func (nopMetrics) ObserveSensorCycle(bool)                    {}
func (nopMetrics) ObserveFault(types.FaultCode)               {}
func (nopMetrics) ObserveUpload(types.SendOutcome)            {}
func (nopMetrics) AddWateringSeconds(float64)                 {}
func (nopMetrics) ObserveWatchdogFeed()                       {}

// LoopSnapshot is the controller view served by the status endpoint.
type LoopSnapshot struct {
	State       types.State   `json:"state"`
	Reading     types.Reading `json:"reading"`
	LastSend    time.Time     `json:"last_send"`
	ClockSynced bool          `json:"clock_synced"`
	LastSync    time.Time     `json:"last_sync"`
	Iterations  uint64        `json:"iterations"`
}

// Machine owns the controller state and drives one state transition per
// loop iteration. All collaborator calls happen on the loop goroutine;
// the snapshot fields are mutex-guarded for the status server.
type Machine struct {
	sensors  SensorGateway
	engine   IrrigationEngine
	renderer Renderer
	uploader Uploader
	faults   FaultManager
	keeper   TimeKeeper
	dog      Feeder
	clock    types.Clock
	metrics  Metrics
	logger   *slog.Logger

	sendInterval   time.Duration
	pace           time.Duration
	errorBackoff   time.Duration
	resyncInterval time.Duration

	sleepFn func(time.Duration)

	// loop-goroutine only
	lastResync time.Time

	mu         sync.RWMutex
	state      types.State
	reading    types.Reading
	lastSend   time.Time
	iterations uint64
}

// MachineConfig wires the machine's collaborators. All collaborators are
// required; Clock, Metrics and Logger default when nil.
type MachineConfig struct {
	Sensors  SensorGateway
	Engine   IrrigationEngine
	Renderer Renderer
	Uploader Uploader
	Faults   FaultManager
	Keeper   TimeKeeper
	Watchdog Feeder
	Clock    types.Clock
	Metrics  Metrics

	// SendInterval is the wall-clock gap between successful uploads.
	// Defaults to 10 minutes.
	SendInterval time.Duration
	// Pace is the idle delay at the end of a display cycle. Defaults to 5s.
	Pace time.Duration
	// ErrorBackoff is the wait between recovery attempts in the Error
	// state. Defaults to 30s.
	ErrorBackoff time.Duration
	// ResyncInterval is the periodic clock resync cadence. Defaults to 6h.
	ResyncInterval time.Duration

	Logger *slog.Logger
}

// NewMachine creates the controller in the Init state.
func NewMachine(cfg MachineConfig) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	sendInterval := cfg.SendInterval
	if sendInterval <= 0 {
		sendInterval = 10 * time.Minute
	}
	pace := cfg.Pace
	if pace <= 0 {
		pace = 5 * time.Second
	}
	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = 30 * time.Second
	}
	resyncInterval := cfg.ResyncInterval
	if resyncInterval <= 0 {
		resyncInterval = 6 * time.Hour
	}

	return &Machine{
		sensors:        cfg.Sensors,
		engine:         cfg.Engine,
		renderer:       cfg.Renderer,
		uploader:       cfg.Uploader,
		faults:         cfg.Faults,
		keeper:         cfg.Keeper,
		dog:            cfg.Watchdog,
		clock:          clock,
		metrics:        metrics,
		logger:         logger,
		sendInterval:   sendInterval,
		pace:           pace,
		errorBackoff:   errorBackoff,
		resyncInterval: resyncInterval,
		sleepFn:        time.Sleep,
		state:          types.StateInit,
	}
}

// Run drives the loop until ctx is done. Each iteration feeds the
// watchdog, checks the resync schedule, and executes one state handler.
func (m *Machine) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "control loop starting", "state", m.State())

	for {
		if ctx.Err() != nil {
			m.uploader.Abort()
			m.logger.InfoContext(ctx, "control loop stopped", "state", m.State())
			return ctx.Err()
		}

		m.feed()
		m.maybeResync(ctx)
		m.Step(ctx)
	}
}

// Step executes the handler for the current state and applies the
// transition it returns. An unrecognized state resets to ReadSensors
// without being counted, so corrupted values never become metric labels.
func (m *Machine) Step(ctx context.Context) {
	from := m.State()
	if !from.Known() {
		m.logger.Warn("unknown machine state, resetting", "state", from)
		m.setState(from, types.StateReadSensors)
		return
	}
	m.metrics.ObserveIteration(from)

	var next types.State
	switch from {
	case types.StateInit:
		next = m.handleInit(ctx)
	case types.StateReadSensors:
		next = m.handleReadSensors(ctx)
	case types.StateEvaluateWatering:
		next = m.handleEvaluateWatering()
	case types.StateWatering:
		next = m.handleWatering(ctx)
	case types.StateDisplayData:
		next = m.handleDisplayData(ctx)
	case types.StateSendData:
		next = m.handleSendData(ctx)
	case types.StateAsyncSending:
		next = m.handleAsyncSending(ctx)
	case types.StateError:
		next = m.handleError(ctx)
	}

	m.setState(from, next)
}

// State returns the current machine state.
func (m *Machine) State() types.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the loop view for the status endpoint.
func (m *Machine) Snapshot() LoopSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LoopSnapshot{
		State:       m.state,
		Reading:     m.reading,
		LastSend:    m.lastSend,
		ClockSynced: m.keeper.Synced(),
		LastSync:    m.keeper.LastSync(),
		Iterations:  m.iterations,
	}
}

// ============================================================
// State handlers
// ============================================================

func (m *Machine) handleInit(ctx context.Context) types.State {
	m.logger.InfoContext(ctx, "controller initialized",
		"send_interval", m.sendInterval,
		"resync_interval", m.resyncInterval,
		"clock_synced", m.keeper.Synced(),
	)
	return types.StateReadSensors
}

func (m *Machine) handleReadSensors(ctx context.Context) types.State {
	r := m.sensors.Sample(ctx)
	m.setReading(r)
	m.metrics.ObserveSensorCycle(r.Valid)

	if !r.Valid {
		m.logger.WarnContext(ctx, "sensor cycle invalid", "fault", m.faults.ActiveCode())
		return types.StateDisplayData
	}

	// A clean cycle ends any lingering fault episode.
	m.faults.ClearEpisode()
	return types.StateEvaluateWatering
}

func (m *Machine) handleEvaluateWatering() types.State {
	if m.engine.ShouldWater(m.currentReading()) {
		return types.StateWatering
	}
	return types.StateDisplayData
}

func (m *Machine) handleWatering(ctx context.Context) types.State {
	started := m.clock.Now()
	err := m.engine.DecideAndActuate(ctx, m.currentReading())
	m.metrics.AddWateringSeconds(m.clock.Now().Sub(started).Seconds())

	if err != nil {
		// Shutdown mid-loop is not a pump fault; the engine has already
		// forced the pump off and the loop exits on the next iteration.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return types.StateDisplayData
		}
		code := types.CodeOf(err)
		if code == types.FaultNone {
			code = types.FaultPump
		}
		m.logger.ErrorContext(ctx, "watering failed", "code", code, "error", err)
		return m.escalate(code)
	}
	return types.StateDisplayData
}

func (m *Machine) handleDisplayData(ctx context.Context) types.State {
	// Draw the banner for a fresh episode before the regular pages, and
	// hold it for one pacing interval so it is actually readable.
	if code := m.faults.ActiveCode(); code != types.FaultNone && m.faults.DisplayOnce(code) {
		m.pause(ctx, m.pace)
	}

	m.renderer.Render(m.currentReading(), types.StateDisplayData)

	if m.clock.Now().Sub(m.lastSendAt()) >= m.sendInterval {
		return types.StateSendData
	}
	m.pause(ctx, m.pace)
	return types.StateReadSensors
}

func (m *Machine) handleSendData(ctx context.Context) types.State {
	if err := m.uploader.BeginSend(ctx, m.currentReading()); err != nil {
		// A refused launch is a wifi fault (connectivity gate) or a server
		// fault (anything past it).
		code := types.CodeOf(err)
		if !code.IsConnectivity() {
			code = types.FaultServer
		}
		m.logger.WarnContext(ctx, "upload not started", "code", code, "error", err)
		if m.faults.SendFailed() {
			return m.escalate(code)
		}
		m.faults.Report(code)
		m.metrics.ObserveFault(code)
		return types.StateDisplayData
	}
	return types.StateAsyncSending
}

func (m *Machine) handleAsyncSending(ctx context.Context) types.State {
	switch out := m.uploader.Poll(m.clock.Now()); out {
	case types.SendPending:
		// Keep the display live through a multi-second upload.
		m.renderer.Render(m.currentReading(), types.StateAsyncSending)
		m.pause(ctx, asyncPollPause)
		return types.StateAsyncSending

	case types.SendSuccess:
		m.metrics.ObserveUpload(out)
		m.faults.SendSucceeded()
		m.faults.ClearEpisode()
		m.setLastSend(m.clock.Now())
		m.logger.InfoContext(ctx, "upload delivered")
		return types.StateDisplayData

	default: // SendFailed, SendTimedOut
		m.metrics.ObserveUpload(out)
		m.logger.WarnContext(ctx, "upload failed", "outcome", out)
		if m.faults.SendFailed() {
			return m.escalate(types.FaultServer)
		}
		m.faults.Report(types.FaultServer)
		m.metrics.ObserveFault(types.FaultServer)
		return types.StateDisplayData
	}
}

func (m *Machine) handleError(ctx context.Context) types.State {
	code := m.faults.ActiveCode()
	if code == types.FaultNone {
		return types.StateReadSensors
	}

	m.faults.DisplayOnce(code)
	if m.faults.Recover(ctx, code) {
		m.logger.InfoContext(ctx, "fault recovered", "code", code)
		return types.StateReadSensors
	}

	m.pause(ctx, m.errorBackoff)
	return types.StateError
}

// ============================================================
// Loop plumbing
// ============================================================

// escalate opens a fresh episode for code and enters the Error state. The
// re-raise makes the banner redraw there even if a soft episode of the
// same code was already shown.
func (m *Machine) escalate(code types.FaultCode) types.State {
	m.faults.ClearEpisode()
	m.faults.Report(code)
	m.metrics.ObserveFault(code)
	return types.StateError
}

func (m *Machine) feed() {
	m.dog.Feed()
	m.metrics.ObserveWatchdogFeed()
}

// maybeResync re-runs clock sync once the resync interval has elapsed.
// The very first iteration performs the boot-time sync. Failures report a
// time fault and wait out the next full interval.
func (m *Machine) maybeResync(ctx context.Context) {
	now := m.clock.Now()
	if !m.lastResync.IsZero() && now.Sub(m.lastResync) < m.resyncInterval {
		return
	}
	m.lastResync = now

	if err := m.keeper.Sync(); err != nil {
		m.logger.WarnContext(ctx, "clock sync failed", "error", err)
		m.faults.Report(types.FaultTime)
		m.metrics.ObserveFault(types.FaultTime)
		return
	}
	m.logger.InfoContext(ctx, "clock synced", "last_sync", m.keeper.LastSync())
}

// pause sleeps for d in slices of at most one second, feeding the
// watchdog between slices so a long wait can never starve it. Returns
// early when ctx is done.
func (m *Machine) pause(ctx context.Context, d time.Duration) {
	const slice = time.Second
	for remaining := d; remaining > 0; remaining -= slice {
		if ctx.Err() != nil {
			return
		}
		step := remaining
		if step > slice {
			step = slice
		}
		m.sleepFn(step)
		m.feed()
	}
}

func (m *Machine) setState(from, to types.State) {
	if from != to {
		m.metrics.ObserveTransition(from, to)
		m.logger.Debug("state transition", "from", from, "to", to)
	}
	m.mu.Lock()
	m.state = to
	m.iterations++
	m.mu.Unlock()
}

func (m *Machine) setReading(r types.Reading) {
	m.mu.Lock()
	m.reading = r
	m.mu.Unlock()
}

func (m *Machine) currentReading() types.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reading
}

func (m *Machine) setLastSend(t time.Time) {
	m.mu.Lock()
	m.lastSend = t
	m.mu.Unlock()
}

func (m *Machine) lastSendAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSend
}
