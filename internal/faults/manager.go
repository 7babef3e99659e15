// Package faults tracks the controller's active fault episode and the
// consecutive upload-failure counter, and runs per-code recovery.
//
// At most one fault is active at a time; a newer report replaces an older
// one. An episode runs Raised -> Displayed -> cleared: the error banner is
// drawn once per episode, and the episode ends when recovery succeeds or
// the controller leaves the fault context.
package faults

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pumphouse/internal/types"
)

// Connectivity restores and verifies the network link during recovery.
type Connectivity interface {
	EnsureConnected(ctx context.Context) error
	Probe(ctx context.Context) error
}

// TimeSyncer re-runs clock synchronization during recovery.
type TimeSyncer interface {
	Sync() error
}

// ErrorScreen draws the fault banner.
type ErrorScreen interface {
	ShowError(code types.FaultCode)
}

type phase int

const (
	phaseRaised phase = iota
	phaseDisplayed
)

// episode is one active fault, from report until cleared.
type episode struct {
	code     types.FaultCode
	phase    phase
	raisedAt time.Time
}

// Snapshot is a point-in-time view of the fault state for the status
// surface.
type Snapshot struct {
	Active       types.FaultCode `json:"active"`
	Displayed    bool            `json:"displayed"`
	RaisedAt     *time.Time      `json:"raised_at,omitempty"`
	SendFailures int             `json:"send_failures"`
}

// Manager owns the active fault episode and the transmission failure
// counter. The control loop mutates it while the status server reads
// snapshots, so all state sits behind a mutex.
type Manager struct {
	net         Connectivity
	timeSync    TimeSyncer
	screen      ErrorScreen
	clock       types.Clock
	maxFailures int
	logger      *slog.Logger

	mu       sync.Mutex
	episode  *episode
	failures int
}

// ManagerConfig carries the recovery collaborators. Net, TimeSync and
// Screen must be wired.
type ManagerConfig struct {
	Net      Connectivity
	TimeSync TimeSyncer
	Screen   ErrorScreen
	Clock    types.Clock

	// MaxFailures is the consecutive upload-failure count that forces
	// escalation. Defaults to 3.
	MaxFailures int

	Logger *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	return &Manager{
		net:         cfg.Net,
		timeSync:    cfg.TimeSync,
		screen:      cfg.Screen,
		clock:       clock,
		maxFailures: maxFailures,
		logger:      logger,
	}
}

// Report records a fault. Reporting the code already active keeps the
// existing episode, so the banner stays drawn-once; a different code
// replaces the episode.
func (m *Manager) Report(code types.FaultCode) {
	if code == types.FaultNone {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.episode != nil && m.episode.code == code {
		return
	}
	m.episode = &episode{code: code, phase: phaseRaised, raisedAt: m.clock.Now()}
	m.logger.Warn("fault raised", "code", code)
}

// ActiveCode returns the code of the active episode, or FaultNone.
func (m *Manager) ActiveCode() types.FaultCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.episode == nil {
		return types.FaultNone
	}
	return m.episode.code
}

// DisplayOnce draws the banner for code if it belongs to the active episode
// and has not been drawn yet. Further calls within the same episode are
// no-ops.
func (m *Manager) DisplayOnce(code types.FaultCode) bool {
	m.mu.Lock()
	if m.episode == nil || m.episode.code != code || m.episode.phase != phaseRaised {
		m.mu.Unlock()
		return false
	}
	m.episode.phase = phaseDisplayed
	m.mu.Unlock()

	m.screen.ShowError(code)
	return true
}

// ClearEpisode ends the active episode, if any. The controller calls this
// when it leaves the fault context: a valid sensor cycle, a successful
// upload, or an escalation that opens a fresh episode.
func (m *Manager) ClearEpisode() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.episode != nil {
		m.logger.Info("fault cleared", "code", m.episode.code)
		m.episode = nil
	}
}

// Recover runs the recovery strategy for code and reports whether the
// fault is resolved. Connectivity faults re-establish the link, a server
// fault additionally probes the endpoint, and a time fault re-runs clock
// sync. Sensor and pump faults have no dedicated action; re-attempting the
// next full sensor cycle is the retry, so they always resolve. Resolution
// clears the active episode.
func (m *Manager) Recover(ctx context.Context, code types.FaultCode) bool {
	var err error
	switch {
	case code == types.FaultWifi:
		err = m.net.EnsureConnected(ctx)
	case code == types.FaultServer:
		if err = m.net.EnsureConnected(ctx); err == nil {
			err = m.net.Probe(ctx)
		}
	case code == types.FaultTime:
		err = m.timeSync.Sync()
	case code.IsSensor() || code == types.FaultPump:
		// The next sensing cycle re-attempts the hardware itself.
	}

	if err != nil {
		m.logger.WarnContext(ctx, "fault recovery failed", "code", code, "error", err)
		return false
	}

	m.ClearEpisode()
	return true
}

// SendFailed records one failed upload and reports whether the consecutive
// failure count reached the escalation threshold. The counter restarts on
// escalation so the next escalation needs a fresh run of failures.
func (m *Manager) SendFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	if m.failures >= m.maxFailures {
		m.logger.Warn("consecutive upload failures reached threshold",
			"failures", m.failures,
			"threshold", m.maxFailures,
		)
		m.failures = 0
		return true
	}
	return false
}

// SendSucceeded resets the consecutive failure counter.
func (m *Manager) SendSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = 0
}

// Failures returns the current consecutive upload-failure count.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// CurrentSnapshot returns the fault state for the status surface.
func (m *Manager) CurrentSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Active: types.FaultNone, SendFailures: m.failures}
	if m.episode != nil {
		snap.Active = m.episode.code
		snap.Displayed = m.episode.phase == phaseDisplayed
		raisedAt := m.episode.raisedAt
		snap.RaisedAt = &raisedAt
	}
	return snap
}
