// Package watchdog abstracts the hardware watchdog feed so the control loop
// can service it without caring how the board is supervised.
//
// Three feeders exist: systemd (sd_notify keepalives when the unit runs with
// WatchdogSec), device (direct writes to /dev/watchdog), and a no-op for
// development machines without supervision. Detect picks one at startup.
package watchdog

import (
	"fmt"
	"log/slog"
	"time"
)

// Feeder services a hardware watchdog. Feed must be cheap and safe to call
// from the control loop on every iteration; implementations log their own
// failures rather than returning them, since a failed feed has exactly one
// consequence either way.
type Feeder interface {
	// Feed signals liveness to the supervisor.
	Feed()
	// Timeout reports the supervision window, zero when unknown.
	Timeout() time.Duration
	// Close releases the feeder. Device feeders disarm on close so a clean
	// shutdown does not reboot the board.
	Close() error
}

// Config selects and tunes the feeder.
type Config struct {
	// Mode is one of "auto", "systemd", "device", "none".
	Mode string
	// DevicePath is the watchdog character device for device mode.
	DevicePath string
	// Timeout is the expected supervision window, used when the platform
	// does not report one.
	Timeout time.Duration
}

// Noop is a feeder that does nothing. It keeps the control loop identical on
// boards without watchdog supervision.
type Noop struct{}

func (Noop) Feed()                  {}
func (Noop) Timeout() time.Duration { return 0 }
func (Noop) Close() error           { return nil }

// Detect selects a feeder for the current platform.
//
// Explicit modes fail hard when their platform support is missing. Auto mode
// prefers systemd supervision, falls back to the watchdog device, and
// finally to a no-op so development machines run unsupervised.
func Detect(cfg Config, logger *slog.Logger) (Feeder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Mode {
	case "none":
		return Noop{}, nil
	case "systemd":
		return NewSystemd(logger)
	case "device":
		return NewDevice(cfg.DevicePath, cfg.Timeout, logger)
	case "auto", "":
		if f, err := NewSystemd(logger); err == nil {
			logger.Info("watchdog: using systemd supervision", "timeout", f.Timeout())
			return f, nil
		}
		if f, err := NewDevice(cfg.DevicePath, cfg.Timeout, logger); err == nil {
			logger.Info("watchdog: using device", "path", cfg.DevicePath, "timeout", cfg.Timeout)
			return f, nil
		}
		logger.Warn("watchdog: no supervision available, feeds are no-ops")
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown watchdog mode %q", cfg.Mode)
	}
}
