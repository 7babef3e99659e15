package watchdog

import (
	"errors"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// ErrNotSupervised is returned by NewSystemd when the process is not running
// under a systemd unit with WatchdogSec set.
var ErrNotSupervised = errors.New("watchdog: not supervised by systemd")

// Systemd feeds the systemd watchdog via sd_notify keepalives. The unit must
// set WatchdogSec; systemd then exports WATCHDOG_USEC to the process.
type Systemd struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewSystemd probes for systemd watchdog supervision. It fails with
// ErrNotSupervised when WATCHDOG_USEC is absent or addressed to another
// process.
func NewSystemd(logger *slog.Logger) (*Systemd, error) {
	if logger == nil {
		logger = slog.Default()
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		return nil, ErrNotSupervised
	}
	return &Systemd{interval: interval, logger: logger}, nil
}

func (s *Systemd) Feed() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		s.logger.Error("watchdog: sd_notify failed", "error", err)
	}
}

func (s *Systemd) Timeout() time.Duration {
	return s.interval
}

func (s *Systemd) Close() error {
	return nil
}
