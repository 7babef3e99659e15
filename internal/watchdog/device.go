package watchdog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Device feeds a Linux watchdog character device. Opening the device arms
// the timer; Close performs the magic close ('V' then close) so the kernel
// disarms it instead of rebooting after a clean shutdown.
type Device struct {
	mu      sync.Mutex
	f       *os.File
	timeout time.Duration
	logger  *slog.Logger
	closed  bool
}

// NewDevice opens the watchdog device at path. The timeout is recorded for
// reporting only; the kernel's configured window applies.
func NewDevice(path string, timeout time.Duration, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog device %s: %w", path, err)
	}
	return &Device{f: f, timeout: timeout, logger: logger}, nil
}

// Feed writes a keepalive byte. Any write resets the kernel timer.
func (d *Device) Feed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if _, err := d.f.Write([]byte{'1'}); err != nil {
		d.logger.Error("watchdog: keepalive write failed", "error", err)
	}
}

func (d *Device) Timeout() time.Duration {
	return d.timeout
}

// Close disarms the watchdog with the magic close sequence then releases the
// device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if _, err := d.f.Write([]byte{'V'}); err != nil {
		d.logger.Error("watchdog: magic close write failed", "error", err)
	}
	return d.f.Close()
}
