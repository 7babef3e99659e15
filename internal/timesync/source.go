// Package timesync keeps the controller's notion of wall-clock time honest
// on a board without a battery-backed RTC.
//
// Rather than stepping the system clock (which needs privileges and upsets
// the kernel's timers), Source tracks the NTP offset and applies it on read.
// Until the first successful sync, Now returns the uncorrected system clock
// so the controller keeps running with whatever time the board booted with.
package timesync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"pumphouse/internal/types"
)

// TimestampLayout is the wall-clock format used on the wire and on the
// display. Collectors parse this exact layout.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in the wire layout, always in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// queryFunc matches ntp.QueryWithOptions and allows injection for testing.
type queryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// Source provides NTP-corrected time. It is safe for concurrent use.
type Source struct {
	server  string
	timeout time.Duration
	queryFn queryFunc
	logger  *slog.Logger

	mu       sync.Mutex
	offset   time.Duration
	synced   bool
	lastSync time.Time
}

// SourceConfig holds the configuration for creating a Source.
type SourceConfig struct {
	// Server is the NTP host to query.
	Server string
	// Timeout bounds each query.
	Timeout time.Duration
	// Logger for sync lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewSource creates a Source with the given configuration.
func NewSource(cfg SourceConfig) *Source {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := cfg.Server
	if server == "" {
		server = "pool.ntp.org"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Source{
		server:  server,
		timeout: timeout,
		queryFn: ntp.QueryWithOptions,
		logger:  logger,
	}
}

// Sync queries the NTP server and records the clock offset. The query is
// bounded by the configured timeout; a failure leaves any previous offset in
// place.
func (s *Source) Sync() error {
	resp, err := s.queryFn(s.server, ntp.QueryOptions{Timeout: s.timeout})
	if err != nil {
		return types.NewAppError(types.FaultTime, "ntp query failed", err)
	}
	if err := resp.Validate(); err != nil {
		return types.NewAppError(types.FaultTime, "ntp response rejected", err)
	}

	s.mu.Lock()
	s.offset = resp.ClockOffset
	s.synced = true
	s.lastSync = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("time synchronized",
		"server", s.server,
		"offset", resp.ClockOffset,
		"stratum", resp.Stratum,
	)
	return nil
}

// Now returns the NTP-corrected UTC time, or the raw system clock before the
// first successful sync.
func (s *Source) Now() time.Time {
	s.mu.Lock()
	offset, synced := s.offset, s.synced
	s.mu.Unlock()

	now := time.Now().UTC()
	if synced {
		now = now.Add(offset)
	}
	return now
}

// Synced reports whether at least one sync has succeeded.
func (s *Source) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// LastSync returns the time of the last successful sync, zero if none.
func (s *Source) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}
