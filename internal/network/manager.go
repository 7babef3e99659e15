// Package network watches the controller's uplink. The board has exactly one
// network dependency (the collector endpoint), so connectivity is defined as
// "a TCP dial to the collector's host completes".
package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pumphouse/internal/types"
)

// dialFunc matches net.Dialer.DialContext and allows injection for testing.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Manager probes and re-establishes the uplink.
type Manager struct {
	probeAddr    string
	probeTimeout time.Duration
	maxRetries   int
	dialFn       dialFunc
	liveness     func()
	logger       *slog.Logger
}

// ManagerConfig holds the configuration for creating a Manager.
type ManagerConfig struct {
	// ProbeAddr is the host:port dialed to test connectivity.
	ProbeAddr string
	// ProbeTimeout bounds each dial attempt.
	ProbeTimeout time.Duration
	// MaxRetries bounds reconnect attempts beyond the first.
	MaxRetries int
	// Liveness is invoked before every attempt so the watchdog stays fed
	// through a slow reconnect. Optional.
	Liveness func()
	// Logger for retry events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	liveness := cfg.Liveness
	if liveness == nil {
		liveness = func() {}
	}
	return &Manager{
		probeAddr:    cfg.ProbeAddr,
		probeTimeout: timeout,
		maxRetries:   cfg.MaxRetries,
		dialFn:       (&net.Dialer{}).DialContext,
		liveness:     liveness,
		logger:       logger,
	}
}

// Probe performs a single connectivity check: one TCP dial, bounded by the
// probe timeout.
func (m *Manager) Probe(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	conn, err := m.dialFn(dctx, "tcp", m.probeAddr)
	if err != nil {
		return fmt.Errorf("probe %s: %w", m.probeAddr, err)
	}
	return conn.Close()
}

// EnsureConnected probes the uplink, retrying with exponential backoff up to
// the configured retry budget. It returns a wifi fault when the budget is
// exhausted.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	attempt := 0
	op := func() error {
		m.liveness()
		attempt++
		err := m.Probe(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "connectivity probe failed",
				"attempt", attempt,
				"addr", m.probeAddr,
				"error", err,
			)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	retrier := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(m.maxRetries)), ctx)
	if err := backoff.Retry(op, retrier); err != nil {
		return types.NewAppError(types.FaultWifi, "network unreachable", err)
	}
	return nil
}

// ProbeAddrFromURL derives the host:port to probe from the collector
// endpoint URL, defaulting the port by scheme.
func ProbeAddrFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("endpoint url %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("endpoint url %q has unsupported scheme %q", raw, u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}
