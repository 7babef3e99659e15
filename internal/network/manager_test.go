package network

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"pumphouse/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// TestProbeSuccess dials a real local listener.
func TestProbeSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	m := NewManager(ManagerConfig{
		ProbeAddr: ln.Addr().String(),
		Logger:    discardLogger(),
	})
	if err := m.Probe(context.Background()); err != nil {
		t.Errorf("Probe: %v", err)
	}
}

// TestProbeRefused verifies that a dead port fails the probe.
func TestProbeRefused(t *testing.T) {
	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	m := NewManager(ManagerConfig{
		ProbeAddr:    addr,
		ProbeTimeout: 500 * time.Millisecond,
		Logger:       discardLogger(),
	})
	if err := m.Probe(context.Background()); err == nil {
		t.Error("Probe against closed port should fail")
	}
}

// TestEnsureConnectedFirstTry verifies no retries happen when the uplink is
// healthy, and that the liveness hook still fires.
func TestEnsureConnectedFirstTry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	fed := 0
	m := NewManager(ManagerConfig{
		ProbeAddr:  ln.Addr().String(),
		MaxRetries: 4,
		Liveness:   func() { fed++ },
		Logger:     discardLogger(),
	})
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if fed != 1 {
		t.Errorf("liveness calls = %d, want 1", fed)
	}
}

// TestEnsureConnectedExhaustsRetries verifies the retry budget and the wifi
// fault classification.
func TestEnsureConnectedExhaustsRetries(t *testing.T) {
	attempts := 0
	fed := 0
	m := NewManager(ManagerConfig{
		ProbeAddr:  "203.0.113.1:80",
		MaxRetries: 2,
		Liveness:   func() { fed++ },
		Logger:     discardLogger(),
	})
	m.dialFn = func(context.Context, string, string) (net.Conn, error) {
		attempts++
		return nil, errors.New("no route to host")
	}

	err := m.EnsureConnected(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if code := types.CodeOf(err); code != types.FaultWifi {
		t.Errorf("CodeOf(err) = %q, want %q", code, types.FaultWifi)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (first try + 2 retries)", attempts)
	}
	if fed != 3 {
		t.Errorf("liveness calls = %d, want 3", fed)
	}
}

// TestEnsureConnectedRecovers verifies that a mid-retry recovery returns
// success.
func TestEnsureConnectedRecovers(t *testing.T) {
	attempts := 0
	m := NewManager(ManagerConfig{
		ProbeAddr:  "203.0.113.1:80",
		MaxRetries: 4,
		Logger:     discardLogger(),
	})
	m.dialFn = func(context.Context, string, string) (net.Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no route to host")
		}
		client, server := net.Pipe()
		go func() { _, _ = server.Read(make([]byte, 1)) }()
		return client, nil
	}

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestEnsureConnectedCanceled verifies that a canceled context stops the
// retry loop early.
func TestEnsureConnectedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	m := NewManager(ManagerConfig{
		ProbeAddr:  "203.0.113.1:80",
		MaxRetries: 10,
		Logger:     discardLogger(),
	})
	m.dialFn = func(context.Context, string, string) (net.Conn, error) {
		attempts++
		return nil, errors.New("no route to host")
	}

	if err := m.EnsureConnected(ctx); err == nil {
		t.Fatal("expected error with canceled context")
	}
	if attempts > 2 {
		t.Errorf("attempts = %d, want early stop", attempts)
	}
}

// TestProbeAddrFromURL verifies host:port derivation from endpoint URLs.
func TestProbeAddrFromURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "https default port", raw: "https://collect.example.com/v1/readings", want: "collect.example.com:443"},
		{name: "http default port", raw: "http://collect.example.com/ingest", want: "collect.example.com:80"},
		{name: "explicit port", raw: "http://10.0.0.5:8086/write", want: "10.0.0.5:8086"},
		{name: "no host", raw: "/just/a/path", wantErr: true},
		{name: "unsupported scheme", raw: "ftp://collect.example.com/up", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProbeAddrFromURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ProbeAddrFromURL(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProbeAddrFromURL(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ProbeAddrFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
