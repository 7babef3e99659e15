package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumphouse/internal/controller"
	"pumphouse/internal/faults"
	"pumphouse/internal/types"
)

// Compile-time check that the collector satisfies the controller's
// metrics interface.
var _ controller.Metrics = (*Collector)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
}

type fakeLoop struct {
	snap controller.LoopSnapshot
}

func (f fakeLoop) Snapshot() controller.LoopSnapshot { return f.snap }

type fakeFaults struct {
	snap faults.Snapshot
}

func (f fakeFaults) CurrentSnapshot() faults.Snapshot { return f.snap }

func newTestServer(registry *prometheus.Registry, probes ...HealthProbe) *Server {
	return NewServer(ServerConfig{
		Service: "pumphouse",
		Session: "boot-session-1",
		Addr:    ":0",
		Loop: fakeLoop{snap: controller.LoopSnapshot{
			State:       types.StateDisplayData,
			Reading:     types.Reading{Soil: 512, Rain: 990, Valid: true},
			ClockSynced: true,
		}},
		Faults:   fakeFaults{snap: faults.Snapshot{Active: types.FaultNone}},
		Probes:   probes,
		Registry: registry,
		Logger:   discardLogger(),
	})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// ============================================================
// Health Endpoint
// ============================================================

func TestHealthNoProbes(t *testing.T) {
	s := newTestServer(nil)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthAllHealthy(t *testing.T) {
	s := newTestServer(nil,
		ProbeFunc{ProbeName: "network", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "clock", Fn: func(ctx context.Context) error { return nil }},
	)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["network"].Status)
	assert.Equal(t, "healthy", resp.Components["clock"].Status)
}

func TestHealthFailingProbe(t *testing.T) {
	s := newTestServer(nil,
		ProbeFunc{ProbeName: "network", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "clock", Fn: func(ctx context.Context) error {
			return errors.New("clock never synced")
		}},
	)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["network"].Status)
	assert.Equal(t, "unhealthy", resp.Components["clock"].Status)
	assert.Equal(t, "clock never synced", resp.Components["clock"].Message)
}

func TestHealthTimedOutProbe(t *testing.T) {
	s := newTestServer(nil,
		ProbeFunc{ProbeName: "stuck", Fn: func(ctx context.Context) error {
			time.Sleep(300 * time.Millisecond)
			return nil
		}},
	)
	s.healthTimeout = 50 * time.Millisecond

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "health check timed out", resp.Components["stuck"].Message)
}

func TestHealthPanickingProbe(t *testing.T) {
	s := newTestServer(nil,
		ProbeFunc{ProbeName: "flaky", Fn: func(ctx context.Context) error {
			panic("sensor bus gone")
		}},
	)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Components["flaky"].Message, "panicked")
}

// ============================================================
// Status and Metrics Endpoints
// ============================================================

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(nil)

	rec := get(t, s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pumphouse", resp["service"])
	assert.Equal(t, "boot-session-1", resp["session"])

	loop, ok := resp["loop"].(map[string]any)
	require.True(t, ok, "expected loop object")
	assert.Equal(t, "display_data", loop["state"])
	assert.Equal(t, true, loop["clock_synced"])

	reading, ok := loop["reading"].(map[string]any)
	require.True(t, ok, "expected reading object")
	assert.InDelta(t, 512, reading["soil"], 0.0001)

	fault, ok := resp["fault"].(map[string]any)
	require.True(t, ok, "expected fault object")
	assert.Equal(t, "none", fault["active"])
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)
	c.ObserveIteration(types.StateReadSensors)
	c.ObserveIteration(types.StateReadSensors)
	c.ObserveTransition(types.StateInit, types.StateReadSensors)
	c.ObserveSensorCycle(true)
	c.ObserveFault(types.FaultDht)
	c.ObserveUpload(types.SendSuccess)
	c.AddWateringSeconds(12.5)
	c.ObserveWatchdogFeed()

	s := newTestServer(registry)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`pumphouse_loop_iterations_total{state="read_sensors"} 2`,
		`pumphouse_state_transitions_total{from="init",to="read_sensors"} 1`,
		`pumphouse_sensor_cycles_total{valid="true"} 1`,
		`pumphouse_faults_total{code="dht"} 1`,
		`pumphouse_uploads_total{outcome="success"} 1`,
		`pumphouse_watering_seconds_total 12.5`,
		`pumphouse_watchdog_feeds_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
