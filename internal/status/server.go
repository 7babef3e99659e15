// Package status serves the controller's read-only local HTTP surface:
// liveness probes, the current loop snapshot, and Prometheus metrics.
// Nothing here mutates controller state; the device stays configured only
// through its environment.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pumphouse/internal/controller"
	"pumphouse/internal/faults"
	"pumphouse/internal/types"
)

// healthCheckTimeout bounds one /healthz pass; probes still running when
// it expires are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is one subsystem check run by /healthz.
type HealthProbe interface {
	// Name identifies the probe in the response, e.g. "network" or "clock".
	Name() string
	// Check must respect the context deadline and return an error when the
	// subsystem is unhealthy.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function into a HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// SnapshotSource supplies the controller view for /status.
type SnapshotSource interface {
	Snapshot() controller.LoopSnapshot
}

// FaultSource supplies the fault view for /status.
type FaultSource interface {
	CurrentSnapshot() faults.Snapshot
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type statusResponse struct {
	Service string                  `json:"service"`
	Session string                  `json:"session"`
	Uptime  string                  `json:"uptime"`
	Loop    controller.LoopSnapshot `json:"loop"`
	Fault   faults.Snapshot         `json:"fault"`
}

// Server is the local status HTTP server.
type Server struct {
	service       string
	session       string
	addr          string
	loop          SnapshotSource
	faults        FaultSource
	probes        []HealthProbe
	registry      *prometheus.Registry
	clock         types.Clock
	startedAt     time.Time
	healthTimeout time.Duration
	logger        *slog.Logger

	router *chi.Mux
}

// ServerConfig wires the status server. Loop and Faults must be wired;
// Registry defaults to a fresh one when nil.
type ServerConfig struct {
	Service  string
	Session  string
	Addr     string
	Loop     SnapshotSource
	Faults   FaultSource
	Probes   []HealthProbe
	Registry *prometheus.Registry
	Clock    types.Clock
	Logger   *slog.Logger
}

// NewServer builds the router and prepares the server for Run.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		service:       cfg.Service,
		session:       cfg.Session,
		addr:          cfg.Addr,
		loop:          cfg.Loop,
		faults:        cfg.Faults,
		probes:        cfg.Probes,
		registry:      registry,
		clock:         clock,
		startedAt:     clock.Now(),
		healthTimeout: healthCheckTimeout,
		logger:        logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

// Handler returns the router, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.InfoContext(ctx, "status server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	}
}

// handleHealth runs all probes concurrently under one deadline. Probes
// that fail or outlive the deadline flip the overall status to unhealthy
// and a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.healthTimeout)
	defer cancel()

	if len(s.probes) == 0 {
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(s.probes))
		wg      sync.WaitGroup
	)
	for _, probe := range s.probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("probe panicked: %v", rec)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results[p.Name()] = err
			mu.Unlock()
		}(probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// Report whatever finished; the rest is marked timed out below.
	}

	mu.Lock()
	defer mu.Unlock()

	components := make(map[string]componentStatus, len(s.probes))
	healthy := true
	for _, probe := range s.probes {
		name := probe.Name()
		err, finished := results[name]
		switch {
		case !finished:
			healthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case err != nil:
			healthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: err.Error()}
		default:
			components[name] = componentStatus{Status: "healthy"}
		}
	}

	resp := healthResponse{Status: "healthy", Components: components}
	code := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Service: s.service,
		Session: s.session,
		Uptime:  s.clock.Now().Sub(s.startedAt).Round(time.Second).String(),
		Loop:    s.loop.Snapshot(),
		Fault:   s.faults.CurrentSnapshot(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("status response marshal failed", "error", err)
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
