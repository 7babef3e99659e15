package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pumphouse/internal/types"
)

// maxResponseBytes bounds the body drain; the collector's reply is an ack,
// not data, and a misconfigured endpoint must not stream garbage at us.
const maxResponseBytes = 4 << 10

// mirrorPublishTimeout bounds the best-effort MQTT publish after a
// successful upload.
const mirrorPublishTimeout = 2 * time.Second

// Connectivity re-establishes the uplink before a send. Implemented by
// network.Manager.
type Connectivity interface {
	EnsureConnected(ctx context.Context) error
}

// Doer executes one HTTP request. Implemented by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mirror publishes a copy of the payload to a local broker. Implemented by
// MirrorPublisher.
type Mirror interface {
	Publish(ctx context.Context, payload []byte) error
}

// result is what the transfer goroutine reports back.
type result struct {
	status int
	err    error
}

// transfer is one in-flight upload.
type transfer struct {
	done    chan result
	payload []byte
	started time.Time
	cancel  context.CancelFunc
}

// Uploader performs the two-phase upload: BeginSend launches the request in
// a goroutine, Poll checks on it without blocking. The control loop stays
// responsive (display, watchdog) while the network does its thing.
//
// Uploader is confined to the control loop goroutine; it is not safe for
// concurrent use.
type Uploader struct {
	client   Doer
	net      Connectivity
	mirror   Mirror
	endpoint string
	apiKey   types.SecretString
	timeout  time.Duration
	clock    types.Clock
	logger   *slog.Logger

	cur *transfer
}

// UploaderConfig holds the collaborators for creating an Uploader.
type UploaderConfig struct {
	Client Doer
	Net    Connectivity
	// Mirror receives a copy of each successfully uploaded payload. Optional.
	Mirror   Mirror
	Endpoint string
	APIKey   types.SecretString
	// Timeout is how long Poll waits before declaring the transfer dead.
	Timeout time.Duration
	// Clock must be the same clock the caller passes to Poll, so the
	// deadline math shares one timebase. Defaults to the system clock.
	Clock types.Clock
	// Logger for transfer lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewUploader creates an Uploader with the given configuration.
func NewUploader(cfg UploaderConfig) *Uploader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Uploader{
		client:   cfg.Client,
		net:      cfg.Net,
		mirror:   cfg.Mirror,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  timeout,
		clock:    clock,
		logger:   logger,
	}
}

// InFlight reports whether a transfer is outstanding.
func (u *Uploader) InFlight() bool {
	return u.cur != nil
}

// BeginSend checks connectivity and launches the upload. A nil return means
// a transfer is in flight and Poll will eventually deliver its outcome.
//
// The request runs on a context detached from the caller's: the control
// loop moves on after starting the send, and the transfer must not die with
// the state that started it. Cancellation happens through Poll or Abort.
func (u *Uploader) BeginSend(ctx context.Context, r types.Reading) error {
	if u.cur != nil {
		return errors.New("upload already in flight")
	}

	if err := u.net.EnsureConnected(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(NewPayload(r))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(sctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return fmt.Errorf("build upload request: %w", err)
	}
	// One-shot connection: the next upload is minutes away, keeping the
	// socket would just hold radio and collector resources.
	req.Close = true
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", u.apiKey.Unmask())

	t := &transfer{
		done:    make(chan result, 1),
		payload: body,
		started: u.clock.Now(),
		cancel:  cancel,
	}
	u.cur = t

	go func() {
		resp, err := u.client.Do(req)
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			resp.Body.Close()
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.done <- result{status: status, err: err}
	}()

	u.logger.InfoContext(ctx, "upload started", "endpoint", u.endpoint, "bytes", len(body))
	return nil
}

// Poll reports the state of the in-flight transfer without blocking. On a
// terminal outcome the transfer is cleared; on success the payload is also
// mirrored to the local broker, best effort.
func (u *Uploader) Poll(now time.Time) types.SendOutcome {
	t := u.cur
	if t == nil {
		u.logger.Warn("poll with no transfer in flight")
		return types.SendFailed
	}

	select {
	case res := <-t.done:
		t.cancel()
		u.cur = nil
		switch {
		case res.err != nil:
			u.logger.Error("upload failed", "status", res.status, "error", res.err)
			return types.SendFailed
		case res.status >= 200 && res.status < 300:
			u.logger.Info("upload acknowledged",
				"status", res.status,
				"elapsed", now.Sub(t.started),
			)
			u.publishMirror(t.payload)
			return types.SendSuccess
		default:
			u.logger.Error("upload rejected", "status", res.status)
			return types.SendFailed
		}
	default:
		if now.Sub(t.started) >= u.timeout {
			t.cancel()
			u.cur = nil
			u.logger.Error("upload timed out", "timeout", u.timeout)
			return types.SendTimedOut
		}
		return types.SendPending
	}
}

// Abort cancels any in-flight transfer. Used on shutdown.
func (u *Uploader) Abort() {
	if u.cur == nil {
		return
	}
	u.cur.cancel()
	u.cur = nil
	u.logger.Info("upload aborted")
}

func (u *Uploader) publishMirror(payload []byte) {
	if u.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorPublishTimeout)
	defer cancel()
	if err := u.mirror.Publish(ctx, payload); err != nil {
		u.logger.Warn("mirror publish failed", "error", err)
	}
}
