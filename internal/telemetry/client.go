package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Client wraps an *http.Client with a circuit breaker so a dead collector
// stops costing a full timeout on every send attempt. There is no retry
// layer here: the control loop's failure counting IS the retry policy, and
// stacking another one under it would hide failures from the escalation
// rule.
type Client struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	// Timeout is the transport-level ceiling per request. The uploader
	// enforces its own, shorter deadline on top.
	Timeout time.Duration
	// Logger records breaker state changes. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewClient creates a Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "collector",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// Do executes the request through the breaker. Transport errors and 5xx
// responses count as breaker failures; any response the server actually
// produced is returned alongside the error so the caller can read the
// status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("collector returned %d", resp.StatusCode)
		}
		return resp, nil
	})
}
