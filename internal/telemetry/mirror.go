package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pumphouse/internal/types"
)

// MirrorPublisher copies upload payloads onto a local MQTT broker so home
// automation on the LAN can consume readings without a round-trip through
// the collector. Mirroring is strictly best effort.
type MirrorPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// MirrorPublisherConfig holds the broker settings.
type MirrorPublisherConfig struct {
	BrokerURL string
	Topic     string
	ClientID  string
	Username  string
	Password  types.SecretString
	// Logger for connection lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewMirrorPublisher connects to the broker, retrying with exponential
// backoff so a broker that boots slower than we do is not fatal.
func NewMirrorPublisher(cfg MirrorPublisherConfig) (*MirrorPublisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "pumphouse/readings"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password.Unmask()).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	connect := func() error {
		tok := client.Connect()
		if !tok.WaitTimeout(5 * time.Second) {
			return errors.New("broker connect timed out")
		}
		return tok.Error()
	}
	if err := backoff.Retry(connect, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)); err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	logger.Info("mirror connected", "broker", cfg.BrokerURL, "topic", topic)
	return &MirrorPublisher{
		client:  client,
		topic:   topic,
		timeout: 2 * time.Second,
		logger:  logger,
	}, nil
}

// Publish sends the payload at QoS 1, bounded by the context deadline or
// the publisher's own timeout, whichever is shorter.
func (m *MirrorPublisher) Publish(ctx context.Context, payload []byte) error {
	wait := m.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < wait {
			wait = until
		}
	}

	tok := m.client.Publish(m.topic, 1, false, payload)
	if !tok.WaitTimeout(wait) {
		return errors.New("mqtt publish timed out")
	}
	return tok.Error()
}

// Close disconnects from the broker, allowing a short quiesce for queued
// messages.
func (m *MirrorPublisher) Close() {
	m.client.Disconnect(250)
}
