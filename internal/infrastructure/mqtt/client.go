package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// PahoTransport implements Transport on top of paho.mqtt.golang.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Events callbacks run on paho's goroutines; OnMessage calls are serialised.
type PahoTransport struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	events  Events

	// logger for handler panics (optional, from Options.Logger).
	logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// NewPahoTransport builds a paho client for opts without connecting it.
func NewPahoTransport(opts Options, events Events) (*PahoTransport, error) {
	pahoOpts, err := buildClientOptions(opts)
	if err != nil {
		return nil, err
	}

	t := &PahoTransport{
		options: pahoOpts,
		events:  events,
		logger:  opts.Logger,
	}

	pahoOpts.SetDefaultPublishHandler(t.handleMessage)

	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.events.connected()
	})

	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.events.failed(err)
		t.events.closed()
	})

	pahoOpts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		t.events.reconnecting()
	})

	t.client = pahomqtt.NewClient(pahoOpts)
	return t, nil
}

// Connect opens the connection and waits for CONNACK or ctx.
//
// Returns:
//   - error: wrapped ErrConnectionFailed, or ctx.Err() if ctx ended first
func (t *PahoTransport) Connect(ctx context.Context) error {
	token := t.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		return err
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Disconnect closes the connection gracefully, waiting up to quiesce for
// in-flight work. Safe to call on a transport that never connected.
func (t *PahoTransport) Disconnect(quiesce time.Duration) {
	if t.client == nil {
		return
	}
	t.client.Disconnect(uint(quiesce.Milliseconds())) //nolint:gosec // quiesce is a small positive duration
}

// IsConnected reports whether the network link is currently open.
func (t *PahoTransport) IsConnected() bool {
	return t.client != nil && t.client.IsConnectionOpen()
}

// handleMessage receives every PUBLISH; subscriptions are made without
// per-topic callbacks so all traffic funnels through here.
func (t *PahoTransport) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			if logger := t.logger; logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	t.events.message(InboundMessage{
		Topic:     msg.Topic(),
		Payload:   msg.Payload(),
		QoS:       msg.Qos(),
		Retained:  msg.Retained(),
		Duplicate: msg.Duplicate(),
	})
}

// waitToken blocks until token completes or ctx ends. A ctx without a
// deadline is bounded by defaultOperationTimeout.
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultOperationTimeout)
		defer cancel()
	}

	select {
	case <-token.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
