package mqtt

import (
	"context"
	"time"
)

// Transport is one broker connection as seen by a session.
//
// Connect, Subscribe, Unsubscribe and Publish block until the broker
// acknowledges or ctx is done. Implementations must be safe for concurrent use.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(quiesce time.Duration)
	Subscribe(ctx context.Context, topic string, qos byte) error
	Unsubscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error
	IsConnected() bool
}

// InboundMessage is a PUBLISH delivered by the broker.
type InboundMessage struct {
	Topic     string
	Payload   []byte
	QoS       byte
	Retained  bool
	Duplicate bool
}

// Events receives notifications from a Transport. Nil callbacks are skipped.
//
// OnMessage is invoked sequentially, in the order the broker delivered the
// messages. OnError is always followed by OnClose when the link drops.
type Events struct {
	OnConnect      func()
	OnMessage      func(InboundMessage)
	OnError        func(err error)
	OnClose        func()
	OnReconnecting func()
}

func (e Events) connected() {
	if e.OnConnect != nil {
		e.OnConnect()
	}
}

func (e Events) message(m InboundMessage) {
	if e.OnMessage != nil {
		e.OnMessage(m)
	}
}

func (e Events) failed(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

func (e Events) closed() {
	if e.OnClose != nil {
		e.OnClose()
	}
}

func (e Events) reconnecting() {
	if e.OnReconnecting != nil {
		e.OnReconnecting()
	}
}

// Dialer builds a Transport for one connect attempt. It must not start any
// network activity; that happens on Transport.Connect.
type Dialer func(opts Options, events Events) (Transport, error)

// Dial is the default Dialer, backed by paho.mqtt.golang.
func Dial(opts Options, events Events) (Transport, error) {
	return NewPahoTransport(opts, events)
}
