package api

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
)

// fakeTransport is an in-memory broker link that accepts every request.
type fakeTransport struct {
	events mqtt.Events

	mu        sync.Mutex
	publishes []string
}

func (t *fakeTransport) Connect(context.Context) error {
	if t.events.OnConnect != nil {
		t.events.OnConnect()
	}
	return nil
}

func (t *fakeTransport) Disconnect(time.Duration) {}

func (t *fakeTransport) Subscribe(context.Context, string, byte) error {
	return nil
}

func (t *fakeTransport) Unsubscribe(context.Context, string) error {
	return nil
}

func (t *fakeTransport) Publish(_ context.Context, topic string, _ []byte, _ byte, _ bool) error {
	t.mu.Lock()
	t.publishes = append(t.publishes, topic)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	return true
}

func (t *fakeTransport) deliver(topic, payload string) {
	t.events.OnMessage(mqtt.InboundMessage{Topic: topic, Payload: []byte(payload)})
}

func (t *fakeTransport) publishCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.publishes)
}

type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(_ mqtt.Options, events mqtt.Events) (mqtt.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &fakeTransport{events: events}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}
