package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
)

type subCall struct {
	topic string
	qos   byte
}

type pubCall struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
}

// fakeTransport is an in-memory mqtt.Transport. By default Connect succeeds
// and fires OnConnect, as paho does.
type fakeTransport struct {
	opts   mqtt.Options
	events mqtt.Events

	mu              sync.Mutex
	connectErr      error
	connectBlock    chan struct{}
	silentConnect   bool
	connected       bool
	subscribes      []subCall
	subscribeErr    map[string]error
	subscribeBlock  map[string]chan struct{}
	unsubscribes    []string
	unsubscribeErr  error
	publishes       []pubCall
	publishErr      error
	disconnectCalls int
}

func (t *fakeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	block := t.connectBlock
	err := t.connectErr
	silent := t.silentConnect
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	if !silent && t.events.OnConnect != nil {
		t.events.OnConnect()
	}
	return nil
}

func (t *fakeTransport) Disconnect(time.Duration) {
	t.mu.Lock()
	t.connected = false
	t.disconnectCalls++
	t.mu.Unlock()
}

func (t *fakeTransport) Subscribe(ctx context.Context, topic string, qos byte) error {
	t.mu.Lock()
	t.subscribes = append(t.subscribes, subCall{topic: topic, qos: qos})
	block := t.subscribeBlock[topic]
	err := t.subscribeErr[topic]
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (t *fakeTransport) Unsubscribe(_ context.Context, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsubscribes = append(t.unsubscribes, topic)
	return t.unsubscribeErr
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte, qos byte, retain bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.publishErr != nil {
		return t.publishErr
	}
	t.publishes = append(t.publishes, pubCall{topic: topic, payload: payload, qos: qos, retain: retain})
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) subscribeCount(topic string, qos byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.subscribes {
		if c.topic == topic && c.qos == qos {
			n++
		}
	}
	return n
}

func (t *fakeTransport) disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnectCalls
}

func (t *fakeTransport) publishCalls() []pubCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]pubCall(nil), t.publishes...)
}

// fakeDialer records every transport it builds.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	configure  func(*fakeTransport)
	dialErr    error
}

func (d *fakeDialer) Dial(opts mqtt.Options, events mqtt.Events) (mqtt.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	t := &fakeTransport{
		opts:           opts,
		events:         events,
		subscribeErr:   make(map[string]error),
		subscribeBlock: make(map[string]chan struct{}),
	}
	if d.configure != nil {
		d.configure(t)
	}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

func (d *fakeDialer) at(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

var errBrokerDown = errors.New("connection refused")
