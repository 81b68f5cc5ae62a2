package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload string
	qos     byte
	retain  bool
}

// fakeTransport is an in-memory broker link that accepts everything.
type fakeTransport struct {
	events mqtt.Events

	mu          sync.Mutex
	subscribed  []string
	publishes   []published
	disconnects int
}

func (t *fakeTransport) Connect(context.Context) error {
	if t.events.OnConnect != nil {
		t.events.OnConnect()
	}
	return nil
}

func (t *fakeTransport) Disconnect(time.Duration) {
	t.mu.Lock()
	t.disconnects++
	t.mu.Unlock()
}

func (t *fakeTransport) Subscribe(_ context.Context, topic string, _ byte) error {
	t.mu.Lock()
	t.subscribed = append(t.subscribed, topic)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Unsubscribe(context.Context, string) error {
	return nil
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte, qos byte, retain bool) error {
	t.mu.Lock()
	t.publishes = append(t.publishes, published{topic: topic, payload: string(payload), qos: qos, retain: retain})
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	return true
}

// deliver simulates a PUBLISH from the broker.
func (t *fakeTransport) deliver(topic, payload string) {
	t.events.OnMessage(mqtt.InboundMessage{Topic: topic, Payload: []byte(payload)})
}

func (t *fakeTransport) publishCalls() []published {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]published(nil), t.publishes...)
}

func (t *fakeTransport) subscriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.subscribed...)
}

func (t *fakeTransport) disconnectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
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

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[len(d.transports)-1]
}

type statePoint struct {
	id    string
	state string
}

type trafficPoint struct {
	id       string
	received uint64
	sent     uint64
}

// recordingSink is a MetricsSink that keeps every point.
type recordingSink struct {
	mu         sync.Mutex
	throughput []influxdb.Throughput
	states     []statePoint
	traffic    []trafficPoint
}

func (r *recordingSink) WriteThroughput(t influxdb.Throughput) {
	r.mu.Lock()
	r.throughput = append(r.throughput, t)
	r.mu.Unlock()
}

func (r *recordingSink) WriteConnectionState(id, state string, _ time.Time) {
	r.mu.Lock()
	r.states = append(r.states, statePoint{id: id, state: state})
	r.mu.Unlock()
}

func (r *recordingSink) WriteConnectionTraffic(id string, received, sent uint64, _ time.Time) {
	r.mu.Lock()
	r.traffic = append(r.traffic, trafficPoint{id: id, received: received, sent: sent})
	r.mu.Unlock()
}

func (r *recordingSink) stateCount(id, state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.states {
		if p.id == id && p.state == state {
			n++
		}
	}
	return n
}
