package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/config"
	"github.com/nerrad567/mqttscope/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/session"
	"github.com/nerrad567/mqttscope/internal/store"
)

// DefaultSampleInterval is how often Run records a throughput sample.
const DefaultSampleInterval = time.Second

// MetricsSink receives traffic and state points. *influxdb.Client
// satisfies it; a nil sink disables export.
type MetricsSink interface {
	WriteThroughput(t influxdb.Throughput)
	WriteConnectionState(connectionID, state string, at time.Time)
	WriteConnectionTraffic(connectionID string, received, sent uint64, at time.Time)
}

// Listener observes every event after it has been applied to the stores.
// It runs on the event loop (or the publishing goroutine for outbound
// messages) and must not block.
type Listener func(ev session.Event)

// PublishRequest is an operator-issued publish. Format names the declared
// payload format; empty means detect.
type PublishRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Format  string `json:"format"`
	QoS     int    `json:"qos"`
	Retain  bool   `json:"retain"`
}

// ConnectionInfo is the read-only view of one saved connection.
type ConnectionInfo struct {
	Profile       session.ConnectionProfile `json:"profile"`
	Status        store.ConnectionStatus    `json:"status"`
	Subscriptions []session.Subscription    `json:"subscriptions"`
	Received      uint64                    `json:"received"`
	Sent          uint64                    `json:"sent"`
}

// Stats summarises traffic across all connections.
type Stats struct {
	Received          uint64         `json:"received"`
	Sent              uint64         `json:"sent"`
	Total             uint64         `json:"total"`
	MessagesPerSecond float64        `json:"messages_per_second"`
	Retained          int            `json:"retained"`
	Topics            int            `json:"topics"`
	Connections       int            `json:"connections"`
	Connected         int            `json:"connected"`
	History           []store.Sample `json:"history"`
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Workspace owns the session manager, the saved profiles and the
// in-memory projections of all session traffic.
//
// All public methods are thread-safe.
type Workspace struct {
	logger         session.Logger
	metrics        MetricsSink
	sampleInterval time.Duration
	managerOpts    []session.Option

	manager    *session.Manager
	messages   *store.MessageStore
	conns      *store.ConnectionStore
	throughput *store.Throughput

	mu        sync.RWMutex
	profiles  map[string]session.ConnectionProfile
	listeners []Listener
	closed    bool

	now func() time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the process logger for the workspace and its sessions.
func WithLogger(l session.Logger) Option {
	return func(w *Workspace) {
		w.logger = l
		w.managerOpts = append(w.managerOpts, session.WithLogger(l))
	}
}

// WithDialer replaces the transport factory used by every session.
func WithDialer(d mqtt.Dialer) Option {
	return func(w *Workspace) {
		w.managerOpts = append(w.managerOpts, session.WithDialer(d))
	}
}

// WithConnectTimeout overrides the per-attempt connect deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(w *Workspace) {
		w.managerOpts = append(w.managerOpts, session.WithConnectTimeout(d))
	}
}

// WithMetrics exports state transitions and throughput samples to m.
func WithMetrics(m MetricsSink) Option {
	return func(w *Workspace) { w.metrics = m }
}

// WithSampleInterval sets how often Run samples throughput.
func WithSampleInterval(d time.Duration) Option {
	return func(w *Workspace) {
		if d > 0 {
			w.sampleInterval = d
		}
	}
}

// New creates a Workspace with stores bounded by cfg and starts its
// session manager.
func New(cfg config.StoreConfig, opts ...Option) *Workspace {
	w := &Workspace{
		logger:         noopLogger{},
		sampleInterval: DefaultSampleInterval,
		messages: store.NewMessageStore(
			store.WithCapacity(cfg.MaxMessages),
			store.WithPerTopicLimit(cfg.MaxPerTopic),
		),
		conns:      store.NewConnectionStore(cfg.MaxLogLines),
		throughput: store.NewThroughput(cfg.StatsWindow),
		profiles:   make(map[string]session.ConnectionProfile),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.manager = session.NewManager(w, w.managerOpts...)
	return w
}

// AddListener registers l for every subsequent event.
func (w *Workspace) AddListener(l Listener) {
	w.mu.Lock()
	w.listeners = append(w.listeners, l)
	w.mu.Unlock()
}

// HandleEvent applies one session event to the stores and notifies
// listeners. Events for connections that have been removed are dropped.
func (w *Workspace) HandleEvent(ev session.Event) {
	w.mu.RLock()
	_, known := w.profiles[ev.ConnectionID]
	w.mu.RUnlock()
	if !known {
		return
	}

	switch ev.Kind {
	case session.EventState:
		w.conns.SetState(ev.ConnectionID, ev.State, ev.Time)
		if w.metrics != nil {
			w.metrics.WriteConnectionState(ev.ConnectionID, ev.State.String(), ev.Time)
		}
	case session.EventMessage:
		w.messages.AddMessage(ev.Message)
	case session.EventError:
		w.conns.SetError(ev.ConnectionID, ev.Err, ev.Time)
	case session.EventLog:
		w.conns.AppendLog(ev.ConnectionID, ev.Log)
	}

	w.notify(ev)
}

func (w *Workspace) notify(ev session.Event) {
	w.mu.RLock()
	listeners := w.listeners
	w.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// SaveProfile validates p and stores it, assigning an id if p has none.
// A live session picks up the change on its next connect.
//
// Returns:
//   - session.ConnectionProfile: the stored profile with timestamps set
//   - error: session.ErrInvalidProfile if validation fails
func (w *Workspace) SaveProfile(p session.ConnectionProfile) (session.ConnectionProfile, error) {
	if p.ID == "" {
		p.ID = session.NewProfileID()
	}
	if p.Name == "" {
		p.Name = p.Host
	}
	if err := p.Validate(); err != nil {
		return session.ConnectionProfile{}, err
	}

	now := w.now()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return session.ConnectionProfile{}, ErrClosed
	}
	if prev, ok := w.profiles[p.ID]; ok && !prev.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	w.profiles[p.ID] = p
	w.mu.Unlock()

	if s, ok := w.manager.Session(p.ID); ok {
		if err := s.UpdateProfile(p); err != nil {
			return session.ConnectionProfile{}, err
		}
	}

	w.logger.Debug("connection profile saved", "connection_id", p.ID, "name", p.Name)
	return p, nil
}

// Profile returns the saved profile for id.
func (w *Workspace) Profile(id string) (session.ConnectionProfile, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.profiles[id]
	if !ok {
		return session.ConnectionProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p, nil
}

// Profiles returns every saved profile sorted by name, then id.
func (w *Workspace) Profiles() []session.ConnectionProfile {
	w.mu.RLock()
	profiles := make([]session.ConnectionProfile, 0, len(w.profiles))
	for _, p := range w.profiles {
		profiles = append(profiles, p)
	}
	w.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Name != profiles[j].Name {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].ID < profiles[j].ID
	})
	return profiles
}

// ConnectProfile saves p and connects it.
func (w *Workspace) ConnectProfile(ctx context.Context, p session.ConnectionProfile) (session.ConnectionProfile, error) {
	saved, err := w.SaveProfile(p)
	if err != nil {
		return session.ConnectionProfile{}, err
	}
	return saved, w.Connect(ctx, saved.ID)
}

// Connect opens a fresh session for the saved profile id, replacing any
// existing session (and its subscription set) for that id.
func (w *Workspace) Connect(ctx context.Context, id string) error {
	p, err := w.Profile(id)
	if err != nil {
		return err
	}
	if err := w.checkOpen(); err != nil {
		return err
	}
	return w.manager.Connect(ctx, p)
}

// Reconnect connects the existing session for id again, restoring its
// subscriptions. Without a session it behaves like Connect.
func (w *Workspace) Reconnect(ctx context.Context, id string) error {
	if _, err := w.Profile(id); err != nil {
		return err
	}
	err := w.manager.Reconnect(ctx, id)
	if errors.Is(err, session.ErrClientNotFound) {
		return w.Connect(ctx, id)
	}
	return err
}

// Disconnect gracefully closes the connection for id. Disconnecting a
// saved profile that was never connected is a no-op.
func (w *Workspace) Disconnect(ctx context.Context, id string) error {
	if _, err := w.Profile(id); err != nil {
		return err
	}
	err := w.manager.Disconnect(ctx, id)
	if errors.Is(err, session.ErrClientNotFound) {
		return nil
	}
	return err
}

// RemoveConnection disconnects id and forgets its profile, state and log
// lines. Messages already recorded stay in the message log.
func (w *Workspace) RemoveConnection(ctx context.Context, id string) error {
	w.mu.Lock()
	if _, ok := w.profiles[id]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	delete(w.profiles, id)
	w.mu.Unlock()

	err := w.manager.Remove(ctx, id)
	if errors.Is(err, session.ErrClientNotFound) {
		err = nil
	}
	w.conns.Remove(id)

	w.logger.Info("connection removed", "connection_id", id)
	return err
}

// Subscribe adds topic to the subscription set of id.
func (w *Workspace) Subscribe(ctx context.Context, id, topic string, qos message.QoS) error {
	if _, err := w.Profile(id); err != nil {
		return err
	}
	return notConnected(w.manager.Subscribe(ctx, id, topic, qos))
}

// Unsubscribe removes topic from the subscription set of id.
func (w *Workspace) Unsubscribe(ctx context.Context, id, topic string) error {
	if _, err := w.Profile(id); err != nil {
		return err
	}
	return notConnected(w.manager.Unsubscribe(ctx, id, topic))
}

// Subscriptions returns the desired subscription set of id. A profile
// without a session has none.
func (w *Workspace) Subscriptions(id string) ([]session.Subscription, error) {
	if _, err := w.Profile(id); err != nil {
		return nil, err
	}
	s, ok := w.manager.Session(id)
	if !ok {
		return []session.Subscription{}, nil
	}
	return s.Subscriptions(), nil
}

// Publish validates req against its declared format, sends it on id and
// records it as an outbound message. Nothing is sent when the payload is
// malformed.
//
// Returns:
//   - message.Message: the recorded outbound message
//   - error: message.ErrInvalidPayload, message.ErrUnknownFormat,
//     message.ErrInvalidQoS, session.ErrNotConnected or a publish failure
func (w *Workspace) Publish(ctx context.Context, id string, req PublishRequest) (message.Message, error) {
	if _, err := w.Profile(id); err != nil {
		return message.Message{}, err
	}

	format, err := message.ParseFormat(req.Format)
	if err != nil {
		return message.Message{}, err
	}
	qos, err := message.ParseQoS(req.QoS)
	if err != nil {
		return message.Message{}, err
	}
	payload, err := message.EncodePayload(req.Payload, format)
	if err != nil {
		return message.Message{}, err
	}

	if err := w.manager.Publish(ctx, id, req.Topic, []byte(payload), qos, req.Retain); err != nil {
		return message.Message{}, notConnected(err)
	}

	msg := message.NewOutbound(id, req.Topic, payload, format, qos, req.Retain)
	w.messages.AddMessage(msg)
	w.notify(session.Event{
		Kind:         session.EventMessage,
		ConnectionID: id,
		Time:         msg.Timestamp,
		Message:      msg,
	})
	return msg, nil
}

// Connection returns the read-only view of id.
func (w *Workspace) Connection(id string) (ConnectionInfo, error) {
	p, err := w.Profile(id)
	if err != nil {
		return ConnectionInfo{}, err
	}
	return w.connectionInfo(p), nil
}

// Connections returns every saved connection in Profiles order.
func (w *Workspace) Connections() []ConnectionInfo {
	profiles := w.Profiles()
	infos := make([]ConnectionInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, w.connectionInfo(p))
	}
	return infos
}

func (w *Workspace) connectionInfo(p session.ConnectionProfile) ConnectionInfo {
	status, ok := w.conns.Status(p.ID)
	if !ok {
		status = store.ConnectionStatus{ID: p.ID, State: session.StateDisconnected}
	}
	subs := []session.Subscription{}
	if s, ok := w.manager.Session(p.ID); ok {
		// The session is ahead of the store while its events are in flight.
		status.State = s.State()
		subs = s.Subscriptions()
	}
	counters := w.messages.ConnectionCounters(p.ID)

	return ConnectionInfo{
		Profile:       p,
		Status:        status,
		Subscriptions: subs,
		Received:      counters.Received,
		Sent:          counters.Sent,
	}
}

// Logs returns the activity log of id, oldest first.
func (w *Workspace) Logs(id string) ([]session.LogLine, error) {
	if _, err := w.Profile(id); err != nil {
		return nil, err
	}
	return w.conns.Logs(id), nil
}

// ClearLogs empties the activity log of id.
func (w *Workspace) ClearLogs(id string) error {
	if _, err := w.Profile(id); err != nil {
		return err
	}
	w.conns.ClearLogs(id)
	return nil
}

// Messages is the shared message store.
func (w *Workspace) Messages() *store.MessageStore {
	return w.messages
}

// ConnectionStates is the per-connection state and log store.
func (w *Workspace) ConnectionStates() *store.ConnectionStore {
	return w.conns
}

// Stats returns the current totals and the throughput history.
func (w *Workspace) Stats() Stats {
	counters := w.messages.Counters()

	w.mu.RLock()
	profiles := len(w.profiles)
	w.mu.RUnlock()

	return Stats{
		Received:          counters.Received,
		Sent:              counters.Sent,
		Total:             counters.Total(),
		MessagesPerSecond: float64(w.throughput.Rate()) / w.sampleInterval.Seconds(),
		Retained:          w.messages.Len(),
		Topics:            w.messages.TopicCount(),
		Connections:       profiles,
		Connected:         w.manager.ConnectedCount(),
		History:           w.throughput.Samples(),
	}
}

// Run samples throughput every sample interval until ctx is done.
func (w *Workspace) Run(ctx context.Context) {
	ticker := time.NewTicker(w.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			w.sample(t)
		}
	}
}

// sample records one throughput sample and exports it with the running
// per-connection totals.
func (w *Workspace) sample(at time.Time) store.Sample {
	s := w.throughput.Record(at, w.messages.Counters())
	if w.metrics == nil {
		return s
	}

	w.metrics.WriteThroughput(influxdb.Throughput{
		Time:     at,
		Received: s.Received,
		Sent:     s.Sent,
		Retained: w.messages.Len(),
		Topics:   w.messages.TopicCount(),
	})
	for _, id := range w.manager.IDs() {
		c := w.messages.ConnectionCounters(id)
		w.metrics.WriteConnectionTraffic(id, c.Received, c.Sent, at)
	}
	return s
}

// DisconnectAll disconnects every session and waits for all of them.
func (w *Workspace) DisconnectAll(ctx context.Context) error {
	return w.manager.DisconnectAll(ctx)
}

// Close disconnects every session and delivers their last events. The
// Workspace cannot connect again afterwards; its stores stay readable.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	return w.manager.Close(ctx)
}

func (w *Workspace) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	return nil
}

// notConnected reports a saved profile without a live session as not
// connected rather than unknown.
func notConnected(err error) error {
	if errors.Is(err, session.ErrClientNotFound) {
		return fmt.Errorf("%w: no active session", session.ErrNotConnected)
	}
	return err
}
