package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttscope/internal/message"
)

// defaultEventBuffer is the per-session event channel capacity.
const defaultEventBuffer = 1024

// entry is a managed session plus the forwarder draining its channel.
type entry struct {
	session *Session
	done    chan struct{}
}

// Manager owns the mapping from connection id to Session.
//
// It is the single source of truth for which sessions exist. Each session
// gets its own event channel; a forwarder per session moves events into one
// consumer loop that invokes the EventHandler, so per-session order is kept
// and one busy session never blocks another's producer.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Manager struct {
	handler        EventHandler
	dial           mqtt.Dialer
	logger         Logger
	connectTimeout time.Duration
	eventBuffer    int

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	consumer   chan Event
	forwarders sync.WaitGroup
	loopDone   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the transport factory used by every session.
func WithDialer(d mqtt.Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithLogger sets the process logger passed to sessions.
func WithLogger(l Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConnectTimeout overrides the per-attempt connect deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) { m.connectTimeout = d }
}

// WithEventBuffer sets the per-session event channel capacity.
func WithEventBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.eventBuffer = n
		}
	}
}

// NewManager creates a Manager and starts its consumer loop. The handler is
// fixed for the Manager's lifetime.
func NewManager(handler EventHandler, opts ...Option) *Manager {
	m := &Manager{
		handler:        handler,
		dial:           mqtt.Dial,
		logger:         discardLogger{},
		connectTimeout: DefaultConnectTimeout,
		eventBuffer:    defaultEventBuffer,
		sessions:       make(map[string]*entry),
		consumer:       make(chan Event, defaultEventBuffer),
		loopDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.consume()
	return m
}

// consume delivers events to the handler until the consumer channel closes.
func (m *Manager) consume() {
	defer close(m.loopDone)
	for ev := range m.consumer {
		m.dispatch(ev)
	}
}

func (m *Manager) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panic recovered",
				"connection_id", ev.ConnectionID,
				"kind", ev.Kind,
				"panic", r,
			)
		}
	}()
	if m.handler != nil {
		m.handler.HandleEvent(ev)
	}
}

// Connect creates a fresh Session for profile and connects it. An existing
// session with the same id is disconnected and discarded first, and all of
// its events are delivered before any event of the new one.
func (m *Manager) Connect(ctx context.Context, profile ConnectionProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := m.sessions[profile.ID]
	e := m.newEntryLocked(profile)
	m.sessions[profile.ID] = e
	m.mu.Unlock()

	if old != nil {
		m.discard(ctx, old)
	}

	return e.session.Connect(ctx)
}

// Reconnect connects an existing session again, keeping its subscription
// set so every entry is restored once connected.
func (m *Manager) Reconnect(ctx context.Context, id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Connect(ctx)
}

// Disconnect gracefully closes the connection for id. The session stays
// registered (with its subscription set) until Remove or the next Connect.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Disconnect(ctx)
}

// Remove disconnects and discards the session for id.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	m.discard(ctx, e)
	return nil
}

// Subscribe delegates to the session for id.
func (m *Manager) Subscribe(ctx context.Context, id, topic string, qos message.QoS) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Subscribe(ctx, topic, qos)
}

// Unsubscribe delegates to the session for id.
func (m *Manager) Unsubscribe(ctx context.Context, id, topic string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Unsubscribe(ctx, topic)
}

// Publish delegates to the session for id.
func (m *Manager) Publish(ctx context.Context, id, topic string, payload []byte, qos message.QoS, retain bool) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Publish(ctx, topic, payload, qos, retain)
}

// DisconnectAll disconnects every session concurrently and waits for all of
// them. Errors are joined; one failure does not stop the others.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	sessions := m.snapshot()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.Disconnect(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.ID(), err))
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// ConnectedCount returns how many sessions are currently connected.
func (m *Manager) ConnectedCount() int {
	n := 0
	for _, s := range m.snapshot() {
		if s.State() == StateConnected {
			n++
		}
	}
	return n
}

// Session returns the session for id for read-only introspection.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// IDs returns the ids of all managed sessions, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Close disconnects every session, delivers their remaining events and
// stops the consumer loop. The Manager cannot be used afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.DisconnectAll(ctx)

	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		entries = append(entries, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}

	m.forwarders.Wait()
	close(m.consumer)
	<-m.loopDone

	return err
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	return e.session, nil
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	return sessions
}

// newEntryLocked builds a session wired to its own channel and starts the
// forwarder that drains it into the consumer loop.
func (m *Manager) newEntryLocked(profile ConnectionProfile) *entry {
	ch := make(chan Event, m.eventBuffer)
	e := &entry{
		session: NewSession(profile, ch,
			WithSessionDialer(m.dial),
			WithSessionLogger(m.logger),
			WithSessionConnectTimeout(m.connectTimeout),
		),
		done: make(chan struct{}),
	}

	m.forwarders.Add(1)
	go func() {
		defer m.forwarders.Done()
		defer close(e.done)
		for ev := range ch {
			m.consumer <- ev
		}
	}()

	return e
}

// discard disconnects and closes a session that is no longer registered,
// then waits until its forwarder has handed over every event.
func (m *Manager) discard(ctx context.Context, e *entry) {
	if err := e.session.Disconnect(ctx); err != nil {
		m.logger.Warn("disconnect of replaced session failed", "connection_id", e.session.ID(), "error", err)
	}
	e.session.Close()
	<-e.done
}
