package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttscope/internal/message"
)

const (
	// DefaultConnectTimeout is the deadline for a connect attempt to reach
	// the connected state. It governs observable failure; the longer
	// transport-level timeout only bounds the underlying dial.
	DefaultConnectTimeout = 10 * time.Second

	// disconnectQuiesce is how long a graceful disconnect waits for in-flight work.
	disconnectQuiesce = 1000 * time.Millisecond

	// resubscribeTimeout bounds each resubscription after (re)connect.
	resubscribeTimeout = 10 * time.Second
)

// Subscription is one entry of a session's desired subscription set.
type Subscription struct {
	Topic string      `json:"topic"`
	QoS   message.QoS `json:"qos"`
}

// attempt tracks one in-flight Connect call.
type attempt struct {
	connected chan struct{}
	aborted   chan struct{}
}

// Session manages exactly one broker connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Events are delivered on the channel given to NewSession in the order
//     the transitions happened.
type Session struct {
	id             string
	dial           mqtt.Dialer
	logger         Logger
	connectTimeout time.Duration

	mu        sync.Mutex
	profile   ConnectionProfile
	state     ConnectionState
	transport mqtt.Transport
	gen       uint64
	attempt   *attempt
	subs      map[string]message.QoS
	closed    bool

	// emitMu orders channel sends. It is taken while mu is still held and
	// mu is released before the send, so state reads never wait on a slow
	// consumer.
	emitMu     sync.Mutex
	events     chan<- Event
	emitClosed bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionDialer replaces the transport factory (mqtt.Dial by default).
func WithSessionDialer(d mqtt.Dialer) SessionOption {
	return func(s *Session) { s.dial = d }
}

// WithSessionLogger sets the process logger.
func WithSessionLogger(l Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithSessionConnectTimeout overrides DefaultConnectTimeout.
func WithSessionConnectTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.connectTimeout = d }
}

// NewSession creates a disconnected session for profile. Events are sent on
// events until Close; the caller must keep draining it.
func NewSession(profile ConnectionProfile, events chan<- Event, opts ...SessionOption) *Session {
	s := &Session{
		id:             profile.ID,
		dial:           mqtt.Dial,
		logger:         discardLogger{},
		connectTimeout: DefaultConnectTimeout,
		profile:        profile,
		state:          StateDisconnected,
		subs:           make(map[string]message.QoS),
		events:         events,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the connection id this session serves.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Profile returns the profile the next connect attempt will use.
func (s *Session) Profile() ConnectionProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// UpdateProfile replaces the profile. A live connection is not affected;
// the change applies on the next Connect.
func (s *Session) UpdateProfile(p ConnectionProfile) error {
	if p.ID != s.id {
		return fmt.Errorf("%w: id %q does not match session %q", ErrInvalidProfile, p.ID, s.id)
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return nil
}

// Subscriptions returns the desired subscription set sorted by topic.
func (s *Session) Subscriptions() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]Subscription, 0, len(s.subs))
	for topic, qos := range s.subs {
		subs = append(subs, Subscription{Topic: topic, QoS: qos})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Topic < subs[j].Topic })
	return subs
}

// Connect opens a connection using the current profile and waits until it
// is connected, fails, or the connect timeout elapses.
//
// Any existing connection is torn down first. On timeout the attempt is
// abandoned: its transport is closed, the session moves to error, and a
// late success from that transport is ignored.
//
// Returns:
//   - error: ErrConnectionFailed, ErrConnectTimeout, ErrConnectAborted or ErrSessionClosed
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	old := s.detachLocked()
	gen := s.gen
	profile := s.profile

	clientID := profile.ClientID
	if profile.AutoGenerateClientID || clientID == "" {
		clientID = GenerateClientID()
	}

	evs := s.transitionLocked(StateConnecting)
	evs = append(evs, s.logEvent(LogInfo, fmt.Sprintf("Connecting to %s as %s...", profile.BrokerURL(), clientID)))

	opts, warnings, err := transportOptions(profile, clientID)
	opts.Logger = s.logger
	for _, w := range warnings {
		evs = append(evs, s.logEvent(LogWarn, w))
	}

	var tr mqtt.Transport
	if err == nil {
		tr, err = s.dial(opts, s.eventsFor(gen))
	}
	if err != nil {
		evs = append(evs, s.failEventsLocked(err)...)
		s.unlockAndEmit(evs...)
		s.teardown(old)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	att := &attempt{connected: make(chan struct{}), aborted: make(chan struct{})}
	s.transport = tr
	s.attempt = att
	s.unlockAndEmit(evs...)

	s.teardown(old)

	s.logger.Debug("connecting", "connection_id", s.id, "broker", opts.URL, "client_id", clientID)

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tr.Connect(connectCtx) }()

	select {
	case <-att.connected:
		return nil
	case <-att.aborted:
		return ErrConnectAborted
	case err := <-errCh:
		if err == nil {
			s.handleConnected(gen)
			select {
			case <-att.connected:
				return nil
			default:
				return ErrConnectAborted
			}
		}
		if connectCtx.Err() != nil {
			return s.connectTimedOut(ctx, gen)
		}
		if !s.failAttempt(gen, err) {
			return ErrConnectAborted
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	case <-connectCtx.Done():
		return s.connectTimedOut(ctx, gen)
	}
}

// connectTimedOut abandons attempt gen after its deadline or the caller's
// context ended.
func (s *Session) connectTimedOut(ctx context.Context, gen uint64) error {
	cause := fmt.Errorf("%w (%s)", ErrConnectTimeout, s.connectTimeout)
	if ctx.Err() != nil {
		cause = fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if !s.failAttempt(gen, cause) {
		return ErrConnectAborted
	}
	return cause
}

// failAttempt moves the session to error if gen is still current. It
// reports false when the attempt had already been superseded.
func (s *Session) failAttempt(gen uint64, cause error) bool {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return false
	}
	tr := s.detachLocked()
	evs := s.failEventsLocked(cause)
	s.unlockAndEmit(evs...)

	s.logger.Warn("connect attempt failed", "connection_id", s.id, "error", cause)
	go s.teardown(tr)
	return true
}

func (s *Session) failEventsLocked(cause error) []Event {
	evs := s.transitionLocked(StateError)
	return append(evs,
		s.logEvent(LogError, cause.Error()),
		Event{Kind: EventError, ConnectionID: s.id, Time: time.Now(), Err: cause},
	)
}

// Disconnect closes the connection gracefully if one exists and leaves the
// session disconnected. It is valid in every state, including while a
// connect attempt is in flight; that attempt's caller gets ErrConnectAborted.
//
// If ctx ends before the transport finishes closing, Disconnect returns
// ctx.Err() and the close completes in the background.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	tr := s.detachLocked()
	evs := s.transitionLocked(StateDisconnected)
	if tr != nil {
		evs = append(evs, s.logEvent(LogInfo, "Disconnected"))
	}
	s.unlockAndEmit(evs...)

	if tr == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		tr.Disconnect(disconnectQuiesce)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects and stops event delivery. The events channel is closed;
// every later operation returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	tr := s.detachLocked()
	evs := s.transitionLocked(StateDisconnected)
	s.closed = true
	s.unlockAndEmit(evs...)

	s.teardown(tr)

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.emitClosed && s.events != nil {
		close(s.events)
	}
	s.emitClosed = true
}

// Subscribe requests topic at qos and, once the broker confirms, records it
// in the subscription set (replacing any previous qos for the same filter).
func (s *Session) Subscribe(ctx context.Context, topic string, qos message.QoS) error {
	tr, err := s.connectedTransport()
	if err != nil {
		return err
	}
	if err := message.ValidateTopicFilter(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if !qos.Valid() {
		return ErrInvalidQoS
	}

	if err := tr.Subscribe(ctx, topic, byte(qos)); err != nil {
		s.log(LogError, fmt.Sprintf("Subscribe to %s failed: %v", topic, err))
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	s.mu.Lock()
	s.subs[topic] = qos
	s.unlockAndEmit(s.logEvent(LogInfo, fmt.Sprintf("Subscribed: %s (QoS %d)", topic, qos)))
	return nil
}

// Unsubscribe removes topic from the broker and, only once that is
// confirmed, from the subscription set. A failed unsubscribe leaves the
// entry in place so it is still restored after a reconnect.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	tr, err := s.connectedTransport()
	if err != nil {
		return err
	}
	if err := message.ValidateTopicFilter(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	if err := tr.Unsubscribe(ctx, topic); err != nil {
		s.log(LogError, fmt.Sprintf("Unsubscribe from %s failed: %v", topic, err))
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	s.mu.Lock()
	delete(s.subs, topic)
	s.unlockAndEmit(s.logEvent(LogInfo, fmt.Sprintf("Unsubscribed: %s", topic)))
	return nil
}

// Publish sends payload to topic and waits for the acknowledgement
// required by qos.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte, qos message.QoS, retain bool) error {
	tr, err := s.connectedTransport()
	if err != nil {
		return err
	}
	if err := message.ValidateTopicName(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if !qos.Valid() {
		return ErrInvalidQoS
	}
	if len(payload) > mqtt.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	if err := tr.Publish(ctx, topic, payload, byte(qos), retain); err != nil {
		s.log(LogError, fmt.Sprintf("Publish to %s failed: %v", topic, err))
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (s *Session) connectedTransport() (mqtt.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.state != StateConnected || s.transport == nil {
		return nil, ErrNotConnected
	}
	return s.transport, nil
}

// =============================================================================
// Transport callbacks
// =============================================================================

// eventsFor binds transport callbacks to attempt gen.
func (s *Session) eventsFor(gen uint64) mqtt.Events {
	return mqtt.Events{
		OnConnect:      func() { s.handleConnected(gen) },
		OnMessage:      func(m mqtt.InboundMessage) { s.handleMessage(gen, m) },
		OnError:        func(err error) { s.handleError(gen, err) },
		OnClose:        func() { s.handleClose(gen) },
		OnReconnecting: func() { s.handleReconnecting(gen) },
	}
}

// handleConnected moves to connected and resubscribes every entry of the
// subscription set, each on its own goroutine.
func (s *Session) handleConnected(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.state == StateConnected {
		s.mu.Unlock()
		return
	}

	if s.attempt != nil {
		close(s.attempt.connected)
		s.attempt = nil
	}

	evs := s.transitionLocked(StateConnected)
	evs = append(evs, s.logEvent(LogInfo, "Connected"))

	tr := s.transport
	subs := make([]Subscription, 0, len(s.subs))
	for topic, qos := range s.subs {
		subs = append(subs, Subscription{Topic: topic, QoS: qos})
	}
	s.unlockAndEmit(evs...)

	s.logger.Info("connected", "connection_id", s.id, "resubscribing", len(subs))

	for _, sub := range subs {
		go s.resubscribe(gen, tr, sub)
	}
}

// resubscribe is best-effort: a failure is logged and never affects the
// other topics or the connection state.
func (s *Session) resubscribe(gen uint64, tr mqtt.Transport, sub Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), resubscribeTimeout)
	defer cancel()

	err := tr.Subscribe(ctx, sub.Topic, byte(sub.QoS))

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.unlockAndEmit(s.logEvent(LogWarn, fmt.Sprintf("Resubscribe to %s failed: %v", sub.Topic, err)))
		return
	}
	s.unlockAndEmit(s.logEvent(LogInfo, fmt.Sprintf("Resubscribed: %s (QoS %d)", sub.Topic, sub.QoS)))
}

func (s *Session) handleMessage(gen uint64, m mqtt.InboundMessage) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	msg := message.NewInbound(s.id, m.Topic, m.Payload, message.QoS(m.QoS), m.Retained, m.Duplicate)
	s.unlockAndEmit(Event{Kind: EventMessage, ConnectionID: s.id, Time: msg.Timestamp, Message: msg})
}

// handleError surfaces a transport error. State is driven by the close
// event that follows, not by the error itself.
func (s *Session) handleError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.unlockAndEmit(
		s.logEvent(LogError, err.Error()),
		Event{Kind: EventError, ConnectionID: s.id, Time: time.Now(), Err: err},
	)
}

func (s *Session) handleClose(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	evs := s.transitionLocked(StateDisconnected)
	evs = append(evs, s.logEvent(LogInfo, "Connection closed"))
	s.unlockAndEmit(evs...)
}

func (s *Session) handleReconnecting(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	evs := s.transitionLocked(StateReconnecting)
	evs = append(evs, s.logEvent(LogWarn, "Reconnecting..."))
	s.unlockAndEmit(evs...)
}

// =============================================================================
// Internal helpers
// =============================================================================

// detachLocked invalidates the current attempt and transport. Callbacks
// already bound to the old generation become no-ops.
func (s *Session) detachLocked() mqtt.Transport {
	s.gen++
	if s.attempt != nil {
		close(s.attempt.aborted)
		s.attempt = nil
	}
	tr := s.transport
	s.transport = nil
	return tr
}

// transitionLocked sets state and returns the event describing the change,
// or nothing if the state is unchanged.
func (s *Session) transitionLocked(next ConnectionState) []Event {
	if s.state == next {
		return nil
	}
	s.state = next
	return []Event{{Kind: EventState, ConnectionID: s.id, Time: time.Now(), State: next}}
}

func (s *Session) logEvent(level LogLevel, text string) Event {
	now := time.Now()
	return Event{
		Kind:         EventLog,
		ConnectionID: s.id,
		Time:         now,
		Log:          LogLine{Time: now, Level: level, Text: text},
	}
}

func (s *Session) log(level LogLevel, text string) {
	s.mu.Lock()
	s.unlockAndEmit(s.logEvent(level, text))
}

// unlockAndEmit must be called with mu held. It releases mu and sends evs
// in order.
func (s *Session) unlockAndEmit(evs ...Event) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	if s.emitClosed || s.events == nil {
		return
	}
	for _, ev := range evs {
		s.events <- ev
	}
}

func (s *Session) teardown(tr mqtt.Transport) {
	if tr != nil {
		tr.Disconnect(disconnectQuiesce)
	}
}
