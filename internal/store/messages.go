package store

import (
	"regexp"
	"strings"
	"sync"

	"github.com/nerrad567/mqttscope/internal/message"
)

const (
	// DefaultMaxMessages is the log capacity.
	DefaultMaxMessages = 50000

	// DefaultMaxPerTopic is the retention ceiling for a single topic.
	DefaultMaxPerTopic = 1000
)

// Counters are running traffic totals.
type Counters struct {
	Received uint64 `json:"received"`
	Sent     uint64 `json:"sent"`
}

// Total is Received + Sent.
func (c Counters) Total() uint64 {
	return c.Received + c.Sent
}

func (c *Counters) count(d message.Direction) {
	if d == message.Outbound {
		c.Sent++
		return
	}
	c.Received++
}

// View is the operator's focus and filter state. Empty strings mean "none".
type View struct {
	SelectedTopic     string `json:"selected_topic"`
	SelectedMessageID string `json:"selected_message_id"`
	SearchText        string `json:"search_text"`
	TopicFilter       string `json:"topic_filter"`
}

// entry is one ring slot. A dead entry has been dropped by the per-topic
// ceiling and is skipped by every read.
type entry struct {
	msg  message.Message
	dead bool
}

// MessageStore is the bounded log of traffic plus the topic index and
// counters derived from it.
//
// The log is a ring of at most capacity slots; appending to a full ring
// evicts the oldest slot. The per-topic ceiling is enforced by marking the
// topic's oldest message dead in place. Dead slots still occupy the ring
// until they are evicted or compacted away (compaction runs once they
// exceed a quarter of the occupied slots), so the ceiling is exact per
// topic while the global bound counts slots, not live messages.
//
// All public methods are thread-safe.
type MessageStore struct {
	capacity int
	perTopic int

	mu       sync.RWMutex
	ring     []entry
	start    int
	size     int
	dead     int
	firstSeq uint64
	ids      map[string]uint64
	byTopic  map[string][]uint64
	totals   Counters
	perConn  map[string]*Counters
	index    *topicIndex
	view     View
	filterRe *regexp.Regexp
}

// Option configures a MessageStore.
type Option func(*MessageStore)

// WithCapacity sets the log capacity.
func WithCapacity(n int) Option {
	return func(s *MessageStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPerTopicLimit sets the per-topic retention ceiling. Zero disables it.
func WithPerTopicLimit(n int) Option {
	return func(s *MessageStore) {
		if n >= 0 {
			s.perTopic = n
		}
	}
}

// NewMessageStore creates an empty store.
func NewMessageStore(opts ...Option) *MessageStore {
	s := &MessageStore{
		capacity: DefaultMaxMessages,
		perTopic: DefaultMaxPerTopic,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// AddMessage appends msg, evicting the oldest slot when the log is full,
// and updates counters and the topic index.
func (s *MessageStore) AddMessage(msg message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == s.capacity {
		s.evictOldestLocked()
	}

	seq := s.firstSeq + uint64(s.size)
	if s.size < len(s.ring) {
		s.ring[s.physLocked(s.size)] = entry{msg: msg}
	} else {
		s.ring = append(s.ring, entry{msg: msg})
	}
	s.size++
	s.ids[msg.ID] = seq

	if s.perTopic > 0 {
		q := append(s.byTopic[msg.Topic], seq)
		if len(q) > s.perTopic {
			s.killLocked(q[0])
			q = q[1:]
		}
		s.byTopic[msg.Topic] = q
	}

	s.totals.count(msg.Direction)
	c, ok := s.perConn[msg.ConnectionID]
	if !ok {
		c = &Counters{}
		s.perConn[msg.ConnectionID] = c
	}
	c.count(msg.Direction)

	s.index.add(msg)

	if s.dead > s.size/4 {
		s.compactLocked()
	}
}

// SelectTopic focuses topic; "" clears the selection.
func (s *MessageStore) SelectTopic(topic string) {
	s.mu.Lock()
	s.view.SelectedTopic = topic
	s.mu.Unlock()
}

// SelectMessage focuses the message with id; "" clears the selection.
func (s *MessageStore) SelectMessage(id string) {
	s.mu.Lock()
	s.view.SelectedMessageID = id
	s.mu.Unlock()
}

// SetSearchText sets the payload/topic search text.
func (s *MessageStore) SetSearchText(text string) {
	s.mu.Lock()
	s.view.SearchText = text
	s.mu.Unlock()
}

// SetTopicFilter sets the topic filter pattern. A pattern that does not
// compile is matched as a plain substring.
func (s *MessageStore) SetTopicFilter(pattern string) {
	s.mu.Lock()
	s.setTopicFilterLocked(pattern)
	s.mu.Unlock()
}

// SetView replaces the whole view state.
func (s *MessageStore) SetView(v View) {
	s.mu.Lock()
	s.view = v
	s.setTopicFilterLocked(v.TopicFilter)
	s.mu.Unlock()
}

// ClearAll empties the log, the topic index and all counters in one step.
// The view state is kept.
func (s *MessageStore) ClearAll() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// ToggleExpand flips the expansion flag of the node at path. It reports
// false, and changes nothing, if path does not resolve to a node.
func (s *MessageStore) ToggleExpand(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.toggle(path)
}

// Len returns the number of retained messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size - s.dead
}

// Messages returns every retained message, oldest first.
func (s *MessageStore) Messages() []message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]message.Message, 0, s.size-s.dead)
	for k := 0; k < s.size; k++ {
		if e := s.ring[s.physLocked(k)]; !e.dead {
			out = append(out, e.msg)
		}
	}
	return out
}

// Message looks up a retained message by id.
func (s *MessageStore) Message(id string) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageLocked(id)
}

// SelectedMessage resolves the selected message id against the log.
func (s *MessageStore) SelectedMessage() (message.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view.SelectedMessageID == "" {
		return message.Message{}, false
	}
	msg, err := s.messageLocked(s.view.SelectedMessageID)
	return msg, err == nil
}

// Filtered applies the view's selected topic, topic filter and search text
// and returns the matches most recent first. limit <= 0 means no limit.
func (s *MessageStore) Filtered(limit int) []message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := s.matcherLocked()
	out := make([]message.Message, 0)
	for k := s.size - 1; k >= 0; k-- {
		e := s.ring[s.physLocked(k)]
		if e.dead || !match(e.msg) {
			continue
		}
		out = append(out, e.msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// View returns the current view state.
func (s *MessageStore) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Counters returns the totals across all connections.
func (s *MessageStore) Counters() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

// ConnectionCounters returns the totals for one connection id.
func (s *MessageStore) ConnectionCounters(id string) Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.perConn[id]; ok {
		return *c
	}
	return Counters{}
}

// Tree returns a snapshot of the top-level topic nodes and their subtrees.
func (s *MessageStore) Tree() []TopicNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.snapshot(0).Children
}

// Node returns a snapshot of the subtree at path.
func (s *MessageStore) Node(path string) (TopicNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index.find(path)
	if !ok {
		return TopicNode{}, ErrTopicNotFound
	}
	return s.index.snapshot(i), nil
}

// TopicCount returns how many distinct topics have carried a message.
func (s *MessageStore) TopicCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.topics
}

// =============================================================================
// Internal helpers (mu must be held)
// =============================================================================

func (s *MessageStore) resetLocked() {
	s.ring = nil
	s.start = 0
	s.size = 0
	s.dead = 0
	s.firstSeq = 0
	s.ids = make(map[string]uint64)
	s.byTopic = make(map[string][]uint64)
	s.totals = Counters{}
	s.perConn = make(map[string]*Counters)
	s.index = newTopicIndex()
}

func (s *MessageStore) setTopicFilterLocked(pattern string) {
	s.view.TopicFilter = pattern
	s.filterRe = nil
	if pattern == "" {
		return
	}
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		s.filterRe = re
	}
}

// physLocked maps a logical offset from the oldest slot to a ring index.
func (s *MessageStore) physLocked(k int) int {
	return (s.start + k) % len(s.ring)
}

func (s *MessageStore) messageLocked(id string) (message.Message, error) {
	seq, ok := s.ids[id]
	if !ok {
		return message.Message{}, ErrMessageNotFound
	}
	return s.ring[s.physLocked(int(seq-s.firstSeq))].msg, nil
}

// evictOldestLocked drops the oldest slot.
func (s *MessageStore) evictOldestLocked() {
	e := s.ring[s.start]
	if e.dead {
		s.dead--
	} else {
		delete(s.ids, e.msg.ID)
		if s.perTopic > 0 {
			if q := s.byTopic[e.msg.Topic]; len(q) > 1 {
				s.byTopic[e.msg.Topic] = q[1:]
			} else {
				delete(s.byTopic, e.msg.Topic)
			}
		}
	}

	s.ring[s.start] = entry{}
	s.start = (s.start + 1) % len(s.ring)
	s.size--
	s.firstSeq++
}

// killLocked marks the message at seq dead and releases its payload.
func (s *MessageStore) killLocked(seq uint64) {
	i := s.physLocked(int(seq - s.firstSeq))
	delete(s.ids, s.ring[i].msg.ID)
	s.ring[i] = entry{dead: true}
	s.dead++
}

// compactLocked squeezes dead slots out of the ring in place and rebuilds
// the seq lookups.
func (s *MessageStore) compactLocked() {
	w := 0
	for r := 0; r < s.size; r++ {
		e := s.ring[s.physLocked(r)]
		if e.dead {
			continue
		}
		s.ring[s.physLocked(w)] = e
		w++
	}
	for k := w; k < s.size; k++ {
		s.ring[s.physLocked(k)] = entry{}
	}
	s.size = w
	s.dead = 0

	s.ids = make(map[string]uint64, w)
	s.byTopic = make(map[string][]uint64)
	for k := 0; k < w; k++ {
		msg := s.ring[s.physLocked(k)].msg
		seq := s.firstSeq + uint64(k)
		s.ids[msg.ID] = seq
		if s.perTopic > 0 {
			s.byTopic[msg.Topic] = append(s.byTopic[msg.Topic], seq)
		}
	}
}

// matcherLocked builds the read-time predicate for the current view.
func (s *MessageStore) matcherLocked() func(message.Message) bool {
	selected := s.view.SelectedTopic
	filter := strings.ToLower(s.view.TopicFilter)
	re := s.filterRe
	search := strings.ToLower(s.view.SearchText)

	return func(m message.Message) bool {
		if selected != "" && m.Topic != selected {
			return false
		}
		if filter != "" {
			if re != nil {
				if !re.MatchString(m.Topic) {
					return false
				}
			} else if !strings.Contains(strings.ToLower(m.Topic), filter) {
				return false
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Topic), search) &&
			!strings.Contains(strings.ToLower(m.Payload), search) {
			return false
		}
		return true
	}
}
