package store

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mqttscope/internal/session"
)

// DefaultMaxLogLines bounds each connection's activity log.
const DefaultMaxLogLines = 1000

// ConnectionStatus is the observed state of one connection.
type ConnectionStatus struct {
	ID        string                  `json:"id"`
	State     session.ConnectionState `json:"state"`
	Since     time.Time               `json:"since"`
	LastError string                  `json:"last_error,omitempty"`
	ErrorAt   time.Time               `json:"error_at,omitempty"`
}

type connEntry struct {
	status ConnectionStatus
	logs   []session.LogLine
}

// ConnectionStore tracks state and a bounded activity log per connection id.
//
// All public methods are thread-safe.
type ConnectionStore struct {
	maxLogLines int

	mu    sync.RWMutex
	conns map[string]*connEntry
}

// NewConnectionStore creates a store keeping at most maxLogLines per
// connection (DefaultMaxLogLines if maxLogLines <= 0).
func NewConnectionStore(maxLogLines int) *ConnectionStore {
	if maxLogLines <= 0 {
		maxLogLines = DefaultMaxLogLines
	}
	return &ConnectionStore{
		maxLogLines: maxLogLines,
		conns:       make(map[string]*connEntry),
	}
}

// SetState records a state change for id.
func (c *ConnectionStore) SetState(id string, state session.ConnectionState, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(id)
	e.status.State = state
	e.status.Since = at
}

// SetError records the most recent error for id.
func (c *ConnectionStore) SetError(id string, err error, at time.Time) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(id)
	e.status.LastError = err.Error()
	e.status.ErrorAt = at
}

// AppendLog adds a line to id's activity log, dropping the oldest lines
// beyond the bound.
func (c *ConnectionStore) AppendLog(id string, line session.LogLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(id)
	e.logs = append(e.logs, line)
	if over := len(e.logs) - c.maxLogLines; over > 0 {
		e.logs = append(e.logs[:0], e.logs[over:]...)
	}
}

// Status returns the recorded status for id.
func (c *ConnectionStore) Status(id string) (ConnectionStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[id]
	if !ok {
		return ConnectionStatus{}, false
	}
	return e.status, true
}

// State returns id's state, or disconnected if nothing was recorded.
func (c *ConnectionStore) State(id string) session.ConnectionState {
	if st, ok := c.Status(id); ok {
		return st.State
	}
	return session.StateDisconnected
}

// Statuses returns every recorded status sorted by id.
func (c *ConnectionStore) Statuses() []ConnectionStatus {
	c.mu.RLock()
	out := make([]ConnectionStatus, 0, len(c.conns))
	for _, e := range c.conns {
		out = append(out, e.status)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Logs returns a copy of id's activity log, oldest first.
func (c *ConnectionStore) Logs(id string) []session.LogLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[id]
	if !ok {
		return []session.LogLine{}
	}
	return append([]session.LogLine(nil), e.logs...)
}

// ClearLogs empties id's activity log and keeps its status.
func (c *ConnectionStore) ClearLogs(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.conns[id]; ok {
		e.logs = nil
	}
}

// Remove forgets id entirely.
func (c *ConnectionStore) Remove(id string) {
	c.mu.Lock()
	delete(c.conns, id)
	c.mu.Unlock()
}

func (c *ConnectionStore) entryLocked(id string) *connEntry {
	e, ok := c.conns[id]
	if !ok {
		e = &connEntry{status: ConnectionStatus{ID: id, State: session.StateDisconnected}}
		c.conns[id] = e
	}
	return e
}
