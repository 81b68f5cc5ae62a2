package session

import (
	"time"

	"github.com/nerrad567/mqttscope/internal/message"
)

// EventKind discriminates Event payloads.
type EventKind string

const (
	EventState   EventKind = "state"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
	EventLog     EventKind = "log"
)

// LogLevel is the severity of a per-connection log line.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogLine is one timestamped, leveled line of a connection's activity log.
type LogLine struct {
	Time  time.Time `json:"time"`
	Level LogLevel  `json:"level"`
	Text  string    `json:"text"`
}

// Event is emitted by a Session. Exactly one of State, Message, Err or Log
// is meaningful, selected by Kind.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Time         time.Time
	State        ConnectionState
	Message      message.Message
	Err          error
	Log          LogLine
}

// EventHandler consumes the merged event stream of a Manager.
type EventHandler interface {
	HandleEvent(ev Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ev Event)

// HandleEvent calls f(ev).
func (f EventHandlerFunc) HandleEvent(ev Event) {
	f(ev)
}
