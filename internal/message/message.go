package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction records which way a message travelled relative to this process.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// QoS is an MQTT quality-of-service level.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// Valid reports whether q is 0, 1 or 2.
func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// ParseQoS converts an integer (as decoded from JSON or YAML) to a QoS.
func ParseQoS(v int) (QoS, error) {
	if v < 0 || v > int(ExactlyOnce) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, v)
	}
	return QoS(v), nil
}

// Message is a single inbound or outbound publish.
//
// Payload holds the bytes materialised as text. PayloadBytes is the length
// of the original byte slice, which may differ from len(Payload) only when
// the source bytes were not valid UTF-8 and are later re-encoded for display.
type Message struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Topic        string    `json:"topic"`
	Payload      string    `json:"payload"`
	PayloadBytes int       `json:"payload_bytes"`
	Format       Format    `json:"format"`
	QoS          QoS       `json:"qos"`
	Retain       bool      `json:"retain"`
	Duplicate    bool      `json:"duplicate"`
	Timestamp    time.Time `json:"timestamp"`
	Direction    Direction `json:"direction"`
}

// NewInbound builds the record for a message delivered by the broker.
// The format is detected from the payload.
func NewInbound(connectionID, topic string, payload []byte, qos QoS, retain, duplicate bool) Message {
	text := string(payload)
	return Message{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Topic:        topic,
		Payload:      text,
		PayloadBytes: len(payload),
		Format:       DetectFormat(text),
		QoS:          qos,
		Retain:       retain,
		Duplicate:    duplicate,
		Timestamp:    time.Now(),
		Direction:    Inbound,
	}
}

// NewOutbound builds the record for an operator-issued publish. A declared
// format is recorded verbatim; an empty format falls back to detection.
func NewOutbound(connectionID, topic, payload string, format Format, qos QoS, retain bool) Message {
	if format == "" {
		format = DetectFormat(payload)
	}
	return Message{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Topic:        topic,
		Payload:      payload,
		PayloadBytes: len(payload),
		Format:       format,
		QoS:          qos,
		Retain:       retain,
		Timestamp:    time.Now(),
		Direction:    Outbound,
	}
}
