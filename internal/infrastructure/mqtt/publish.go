package mqtt

import (
	"context"
	"fmt"
)

// MaxPayloadSize is the largest payload MQTT can carry (remaining length limit).
const MaxPayloadSize = 268435455

// Publish sends a message and waits for the broker acknowledgement
// appropriate to qos (none for QoS 0).
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (t *PahoTransport) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), MaxPayloadSize)
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Publish(topic, qos, retain, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
