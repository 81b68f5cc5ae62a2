package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a rejected subscription.
const subackFailure = 0x80

// Subscribe requests a subscription for topic at qos.
//
// Messages on the subscription are delivered through Events.OnMessage.
// A SUBACK with the failure return code is reported as ErrSubscribeFailed.
func (t *PahoTransport) Subscribe(ctx context.Context, topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Subscribe(topic, qos, nil)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[topic]; found && code == subackFailure {
			return fmt.Errorf("%w: broker rejected %q", ErrSubscribeFailed, topic)
		}
	}

	return nil
}

// Unsubscribe removes a subscription and waits for UNSUBACK.
//
// Any messages in flight may still be delivered.
func (t *PahoTransport) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Unsubscribe(topic)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}
