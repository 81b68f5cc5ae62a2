package session

import "errors"

// Domain-specific errors for session operations.
var (
	// ErrNotConnected is returned for subscribe/unsubscribe/publish outside the connected state.
	ErrNotConnected = errors.New("session: not connected")

	// ErrConnectionFailed is returned when a connect attempt fails.
	ErrConnectionFailed = errors.New("session: connection failed")

	// ErrConnectTimeout is returned when a connect attempt exceeds the session's deadline.
	ErrConnectTimeout = errors.New("session: connection timeout")

	// ErrConnectAborted is returned to a Connect caller whose attempt was
	// superseded by Disconnect, Close or a newer Connect.
	ErrConnectAborted = errors.New("session: connect aborted")

	// ErrSubscribeFailed is returned when the broker or transport rejects a subscription.
	ErrSubscribeFailed = errors.New("session: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe is not confirmed.
	ErrUnsubscribeFailed = errors.New("session: unsubscribe failed")

	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrInvalidTopic is returned for malformed topics or topic filters.
	ErrInvalidTopic = errors.New("session: invalid topic")

	// ErrInvalidQoS is returned for QoS values outside 0..2.
	ErrInvalidQoS = errors.New("session: invalid QoS level (must be 0, 1, or 2)")

	// ErrPayloadTooLarge is returned for payloads beyond the MQTT size limit.
	ErrPayloadTooLarge = errors.New("session: payload too large")

	// ErrInvalidProfile is returned when a ConnectionProfile fails validation.
	ErrInvalidProfile = errors.New("session: invalid connection profile")

	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("session: closed")

	// ErrClientNotFound is returned by Manager operations on an unknown connection id.
	ErrClientNotFound = errors.New("client not found")

	// ErrManagerClosed is returned by Manager operations after Close.
	ErrManagerClosed = errors.New("session: manager closed")
)
