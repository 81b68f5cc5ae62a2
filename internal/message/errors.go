package message

import "errors"

// Domain-specific errors for message construction and validation.
var (
	// ErrInvalidPayload is returned when a payload does not match its declared format.
	ErrInvalidPayload = errors.New("message: payload does not match declared format")

	// ErrUnknownFormat is returned for a format name outside the known set.
	ErrUnknownFormat = errors.New("message: unknown payload format")

	// ErrInvalidTopicName is returned for empty publish topics or topics containing wildcards.
	ErrInvalidTopicName = errors.New("message: invalid topic name")

	// ErrInvalidTopicFilter is returned for malformed subscription filters.
	ErrInvalidTopicFilter = errors.New("message: invalid topic filter")

	// ErrInvalidQoS is returned for QoS values outside 0..2.
	ErrInvalidQoS = errors.New("message: invalid QoS level (must be 0, 1, or 2)")
)
