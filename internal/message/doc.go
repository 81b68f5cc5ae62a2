// Package message defines the immutable traffic record shared by every
// mqttscope component, plus the pure helpers that classify and validate
// payloads and topics.
//
// # Records
//
// A Message is created exactly once: by a session for inbound traffic, or by
// the publish caller for outbound traffic. After construction it is never
// mutated; stores and projections hold it by value.
//
// # Formats
//
// DetectFormat classifies a payload for display. Detection is advisory and
// never rewrites the payload. ValidatePayload and EncodePayload are used on
// the publish path, where the operator declares a format explicitly:
//
//	wire, err := message.EncodePayload(`{ "on": true }`, message.FormatJSON)
//	// wire == `{"on":true}`
//
// # Topics
//
// ValidateTopicName checks publish topics (no wildcards). ValidateTopicFilter
// checks subscribe filters ('+' and '#' must occupy a whole level, '#' last).
package message
