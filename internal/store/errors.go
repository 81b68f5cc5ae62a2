package store

import "errors"

// Domain-specific errors for store lookups.
var (
	// ErrMessageNotFound is returned when an id is not in the retained log.
	ErrMessageNotFound = errors.New("store: message not found")

	// ErrTopicNotFound is returned when a path does not resolve to a topic node.
	ErrTopicNotFound = errors.New("store: topic not found")
)
