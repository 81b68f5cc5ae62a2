package workspace

import "errors"

// Domain-specific errors for workspace operations.
var (
	// ErrProfileNotFound is returned when no profile is saved under the given id.
	ErrProfileNotFound = errors.New("workspace: connection profile not found")

	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("workspace: closed")
)
