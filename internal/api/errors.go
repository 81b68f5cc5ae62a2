package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/session"
	"github.com/nerrad567/mqttscope/internal/store"
	"github.com/nerrad567/mqttscope/internal/workspace"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeNotConnected   = "not_connected"
	ErrCodeBroker         = "broker_error"
	ErrCodeTimeout        = "timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps workspace, session and store errors to responses.
// Anything unrecognised is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeNotFound(w, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusConflict, ErrCodeNotConnected, err.Error())
	case errors.Is(err, session.ErrConnectAborted):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, session.ErrConnectTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, session.ErrConnectionFailed),
		errors.Is(err, session.ErrSubscribeFailed),
		errors.Is(err, session.ErrUnsubscribeFailed),
		errors.Is(err, session.ErrPublishFailed):
		writeError(w, http.StatusBadGateway, ErrCodeBroker, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, workspace.ErrProfileNotFound) ||
		errors.Is(err, session.ErrClientNotFound) ||
		errors.Is(err, store.ErrMessageNotFound) ||
		errors.Is(err, store.ErrTopicNotFound)
}

// isValidationError checks if an error is a client input problem.
func isValidationError(err error) bool {
	return errors.Is(err, session.ErrInvalidProfile) ||
		errors.Is(err, session.ErrInvalidTopic) ||
		errors.Is(err, session.ErrInvalidQoS) ||
		errors.Is(err, session.ErrPayloadTooLarge) ||
		errors.Is(err, message.ErrInvalidPayload) ||
		errors.Is(err, message.ErrUnknownFormat) ||
		errors.Is(err, message.ErrInvalidQoS) ||
		errors.Is(err, message.ErrInvalidTopicName) ||
		errors.Is(err, message.ErrInvalidTopicFilter)
}
