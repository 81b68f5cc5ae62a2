package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/store"
)

// defaultMessageLimit caps GET /messages when no limit is given.
const defaultMessageLimit = 500

// handleListMessages returns the filtered message log, most recent first.
//
// The current view (selected topic, topic filter, search text) applies.
//
// Query parameters:
//   - limit: maximum number of messages (default 500, 0 for all)
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs := s.ws.Messages().Filtered(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
		"total":    s.ws.Messages().Len(),
	})
}

// handleGetMessage returns one retained message by id.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.ws.Messages().Message(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleClearMessages resets the message log, topic tree and counters.
func (s *Server) handleClearMessages(w http.ResponseWriter, _ *http.Request) {
	s.ws.Messages().ClearAll()
	s.logger.Info("message log cleared")
	w.WriteHeader(http.StatusNoContent)
}

// ViewResponse is the view state plus the selected message, if it is
// still retained.
type ViewResponse struct {
	store.View
	SelectedMessage *message.Message `json:"selected_message,omitempty"`
}

func (s *Server) viewResponse() ViewResponse {
	resp := ViewResponse{View: s.ws.Messages().View()}
	if msg, ok := s.ws.Messages().SelectedMessage(); ok {
		resp.SelectedMessage = &msg
	}
	return resp
}

// handleGetView returns the current selection, search text and topic filter.
func (s *Server) handleGetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.viewResponse())
}

// handleSetView replaces the view state. Empty fields clear the
// corresponding selection or filter.
func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var v store.View
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.ws.Messages().SetView(v)
	writeJSON(w, http.StatusOK, s.viewResponse())
}

// handleTopicTree returns a snapshot of the whole topic tree.
func (s *Server) handleTopicTree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"topics": s.ws.Messages().Tree(),
		"count":  s.ws.Messages().TopicCount(),
	})
}

// handleTopicNode returns the subtree at the path query parameter.
func (s *Server) handleTopicNode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path query parameter is required")
		return
	}

	node, err := s.ws.Messages().Node(path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleToggleTopic flips the expansion flag of the node at path and
// returns the node.
func (s *Server) handleToggleTopic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path query parameter is required")
		return
	}

	if !s.ws.Messages().ToggleExpand(path) {
		writeDomainError(w, fmt.Errorf("%w: %s", store.ErrTopicNotFound, path))
		return
	}
	node, err := s.ws.Messages().Node(path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "expanded": node.Expanded})
}
