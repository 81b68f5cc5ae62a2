package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqttscope/internal/message"
	"github.com/nerrad567/mqttscope/internal/session"
	"github.com/nerrad567/mqttscope/internal/workspace"
)

// SubscribeRequest is the body of POST /connections/{id}/subscriptions.
type SubscribeRequest struct {
	Topic string `json:"topic"`
	QoS   int    `json:"qos"`
}

// redactProfile blanks the broker password so it is accepted on connect
// but never echoed back.
func redactProfile(info workspace.ConnectionInfo) workspace.ConnectionInfo {
	info.Profile.Password = ""
	return info
}

// handleListConnections returns every saved connection with its state.
func (s *Server) handleListConnections(w http.ResponseWriter, _ *http.Request) {
	conns := s.ws.Connections()
	for i := range conns {
		conns[i] = redactProfile(conns[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns, "count": len(conns)})
}

// handleConnect saves the profile in the body and connects it.
//
// Fields missing from the body take the defaults of a new profile. The
// response is 201 with the connection once it is connected; a profile that
// was saved but failed to connect is still reported in the error.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	p := session.DefaultProfile()
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	saved, err := s.ws.ConnectProfile(r.Context(), p)
	if err != nil {
		s.logger.Warn("connect failed", "connection_id", saved.ID, "error", err)
		writeDomainError(w, err)
		return
	}

	info, err := s.ws.Connection(saved.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, redactProfile(info))
}

// handleGetConnection returns the state and subscriptions of one connection.
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	info, err := s.ws.Connection(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactProfile(info))
}

// handleDisconnect gracefully closes a connection. The profile and its
// subscription set are kept.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ws.Disconnect(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "state": session.StateDisconnected})
}

// handleReconnect connects a saved connection again, restoring its
// subscriptions.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ws.Reconnect(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	info, err := s.ws.Connection(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactProfile(info))
}

// handleRemoveConnection disconnects and forgets a connection.
func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.RemoveConnection(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetLogs returns the activity log of a connection, oldest first.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.ws.Logs(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

// handleClearLogs empties the activity log of a connection.
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.ClearLogs(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubscribe adds a topic filter to a connection's subscription set.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	qos, err := message.ParseQoS(req.QoS)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.ws.Subscribe(r.Context(), id, req.Topic, qos); err != nil {
		writeDomainError(w, err)
		return
	}

	subs, err := s.ws.Subscriptions(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

// handleUnsubscribe removes a topic filter given by the topic query parameter.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeBadRequest(w, "topic query parameter is required")
		return
	}

	if err := s.ws.Unsubscribe(r.Context(), id, topic); err != nil {
		writeDomainError(w, err)
		return
	}

	subs, err := s.ws.Subscriptions(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

// handlePublish validates and sends an operator publish.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req workspace.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	msg, err := s.ws.Publish(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
