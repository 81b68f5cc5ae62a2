package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Connection endpoints
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", s.handleListConnections)
			r.Post("/", s.handleConnect)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetConnection)
				r.Delete("/", s.handleDisconnect)
				r.Post("/connect", s.handleReconnect)
				r.Delete("/profile", s.handleRemoveConnection)
				r.Get("/logs", s.handleGetLogs)
				r.Delete("/logs", s.handleClearLogs)
				r.Post("/subscriptions", s.handleSubscribe)
				r.Delete("/subscriptions", s.handleUnsubscribe)
				r.Post("/publish", s.handlePublish)
			})
		})

		// Message log endpoints
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Delete("/", s.handleClearMessages)
			r.Get("/{id}", s.handleGetMessage)
		})

		// View state (selection, search, topic filter)
		r.Get("/view", s.handleGetView)
		r.Put("/view", s.handleSetView)

		// Topic tree endpoints
		r.Route("/topics", func(r chi.Router) {
			r.Get("/", s.handleTopicTree)
			r.Get("/node", s.handleTopicNode)
			r.Post("/toggle", s.handleToggleTopic)
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status. A failing metrics backend
// reports degraded with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	code := http.StatusOK

	if s.metrics != nil {
		if err := s.metrics.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("metrics health check failed", "error", err)
			resp["status"] = "degraded"
			resp["metrics"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp["metrics"] = "ok"
		}
	}

	writeJSON(w, code, resp)
}
