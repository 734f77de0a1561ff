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
		r.Get("/metrics", s.handleMetrics)

		r.Route("/things", func(r chi.Router) {
			r.Get("/", s.handleListThings)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetThing)

				r.Get("/setup", s.handleGetSetup)
				r.Put("/setup", s.handlePutSetup)

				// Devices in the field post with a trailing slash.
				r.Get("/sensors", s.handleGetSensors)
				r.Post("/sensors", s.handlePostSensors)
				r.Post("/sensors/", s.handlePostSensors)
				r.Put("/sensors/button", s.handlePutButton)

				r.Get("/actuators/led", s.handleGetLED)
				r.Put("/actuators/led", s.handlePutLED)
				r.Get("/actuators/led/ws", s.handleLEDWebSocket)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
