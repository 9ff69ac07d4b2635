package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Post("/send", s.sendMessage)

		// Administrative endpoints, gated by the shared secret.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/pairing", s.getPairing)
			r.Post("/reconnect", s.postReconnect)
			r.Get("/events", s.streamEvents)
		})
	})
}
