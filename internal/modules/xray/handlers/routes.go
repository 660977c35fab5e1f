package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all x-ray routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/xray", func(r chi.Router) {
		r.Post("/runs", h.HandleCreateRun)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetRun)
			r.Delete("/", h.HandleDeleteRun)
			r.Get("/horizons", h.HandleGetHorizons)
		})
	})
}
