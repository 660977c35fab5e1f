package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all price history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleListTickers)
		r.Get("/{ticker}", h.HandleGetPrices)
		r.Put("/{ticker}", h.HandleUpsertPrices)
		r.Delete("/{ticker}", h.HandleDeleteTicker)
	})
}
