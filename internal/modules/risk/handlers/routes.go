package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)   // Full cross-component status
		r.Get("/summary", h.HandleGetSummary) // Condensed view
		r.Get("/drawdown", h.HandleGetDrawdown)
		r.Route("/var", func(r chi.Router) {
			r.Get("/latest", h.HandleGetLatestVaR)
			r.Get("/history", h.HandleGetVaRHistory)
			r.Get("/breaches", h.HandleGetBreaches)
			r.Post("/breaches/{id}/acknowledge", h.HandleAcknowledgeBreach)
		})
	})
}
