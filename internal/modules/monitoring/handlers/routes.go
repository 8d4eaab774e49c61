package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers monitoring and error-store routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/monitoring", func(r chi.Router) {
		r.Get("/events", h.HandleRecentEvents)
		r.Get("/alerts", h.HandleListAlerts)
		r.Post("/alerts/{alertID}/acknowledge", func(w http.ResponseWriter, r *http.Request) {
			h.HandleAcknowledgeAlert(w, r, chi.URLParam(r, "alertID"))
		})
		r.Post("/alerts/{alertID}/resolve", func(w http.ResponseWriter, r *http.Request) {
			h.HandleResolveAlert(w, r, chi.URLParam(r, "alertID"))
		})
	})

	r.Route("/errors", func(r chi.Router) {
		r.Get("/", h.HandleListErrors)
		r.Get("/stats", h.HandleErrorStats)
	})
}
