package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all job routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/{jobID}/status", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetStatus(w, r, chi.URLParam(r, "jobID"))
		})
		r.Post("/{jobID}/cancel", func(w http.ResponseWriter, r *http.Request) {
			h.HandleCancel(w, r, chi.URLParam(r, "jobID"))
		})
	})
}
