// Package handlers provides HTTP handlers for universe listings.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe"
	"github.com/rs/zerolog"
)

// Handler handles universe HTTP requests
type Handler struct {
	service *universe.Service
	log     zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(service *universe.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// HandleList handles GET /api/universes
// Lists available universes with member counts, optionally filtered by
// ?type=index,fund
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var types []string
	if raw := r.URL.Query().Get("type"); raw != "" {
		types = splitCSV(raw)
	}

	records, err := h.service.ListAvailable(r.Context(), types...)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list universes")
		http.Error(w, "Universe index unavailable", http.StatusServiceUnavailable)
		return
	}

	response := map[string]interface{}{
		"universes":   records,
		"total_count": len(records),
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRefreshCache handles POST /api/universes/cache/refresh
// Drops the resolver cache so the next lookup rereads the index.
func (h *Handler) HandleRefreshCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Universe cache invalidated",
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func splitCSV(raw string) []string {
	parts := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
