package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/version"
)

// handleHealth reports liveness plus the state of the broker and both
// databases. The response is always 200 so a degraded dependency does
// not take the operator API itself down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string)

	if err := s.container.Broker.Ping(ctx); err != nil {
		checks["broker"] = "unreachable"
		status = "degraded"
	} else {
		checks["broker"] = "ok"
	}

	for name, db := range s.container.Databases() {
		if err := db.QuickCheck(ctx); err != nil {
			checks[name+"_db"] = "error"
			status = "degraded"
		} else {
			checks[name+"_db"] = "ok"
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": version.Version,
		"service": "tickstock-core",
		"checks":  checks,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
