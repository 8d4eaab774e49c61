// Package handlers contains HTTP handlers for the monitoring module:
// recent events, alert lifecycle actions and the queryable error store.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring"
)

const defaultEventsLimit = 50

// Handler handles HTTP requests for monitoring operations
type Handler struct {
	window  *monitoring.EventWindow
	tracker *monitoring.AlertTracker
	alerts  *monitoring.AlertRepository
	errors  *monitoring.ErrorRepository
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new monitoring handler
func NewHandler(
	window *monitoring.EventWindow,
	tracker *monitoring.AlertTracker,
	alerts *monitoring.AlertRepository,
	errorStore *monitoring.ErrorRepository,
	bus *events.Bus,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		window:  window,
		tracker: tracker,
		alerts:  alerts,
		errors:  errorStore,
		bus:     bus,
		log:     log.With().Str("handler", "monitoring").Logger(),
	}
}

// HandleRecentEvents returns the tail of the monitoring event window,
// newest first.
// GET /api/monitoring/events?limit=50
func (h *Handler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultEventsLimit)
	recent := h.window.Recent(limit)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": recent,
		"count":  len(recent),
	})
}

// HandleListAlerts returns alerts. active=true serves the live tracker
// view; otherwise the persisted history, newest first.
// GET /api/monitoring/alerts?active=true&limit=100
func (h *Handler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		active := h.tracker.Active()
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"alerts": active,
			"count":  len(active),
		})
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 0)
	alerts, err := h.alerts.List(false, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list alerts")
		h.writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// HandleAcknowledgeAlert marks an alert as seen by an operator.
// POST /api/monitoring/alerts/{alertID}/acknowledge
func (h *Handler) HandleAcknowledgeAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	changed, err := h.tracker.Acknowledge(alertID)
	if err != nil {
		if errors.Is(err, monitoring.ErrUnknownAlert) {
			h.writeError(w, http.StatusNotFound, "unknown alert")
			return
		}
		h.log.Error().Err(err).Str("alert_id", alertID).Msg("Failed to acknowledge alert")
		h.writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}

	if changed {
		h.bus.Emit(events.AlertAcknowledged, "monitoring", map[string]interface{}{
			"alert_id": alertID,
		})
	}

	alert, _ := h.tracker.Get(alertID)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alert":   alert,
	})
}

// HandleResolveAlert resolves an alert from the admin surface. Unknown
// ids and repeat resolves succeed without effect, matching the worker
// path.
// POST /api/monitoring/alerts/{alertID}/resolve
func (h *Handler) HandleResolveAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	changed, err := h.tracker.Resolve(alertID, time.Now())
	if err != nil {
		h.log.Error().Err(err).Str("alert_id", alertID).Msg("Failed to resolve alert")
		h.writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}

	if changed {
		h.bus.Emit(events.AlertResolved, "monitoring", map[string]interface{}{
			"alert_id": alertID,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"resolved": changed,
	})
}

// HandleListErrors queries the persisted error store.
// GET /api/errors?severity=error&category=storage&component=&limit=100
func (h *Handler) HandleListErrors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := monitoring.ErrorFilter{
		Component: query.Get("component"),
		Limit:     parseLimit(query.Get("limit"), 0),
	}

	if raw := query.Get("severity"); raw != "" {
		severity, err := events.ParseSeverity(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Severity = string(severity)
	}
	if raw := query.Get("category"); raw != "" {
		category, err := events.ParseCategory(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = string(category)
	}

	records, err := h.errors.List(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list errors")
		h.writeError(w, http.StatusInternalServerError, "failed to list errors")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": records,
		"count":  len(records),
	})
}

// HandleErrorStats returns aggregate counts over the error store.
// GET /api/errors/stats
func (h *Handler) HandleErrorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.errors.Stats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute error stats")
		h.writeError(w, http.StatusInternalServerError, "failed to compute error stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
