// Package handlers provides HTTP handlers for job submission and tracking.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/jobs"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe"
	"github.com/rs/zerolog"
)

// maxSubmitBody bounds how much request body a submission may carry.
const maxSubmitBody = 1 << 20

// Handler handles job HTTP requests
type Handler struct {
	service *jobs.Service
	log     zerolog.Logger
}

// NewHandler creates a new jobs handler
func NewHandler(service *jobs.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "jobs").Logger(),
	}
}

// submitEnvelope is the part of the submission body the handler itself
// needs; the type-specific fields stay raw and are decoded by the params
// union.
type submitEnvelope struct {
	JobType     jobs.JobType `json:"job_type"`
	RequestedBy string       `json:"requested_by"`
}

// HandleSubmit handles POST /api/jobs
// Accepts a flattened submission body, e.g.
//
//	{"job_type":"historical_load","universe_key":"sp500:nasdaq100","years":2,"requested_by":"ops"}
//
// and answers 202 with the generated job id.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var envelope submitEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if envelope.JobType == "" {
		h.writeError(w, http.StatusBadRequest, "job_type is required")
		return
	}
	requestedBy := envelope.RequestedBy
	if requestedBy == "" {
		requestedBy = "api"
	}

	jobID, err := h.service.Submit(r.Context(), envelope.JobType, body, requestedBy)
	if err != nil {
		status, message := classifySubmitError(err)
		if status == http.StatusServiceUnavailable {
			h.log.Error().Err(err).Str("job_type", string(envelope.JobType)).Msg("Job submission failed")
		} else {
			h.log.Warn().Err(err).Str("job_type", string(envelope.JobType)).Msg("Job submission rejected")
		}
		h.writeError(w, status, message)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"job_id":  jobID,
	})
}

// HandleGetStatus handles GET /api/jobs/{jobID}/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := uuid.Parse(jobID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	status, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found or expired")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Status lookup failed")
		h.writeError(w, http.StatusServiceUnavailable, "status store unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"status":          status.Status,
		"progress":        status.Progress,
		"message":         status.Message,
		"processed_count": status.ProcessedCount,
		"total_count":     status.TotalCount,
		"updated_at":      status.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleCancel handles POST /api/jobs/{jobID}/cancel
// Cancellation is advisory; 202 means the request was published, not that
// the worker stopped anything.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := uuid.Parse(jobID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Cancel publish failed")
		h.writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
	})
}

// classifySubmitError maps submission failures onto HTTP status codes:
// parameter and unknown-universe rejections are the caller's fault,
// everything infrastructural is a 503.
func classifySubmitError(err error) (int, string) {
	switch {
	case jobs.IsValidationError(err), errors.Is(err, universe.ErrUnknownUniverse):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jobs.ErrBrokerUnavailable):
		return http.StatusServiceUnavailable, "broker unavailable"
	case errors.Is(err, universe.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "universe index unavailable"
	default:
		return http.StatusInternalServerError, "submission failed"
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
