package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/rs/zerolog"
)

// Resolver turns a universe expression into a concrete symbol list.
// Implemented by the universe service.
type Resolver interface {
	Resolve(ctx context.Context, expression string) ([]string, error)
}

// Publisher publishes JSON payloads on broker channels. Satisfied by
// *broker.Client.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, payload interface{}) error
}

// Service is the job orchestrator: it validates submissions, resolves
// universe expressions, writes the initial status record and publishes the
// request to the worker. It never waits on job execution.
type Service struct {
	store         *StatusStore
	publisher     Publisher
	resolver      Resolver
	bus           *events.Bus
	jobChannel    string
	cancelChannel string
	log           zerolog.Logger
}

// NewService creates the job orchestrator.
func NewService(
	store *StatusStore,
	publisher Publisher,
	resolver Resolver,
	bus *events.Bus,
	jobChannel string,
	cancelChannel string,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:         store,
		publisher:     publisher,
		resolver:      resolver,
		bus:           bus,
		jobChannel:    jobChannel,
		cancelChannel: cancelChannel,
		log:           log.With().Str("component", "job_orchestrator").Logger(),
	}
}

// Submit validates a submission, resolves its universe expression if it
// has one, writes the initial status record and publishes the request to
// the worker. The status record exists before the caller gets the job id,
// so an immediate status query never misses. If the publish fails the
// record is deleted again and ErrBrokerUnavailable comes back; status
// creation and publish succeed or fail together.
func (s *Service) Submit(ctx context.Context, jobType JobType, rawParams json.RawMessage, requestedBy string) (string, error) {
	params, err := DecodeParams(jobType, rawParams)
	if err != nil {
		return "", err
	}

	symbols, err := s.resolveSymbols(ctx, params)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()

	status := JobStatus{
		Status:    StatusSubmitted,
		Progress:  0,
		Message:   GetJobDescription(jobType),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.WriteInitial(ctx, jobID, status); err != nil {
		return "", fmt.Errorf("failed to write initial status: %w", err)
	}

	request := params.Request(jobID, requestedBy, symbols)
	if err := s.publisher.PublishJSON(ctx, s.jobChannel, request); err != nil {
		// Roll back the status record so no orphan exists for a job
		// that was never published. Runs on a fresh context because
		// the caller may already have gone away.
		if delErr := s.store.Delete(context.Background(), jobID); delErr != nil {
			s.log.Error().Err(delErr).Str("job_id", jobID).Msg("Failed to roll back status record after publish failure")
		}
		return "", translateBrokerErr(err)
	}

	s.log.Info().
		Str("job_id", jobID).
		Str("job_type", string(jobType)).
		Int("symbols", len(symbols)).
		Str("requested_by", requestedBy).
		Msg("Job submitted")

	s.bus.Emit(events.JobSubmitted, "jobs", map[string]interface{}{
		"job_id":   jobID,
		"job_type": string(jobType),
		"symbols":  len(symbols),
	})

	return jobID, nil
}

// GetStatus reads the current status record for a job. Pure store read;
// the worker is never contacted. ErrNotFound covers both unknown and
// expired jobs.
func (s *Service) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	return s.store.Get(ctx, jobID)
}

// Cancel publishes an advisory cancellation for a job. The worker honors
// it on a best-effort basis; there is no acknowledgment and cancelling an
// unknown or finished job is not an error.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	request := CancelRequest{
		JobID:     jobID,
		Action:    CancelAction,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishJSON(ctx, s.cancelChannel, request); err != nil {
		return translateBrokerErr(err)
	}

	s.log.Info().Str("job_id", jobID).Msg("Job cancellation requested")

	s.bus.Emit(events.JobCancelRequested, "jobs", map[string]interface{}{
		"job_id": jobID,
	})

	return nil
}

// resolveSymbols combines the direct symbol list with the resolved
// universe expression. Resolution failures reject the submission, and a
// load job that would publish zero symbols is rejected rather than handed
// to the worker as a silent no-op.
func (s *Service) resolveSymbols(ctx context.Context, params JobParams) ([]string, error) {
	direct, expr := params.SymbolSources()
	if len(direct) == 0 && expr == "" {
		return nil, nil
	}

	union := make(map[string]struct{}, len(direct))
	for _, symbol := range direct {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			union[symbol] = struct{}{}
		}
	}

	if expr != "" {
		resolved, err := s.resolver.Resolve(ctx, expr)
		if err != nil {
			return nil, fmt.Errorf("universe resolution failed: %w", err)
		}
		for _, symbol := range resolved {
			union[symbol] = struct{}{}
		}
	}

	if len(union) == 0 {
		return nil, &ValidationError{Field: "symbols", Reason: "submission resolved to zero symbols"}
	}

	symbols := make([]string, 0, len(union))
	for symbol := range union {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// IsValidationError reports whether err is a parameter rejection, as
// opposed to a transport failure or an unknown-universe error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
