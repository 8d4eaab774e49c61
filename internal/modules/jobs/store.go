package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/broker"
	"github.com/rs/zerolog"
)

// Sentinel errors surfaced by this package. Handlers map them to HTTP
// status codes; everything else inside stays wrapped.
var (
	// ErrNotFound means the status key is absent, either never written
	// or already expired. The store cannot tell the two cases apart.
	ErrNotFound = errors.New("job not found or expired")

	// ErrBrokerUnavailable means the broker round-trip failed. The
	// submission path rolls back and surfaces this to the caller.
	ErrBrokerUnavailable = errors.New("broker unavailable")
)

// statusKeyPrefix namespaces status records in the shared broker keyspace.
const statusKeyPrefix = "job:status:"

// StatusStore is the TTL key-value store of job status records. The
// orchestrator writes the initial record; afterwards the worker is the
// only writer. Records expire after the configured TTL no matter what
// state they are in, so absence never implies failure.
type StatusStore struct {
	client *broker.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewStatusStore creates a status store with the given record TTL.
func NewStatusStore(client *broker.Client, ttl time.Duration, log zerolog.Logger) *StatusStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusStore{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "job_store").Logger(),
	}
}

// WriteInitial writes the submitted-state record for a new job. The TTL
// starts here and is not refreshed by this process.
func (s *StatusStore) WriteInitial(ctx context.Context, jobID string, status JobStatus) error {
	if err := s.client.SetJSON(ctx, statusKey(jobID), status, s.ttl); err != nil {
		return translateBrokerErr(err)
	}
	return nil
}

// Get reads the status record for a job. Returns ErrNotFound when the key
// is missing or expired.
func (s *StatusStore) Get(ctx context.Context, jobID string) (JobStatus, error) {
	var status JobStatus
	err := s.client.GetJSON(ctx, statusKey(jobID), &status)
	if err != nil {
		if errors.Is(err, broker.ErrKeyNotFound) {
			return JobStatus{}, ErrNotFound
		}
		return JobStatus{}, translateBrokerErr(err)
	}
	return status, nil
}

// Delete removes a status record. Used only to roll back the initial
// write when the job publish fails.
func (s *StatusStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Delete(ctx, statusKey(jobID)); err != nil {
		return translateBrokerErr(err)
	}
	return nil
}

// TTL returns the configured record lifetime.
func (s *StatusStore) TTL() time.Duration {
	return s.ttl
}

func statusKey(jobID string) string {
	return statusKeyPrefix + jobID
}

// translateBrokerErr converts broker transport failures into this
// package's sentinel while preserving the cause.
func translateBrokerErr(err error) error {
	if errors.Is(err, broker.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return err
}
