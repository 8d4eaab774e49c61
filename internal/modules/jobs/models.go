// Package jobs submits data-load jobs to the external worker over the
// broker and answers status queries from the TTL status store. The worker
// owns execution and all status mutation after the initial record; this
// package never blocks a caller on job completion.
package jobs

import "time"

// JobType represents the type of job
type JobType string

const (
	JobTypeHistoricalLoad     JobType = "historical_load"
	JobTypeMultiTimeframeLoad JobType = "multi_timeframe_load"
	JobTypeUniverseSeed       JobType = "universe_seed"
)

// GetJobDescription returns a human-readable description for a job type
func GetJobDescription(jobType JobType) string {
	descriptions := map[JobType]string{
		JobTypeHistoricalLoad:     "Loading historical OHLCV data",
		JobTypeMultiTimeframeLoad: "Loading data across multiple timeframes",
		JobTypeUniverseSeed:       "Seeding symbol universe",
	}
	if desc, ok := descriptions[jobType]; ok {
		return desc
	}
	return string(jobType)
}

// Job lifecycle states. Submitted and running are transient; the rest are
// terminal and final.
const (
	StatusSubmitted = "submitted"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminalStatus reports whether a status value is final.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobRequest is the immutable message published to the worker on the job
// channel. Symbols always carries the concrete resolved list; UniverseKey
// is kept for provenance when the submission used an expression.
type JobRequest struct {
	JobID       string   `json:"job_id"`
	JobType     JobType  `json:"job_type"`
	Symbols     []string `json:"symbols,omitempty"`
	UniverseKey string   `json:"universe_key,omitempty"`
	Timeframes  []string `json:"timeframes,omitempty"`
	Years       int      `json:"years,omitempty"`
	RequestedBy string   `json:"requested_by"`
	Timestamp   string   `json:"timestamp"`
}

// JobStatus is the status-store record for one job. Written once by the
// orchestrator at submission, thereafter only by the worker, and expires
// with the store TTL regardless of state.
type JobStatus struct {
	Status         string    `json:"status"`
	Progress       int       `json:"progress"`
	Message        string    `json:"message"`
	ProcessedCount int       `json:"processed_count"`
	TotalCount     int       `json:"total_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CancelRequest is the advisory message published on the cancel channel.
type CancelRequest struct {
	JobID     string `json:"job_id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// CancelAction is the only action value the cancel channel carries today.
const CancelAction = "cancel"
