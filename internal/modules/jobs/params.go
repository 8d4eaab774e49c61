package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError rejects a submission before anything reaches the broker.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// validTimeframes is the closed set of timeframe identifiers the worker
// understands.
var validTimeframes = map[string]struct{}{
	"1min":    {},
	"5min":    {},
	"15min":   {},
	"30min":   {},
	"hour":    {},
	"daily":   {},
	"weekly":  {},
	"monthly": {},
}

// ValidTimeframes returns the accepted timeframe identifiers, sorted.
func ValidTimeframes() []string {
	out := make([]string, 0, len(validTimeframes))
	for tf := range validTimeframes {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

// JobParams is one variant per job type. SymbolSources exposes what the
// orchestrator must resolve before publishing (a direct symbol list, a
// universe expression, or neither); Request builds the wire message after
// resolution.
type JobParams interface {
	Type() JobType
	Validate() error
	SymbolSources() (symbols []string, universeExpr string)
	Request(jobID, requestedBy string, resolved []string) JobRequest
}

// loadTarget is the shared symbols/universe portion of data-load params.
type loadTarget struct {
	Symbols     []string `json:"symbols,omitempty"`
	UniverseKey string   `json:"universe_key,omitempty"`
}

func (t loadTarget) SymbolSources() ([]string, string) {
	return t.Symbols, t.UniverseKey
}

func (t loadTarget) validate() error {
	if len(t.Symbols) == 0 && strings.TrimSpace(t.UniverseKey) == "" {
		return &ValidationError{Field: "symbols", Reason: "either symbols or universe_key is required"}
	}
	for _, s := range t.Symbols {
		if strings.TrimSpace(s) == "" {
			return &ValidationError{Field: "symbols", Reason: "symbols must be non-empty strings"}
		}
	}
	return nil
}

// HistoricalLoadParams configures a historical_load job.
type HistoricalLoadParams struct {
	loadTarget
	Timeframes []string `json:"timeframes,omitempty"`
	Years      int      `json:"years"`
}

func (p HistoricalLoadParams) Type() JobType { return JobTypeHistoricalLoad }

func (p HistoricalLoadParams) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.Years <= 0 {
		return &ValidationError{Field: "years", Reason: "must be a positive integer"}
	}
	return validateTimeframes(p.Timeframes, false)
}

func (p HistoricalLoadParams) Request(jobID, requestedBy string, resolved []string) JobRequest {
	return JobRequest{
		JobID:       jobID,
		JobType:     p.Type(),
		Symbols:     resolved,
		UniverseKey: p.UniverseKey,
		Timeframes:  p.Timeframes,
		Years:       p.Years,
		RequestedBy: requestedBy,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// MultiTimeframeLoadParams configures a multi_timeframe_load job. Unlike
// historical_load, the timeframe list is mandatory.
type MultiTimeframeLoadParams struct {
	loadTarget
	Timeframes []string `json:"timeframes"`
	Years      int      `json:"years"`
}

func (p MultiTimeframeLoadParams) Type() JobType { return JobTypeMultiTimeframeLoad }

func (p MultiTimeframeLoadParams) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.Years <= 0 {
		return &ValidationError{Field: "years", Reason: "must be a positive integer"}
	}
	return validateTimeframes(p.Timeframes, true)
}

func (p MultiTimeframeLoadParams) Request(jobID, requestedBy string, resolved []string) JobRequest {
	return JobRequest{
		JobID:       jobID,
		JobType:     p.Type(),
		Symbols:     resolved,
		UniverseKey: p.UniverseKey,
		Timeframes:  p.Timeframes,
		Years:       p.Years,
		RequestedBy: requestedBy,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// UniverseSeedParams configures a universe_seed job. The key names the
// universe the worker should (re)build from the data provider, so no
// resolution happens on the submission path and the key may be brand new.
type UniverseSeedParams struct {
	UniverseKey string `json:"universe_key"`
}

func (p UniverseSeedParams) Type() JobType { return JobTypeUniverseSeed }

func (p UniverseSeedParams) Validate() error {
	if strings.TrimSpace(p.UniverseKey) == "" {
		return &ValidationError{Field: "universe_key", Reason: "is required"}
	}
	return nil
}

func (p UniverseSeedParams) SymbolSources() ([]string, string) {
	return nil, ""
}

func (p UniverseSeedParams) Request(jobID, requestedBy string, resolved []string) JobRequest {
	return JobRequest{
		JobID:       jobID,
		JobType:     p.Type(),
		UniverseKey: strings.ToLower(strings.TrimSpace(p.UniverseKey)),
		RequestedBy: requestedBy,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// DecodeParams unmarshals the type-specific portion of a submission into
// the matching variant and validates it. Unknown job types are rejected
// here, before any broker traffic.
func DecodeParams(jobType JobType, raw json.RawMessage) (JobParams, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var params JobParams
	switch jobType {
	case JobTypeHistoricalLoad:
		var p HistoricalLoadParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid parameters: %v", err)}
		}
		params = p
	case JobTypeMultiTimeframeLoad:
		var p MultiTimeframeLoadParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid parameters: %v", err)}
		}
		params = p
	case JobTypeUniverseSeed:
		var p UniverseSeedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid parameters: %v", err)}
		}
		params = p
	default:
		return nil, &ValidationError{Field: "job_type", Reason: fmt.Sprintf("unknown job type %q", jobType)}
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func validateTimeframes(timeframes []string, required bool) error {
	if len(timeframes) == 0 {
		if required {
			return &ValidationError{Field: "timeframes", Reason: "at least one timeframe is required"}
		}
		return nil
	}
	for _, tf := range timeframes {
		if _, ok := validTimeframes[tf]; !ok {
			return &ValidationError{Field: "timeframes", Reason: fmt.Sprintf("unknown timeframe %q (valid: %s)", tf, strings.Join(ValidTimeframes(), ", "))}
		}
	}
	return nil
}
