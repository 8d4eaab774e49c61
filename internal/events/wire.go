package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// wireTimeLayouts are the timestamp formats accepted on inbound
// messages. The worker emits ISO-8601; not every producer includes
// a timezone, so naive timestamps are accepted and read as UTC.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// WireTime is a time.Time with lenient ISO-8601 JSON decoding.
type WireTime struct {
	time.Time
}

// UnmarshalJSON parses the accepted wire layouts. A null or empty
// timestamp leaves the zero value; validation decides what that means.
func (t *WireTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp is not a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", raw)
}

// MarshalJSON emits RFC3339 with sub-second precision.
func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ErrorEvent is the error-channel wire schema. Events are immutable:
// once validated they are logged and persisted, never mutated.
type ErrorEvent struct {
	ErrorID   string                 `json:"error_id"`
	Source    string                 `json:"source"`
	Severity  Severity               `json:"severity"`
	Category  Category               `json:"category"`
	Message   string                 `json:"message"`
	Component string                 `json:"component"`
	Traceback *string                `json:"traceback"`
	Context   map[string]interface{} `json:"context"`
	Timestamp WireTime               `json:"timestamp"`
}

// Validate checks the schema requirements for an inbound error event.
func (e *ErrorEvent) Validate() error {
	if e.ErrorID == "" {
		return fmt.Errorf("error_id is required")
	}
	if _, err := uuid.Parse(e.ErrorID); err != nil {
		return fmt.Errorf("error_id is not a valid UUID: %w", err)
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", e.Severity)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if e.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// ParseErrorEvent decodes and validates an error-channel message.
// Severity and category are normalized to lowercase; a missing
// timestamp is filled with the receive time so downstream ordering
// never sees a zero time.
func ParseErrorEvent(data []byte) (*ErrorEvent, error) {
	var event ErrorEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("malformed error event: %w", err)
	}

	event.Severity = Severity(strings.ToLower(string(event.Severity)))
	event.Category = Category(strings.ToLower(string(event.Category)))

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid error event: %w", err)
	}

	if event.Context == nil {
		event.Context = map[string]interface{}{}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = WireTime{time.Now().UTC()}
	}

	return &event, nil
}

// ContextJSON renders the context map for storage. Falls back to an
// empty object if a producer managed to send something unencodable.
func (e *ErrorEvent) ContextJSON() string {
	data, err := json.Marshal(e.Context)
	if err != nil {
		return "{}"
	}
	return string(data)
}
