package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventPayload is the interface all monitoring payload types implement.
// The union is keyed by event_type; each variant validates itself.
type EventPayload interface {
	// EventType returns the event type this payload is associated with
	EventType() EventType
	// Validate checks the variant's schema requirements
	Validate() error
}

// MetricUpdatePayload carries a batch of named numeric metrics.
type MetricUpdatePayload struct {
	Metrics map[string]float64 `json:"metrics"`
	Source  string             `json:"source,omitempty"`
}

// EventType returns the event type for MetricUpdatePayload
func (p *MetricUpdatePayload) EventType() EventType { return MetricUpdate }

// Validate checks the variant's schema requirements
func (p *MetricUpdatePayload) Validate() error {
	if len(p.Metrics) == 0 {
		return fmt.Errorf("metric_update requires at least one metric")
	}
	return nil
}

// AlertTriggeredPayload opens an alert identified by alert_id.
type AlertTriggeredPayload struct {
	AlertID  string   `json:"alert_id"`
	Severity Severity `json:"severity,omitempty"`
	Message  string   `json:"message,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// EventType returns the event type for AlertTriggeredPayload
func (p *AlertTriggeredPayload) EventType() EventType { return AlertTriggered }

// Validate checks the variant's schema requirements
func (p *AlertTriggeredPayload) Validate() error {
	if p.AlertID == "" {
		return fmt.Errorf("alert_triggered requires alert_id")
	}
	if p.Severity != "" && !p.Severity.Valid() {
		return fmt.Errorf("unknown alert severity %q", p.Severity)
	}
	return nil
}

// AlertResolvedPayload closes the alert with the matching alert_id.
type AlertResolvedPayload struct {
	AlertID string `json:"alert_id"`
	Message string `json:"message,omitempty"`
}

// EventType returns the event type for AlertResolvedPayload
func (p *AlertResolvedPayload) EventType() EventType { return AlertResolved }

// Validate checks the variant's schema requirements
func (p *AlertResolvedPayload) Validate() error {
	if p.AlertID == "" {
		return fmt.Errorf("alert_resolved requires alert_id")
	}
	return nil
}

// HealthCheckPayload is the worker's periodic health snapshot.
type HealthCheckPayload struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// EventType returns the event type for HealthCheckPayload
func (p *HealthCheckPayload) EventType() EventType { return HealthCheck }

// Validate checks the variant's schema requirements
func (p *HealthCheckPayload) Validate() error {
	if p.Status == "" {
		return fmt.Errorf("health_check requires status")
	}
	return nil
}

// SystemStatusPayload is a coarse component-level status report.
type SystemStatusPayload struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// EventType returns the event type for SystemStatusPayload
func (p *SystemStatusPayload) EventType() EventType { return SystemStatus }

// Validate checks the variant's schema requirements
func (p *SystemStatusPayload) Validate() error {
	if p.Status == "" {
		return fmt.Errorf("system_status requires status")
	}
	return nil
}

// MonitoringEvent is the monitoring-channel wire schema. The payload
// fields sit beside event_type and timestamp in the JSON object, so
// serialization flattens the variant into the envelope.
type MonitoringEvent struct {
	EventType EventType
	Payload   EventPayload
	Timestamp WireTime
}

// MarshalJSON flattens the payload into the envelope object.
func (e *MonitoringEvent) MarshalJSON() ([]byte, error) {
	flat := map[string]interface{}{}

	if e.Payload != nil {
		payloadBytes, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadBytes, &flat); err != nil {
			return nil, err
		}
	}

	flat["event_type"] = string(e.EventType)
	timestampBytes, err := json.Marshal(e.Timestamp)
	if err != nil {
		return nil, err
	}
	var timestampJSON interface{}
	if err := json.Unmarshal(timestampBytes, &timestampJSON); err != nil {
		return nil, err
	}
	flat["timestamp"] = timestampJSON

	return json.Marshal(flat)
}

// UnmarshalJSON decodes the envelope, then the variant selected by
// event_type. Event types are normalized to uppercase; producers have
// historically sent both metric_update and METRIC_UPDATE.
func (e *MonitoringEvent) UnmarshalJSON(data []byte) error {
	var envelope struct {
		EventType string   `json:"event_type"`
		Timestamp WireTime `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	eventType := EventType(strings.ToUpper(strings.TrimSpace(envelope.EventType)))

	var payload EventPayload
	switch eventType {
	case MetricUpdate:
		payload = &MetricUpdatePayload{}
	case AlertTriggered:
		payload = &AlertTriggeredPayload{}
	case AlertResolved:
		payload = &AlertResolvedPayload{}
	case HealthCheck:
		payload = &HealthCheckPayload{}
	case SystemStatus:
		payload = &SystemStatusPayload{}
	default:
		return fmt.Errorf("unknown event_type %q", envelope.EventType)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return err
	}

	e.EventType = eventType
	e.Payload = payload
	e.Timestamp = envelope.Timestamp
	return nil
}

// ParseMonitoringEvent decodes and validates a monitoring-channel
// message. Alerts without an explicit severity default to warning.
func ParseMonitoringEvent(data []byte) (*MonitoringEvent, error) {
	var event MonitoringEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("malformed monitoring event: %w", err)
	}

	if alert, ok := event.Payload.(*AlertTriggeredPayload); ok {
		alert.Severity = Severity(strings.ToLower(string(alert.Severity)))
		if alert.Severity == "" {
			alert.Severity = SeverityWarning
		}
	}

	if err := event.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitoring event: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = WireTime{time.Now().UTC()}
	}

	return &event, nil
}

// BusData converts the payload into the map form the internal bus
// carries. Round-trips through JSON, same as the dashboard would see.
func (e *MonitoringEvent) BusData() map[string]interface{} {
	data := map[string]interface{}{}
	if e.Payload == nil {
		return data
	}
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return data
	}
	_ = json.Unmarshal(payloadBytes, &data)
	return data
}
