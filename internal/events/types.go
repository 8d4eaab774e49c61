// Package events provides the in-process event bus and the wire-level
// event schemas shared with the worker process.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	// Wire-level monitoring events published by the worker.
	// The same constants identify these events on the internal bus
	// after the distributor has validated them.
	MetricUpdate   EventType = "METRIC_UPDATE"
	AlertTriggered EventType = "ALERT_TRIGGERED"
	AlertResolved  EventType = "ALERT_RESOLVED"
	HealthCheck    EventType = "HEALTH_CHECK"
	SystemStatus   EventType = "SYSTEM_STATUS"

	// Events originating inside this process
	JobSubmitted        EventType = "JOB_SUBMITTED"
	JobCancelRequested  EventType = "JOB_CANCEL_REQUESTED"
	ErrorReported       EventType = "ERROR_REPORTED"
	AlertAcknowledged   EventType = "ALERT_ACKNOWLEDGED"
	BrokerStatusChanged EventType = "BROKER_STATUS_CHANGED"
)

// Event represents a system event flowing over the internal bus
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
