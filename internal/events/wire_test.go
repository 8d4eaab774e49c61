package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validErrorJSON(t *testing.T) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"error_id":  uuid.NewString(),
		"source":    "tickstockpl",
		"severity":  "error",
		"category":  "storage",
		"message":   "failed to write daily bars",
		"component": "ohlcv_writer",
		"traceback": nil,
		"context":   map[string]interface{}{"symbol": "AAPL"},
		"timestamp": "2026-08-25T10:15:00Z",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func TestParseErrorEvent_Valid(t *testing.T) {
	event, err := ParseErrorEvent(validErrorJSON(t))
	require.NoError(t, err)

	assert.Equal(t, "tickstockpl", event.Source)
	assert.Equal(t, SeverityError, event.Severity)
	assert.Equal(t, CategoryStorage, event.Category)
	assert.Equal(t, "ohlcv_writer", event.Component)
	assert.Nil(t, event.Traceback)
	assert.Equal(t, "AAPL", event.Context["symbol"])
	assert.Equal(t, time.Date(2026, 8, 25, 10, 15, 0, 0, time.UTC), event.Timestamp.Time)
}

func TestParseErrorEvent_NormalizesSeverityCase(t *testing.T) {
	raw := []byte(`{"error_id":"` + uuid.NewString() + `","source":"worker","severity":"CRITICAL","category":"Network","message":"broker gone"}`)

	event, err := ParseErrorEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, event.Severity)
	assert.Equal(t, CategoryNetwork, event.Category)
}

func TestParseErrorEvent_DefaultsMissingContextAndTimestamp(t *testing.T) {
	raw := []byte(`{"error_id":"` + uuid.NewString() + `","source":"worker","severity":"warning","category":"test","message":"m"}`)

	event, err := ParseErrorEvent(raw)
	require.NoError(t, err)
	assert.NotNil(t, event.Context)
	assert.WithinDuration(t, time.Now(), event.Timestamp.Time, time.Second)
}

func TestParseErrorEvent_NaiveTimestamp(t *testing.T) {
	raw := []byte(`{"error_id":"` + uuid.NewString() + `","source":"worker","severity":"info","category":"test","message":"m","timestamp":"2026-08-25T10:15:00.123456"}`)

	event, err := ParseErrorEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, 2026, event.Timestamp.Year())
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestParseErrorEvent_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"error_id": `},
		{"missing error_id", `{"source":"w","severity":"error","category":"test","message":"m"}`},
		{"error_id not uuid", `{"error_id":"42","source":"w","severity":"error","category":"test","message":"m"}`},
		{"missing source", `{"error_id":"` + uuid.NewString() + `","severity":"error","category":"test","message":"m"}`},
		{"unknown severity", `{"error_id":"` + uuid.NewString() + `","source":"w","severity":"fatal","category":"test","message":"m"}`},
		{"unknown category", `{"error_id":"` + uuid.NewString() + `","source":"w","severity":"error","category":"billing","message":"m"}`},
		{"empty message", `{"error_id":"` + uuid.NewString() + `","source":"w","severity":"error","category":"test","message":""}`},
		{"bad timestamp", `{"error_id":"` + uuid.NewString() + `","source":"w","severity":"error","category":"test","message":"m","timestamp":"yesterday"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseErrorEvent([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseMonitoringEvent_MetricUpdate(t *testing.T) {
	raw := []byte(`{"event_type":"METRIC_UPDATE","metrics":{"ticks_per_second":1250.5,"queue_depth":3},"source":"ingest","timestamp":"2026-08-25T10:15:00Z"}`)

	event, err := ParseMonitoringEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, MetricUpdate, event.EventType)

	payload, ok := event.Payload.(*MetricUpdatePayload)
	require.True(t, ok)
	assert.Equal(t, 1250.5, payload.Metrics["ticks_per_second"])
	assert.Equal(t, "ingest", payload.Source)
}

func TestParseMonitoringEvent_LowercaseEventType(t *testing.T) {
	raw := []byte(`{"event_type":"alert_triggered","alert_id":"alert-7","severity":"critical","message":"db down"}`)

	event, err := ParseMonitoringEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, AlertTriggered, event.EventType)

	payload := event.Payload.(*AlertTriggeredPayload)
	assert.Equal(t, "alert-7", payload.AlertID)
	assert.Equal(t, SeverityCritical, payload.Severity)
}

func TestParseMonitoringEvent_AlertSeverityDefaultsToWarning(t *testing.T) {
	raw := []byte(`{"event_type":"ALERT_TRIGGERED","alert_id":"alert-9"}`)

	event, err := ParseMonitoringEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, event.Payload.(*AlertTriggeredPayload).Severity)
}

func TestParseMonitoringEvent_Variants(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		eventType EventType
	}{
		{"alert resolved", `{"event_type":"ALERT_RESOLVED","alert_id":"alert-7"}`, AlertResolved},
		{"health check", `{"event_type":"HEALTH_CHECK","status":"healthy","checks":{"database":"ok"}}`, HealthCheck},
		{"system status", `{"event_type":"SYSTEM_STATUS","status":"degraded","components":{"ingest":"lagging"}}`, SystemStatus},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseMonitoringEvent([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.eventType, event.EventType)
			assert.Equal(t, tc.eventType, event.Payload.EventType())
		})
	}
}

func TestParseMonitoringEvent_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"unknown event_type", `{"event_type":"REBOOT","timestamp":"2026-08-25T10:15:00Z"}`},
		{"missing event_type", `{"metrics":{"a":1}}`},
		{"metric update without metrics", `{"event_type":"METRIC_UPDATE"}`},
		{"alert without id", `{"event_type":"ALERT_TRIGGERED","severity":"critical"}`},
		{"health check without status", `{"event_type":"HEALTH_CHECK"}`},
		{"not json", `event_type=METRIC_UPDATE`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMonitoringEvent([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestMonitoringEvent_MarshalFlattensPayload(t *testing.T) {
	event := &MonitoringEvent{
		EventType: AlertTriggered,
		Payload: &AlertTriggeredPayload{
			AlertID:  "alert-3",
			Severity: SeverityError,
			Message:  "ingest stalled",
		},
		Timestamp: WireTime{time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "ALERT_TRIGGERED", flat["event_type"])
	assert.Equal(t, "alert-3", flat["alert_id"])
	assert.Equal(t, "error", flat["severity"])
	assert.NotEmpty(t, flat["timestamp"])

	// Round trip through the union decoder
	decoded, err := ParseMonitoringEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.Payload, decoded.Payload)
}

func TestMonitoringEvent_BusData(t *testing.T) {
	event := &MonitoringEvent{
		EventType: HealthCheck,
		Payload:   &HealthCheckPayload{Status: "healthy", Checks: map[string]string{"redis": "ok"}},
	}

	data := event.BusData()
	assert.Equal(t, "healthy", data["status"])
	checks, ok := data["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", checks["redis"])
}
