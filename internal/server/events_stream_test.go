package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

// readSSEEvent skips heartbeats and blank lines and returns the next
// event line with its data line.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			data, err := reader.ReadString('\n')
			require.NoError(t, err)
			return line, strings.TrimRight(data, "\n")
		}
	}
}

func TestEventStream_DeliversBusEvents(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	eventLine, _ := readSSEEvent(t, reader)
	require.Equal(t, "event: connected", eventLine)

	// The subscription is registered before the connected frame is
	// written, so this emit cannot be missed.
	s.container.Bus.Emit(events.MetricUpdate, "pattern_detector", map[string]interface{}{
		"metric": "detections_per_min",
		"value":  42.0,
	})

	eventLine, dataLine := readSSEEvent(t, reader)
	assert.Equal(t, "event: METRIC_UPDATE", eventLine)
	assert.Contains(t, dataLine, `"module":"pattern_detector"`)
	assert.Contains(t, dataLine, "detections_per_min")
}

func TestEventStream_FiltersByType(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := ts.URL + "/api/events/stream?types=metric_update"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	eventLine, _ := readSSEEvent(t, reader)
	require.Equal(t, "event: connected", eventLine)

	// The alert is emitted first; if filtering were broken it would
	// arrive as the first frame instead of the metric.
	s.container.Bus.Emit(events.AlertTriggered, "alert_tracker", map[string]interface{}{"alert_id": "a1"})
	s.container.Bus.Emit(events.MetricUpdate, "pattern_detector", map[string]interface{}{"value": 1.0})

	eventLine, dataLine := readSSEEvent(t, reader)
	assert.Equal(t, "event: METRIC_UPDATE", eventLine)
	assert.NotContains(t, dataLine, "a1")
}

func TestParseTypeFilter(t *testing.T) {
	assert.Nil(t, parseTypeFilter(""))

	filter := parseTypeFilter("metric_update, ALERT_TRIGGERED")
	assert.True(t, filter.allows(events.MetricUpdate))
	assert.True(t, filter.allows(events.AlertTriggered))
	assert.False(t, filter.allows(events.HealthCheck))

	var empty typeFilter
	assert.True(t, empty.allows(events.HealthCheck))
}
