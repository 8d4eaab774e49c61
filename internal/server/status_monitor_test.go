package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

func TestStatusMonitor_EmitsStatusAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	var mu sync.Mutex
	received := make(map[events.EventType]*events.Event)
	unsubscribe := s.container.Bus.SubscribeAll(func(event *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		received[event.Type] = event
	})
	defer unsubscribe()

	monitor := NewStatusMonitor(s.container, s.cfg.DataDir, testLogger())
	monitor.Start(time.Hour)
	defer monitor.Stop()

	// The first snapshot is emitted on start, not after an interval.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received[events.SystemStatus] != nil && received[events.HealthCheck] != nil
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	status := received[events.SystemStatus]
	assert.Equal(t, "server", status.Module)
	assert.Equal(t, true, status.Data["broker_connected"])
	assert.Contains(t, status.Data, "error_subscriber")
	assert.Contains(t, status.Data, "recent_events")
	assert.Contains(t, status.Data, "active_alerts")

	health := received[events.HealthCheck]
	assert.Contains(t, health.Data, "cpu_percent")
	assert.Contains(t, health.Data, "mem_percent")
	assert.Contains(t, health.Data, "disk_percent")
	assert.Contains(t, health.Data, "goroutines")
}

func TestStatusMonitor_StopTerminatesLoop(t *testing.T) {
	s, _ := newTestServer(t)

	monitor := NewStatusMonitor(s.container, s.cfg.DataDir, testLogger())
	monitor.Start(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		monitor.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("status monitor did not stop")
	}
}
