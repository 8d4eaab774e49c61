package server

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/di"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

const statusInterval = 30 * time.Second

// StatusMonitor periodically publishes SYSTEM_STATUS and HEALTH_CHECK
// events on the bus so connected dashboards see broker and resource
// state without polling.
type StatusMonitor struct {
	container *di.Container
	dataDir   string
	stop      chan struct{}
	done      chan struct{}
	log       zerolog.Logger
}

func NewStatusMonitor(container *di.Container, dataDir string, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		container: container,
		dataDir:   dataDir,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start launches the monitor loop. The first snapshot is emitted
// immediately so dashboards are not blank for a full interval.
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// Stop terminates the loop and waits for it to exit.
func (m *StatusMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *StatusMonitor) monitor(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.emitStatus()
	m.emitHealth()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.emitStatus()
			m.emitHealth()
		}
	}
}

// emitStatus reports broker connectivity, subscriber liveness and
// recent activity counters.
func (m *StatusMonitor) emitStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	brokerConnected := m.container.Broker.Ping(ctx) == nil
	if !brokerConnected {
		m.log.Warn().Msg("Broker unreachable during status check")
	}

	m.container.Bus.Emit(events.SystemStatus, "server", map[string]interface{}{
		"broker_connected":      brokerConnected,
		"error_subscriber":      m.container.Distributor.ErrorChannelConnected(),
		"monitoring_subscriber": m.container.Distributor.MonitoringChannelConnected(),
		"recent_events":         m.container.EventWindow.Len(),
		"active_alerts":         m.container.AlertTracker.ActiveCount(),
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}

// emitHealth publishes a resource snapshot.
func (m *StatusMonitor) emitHealth() {
	cpuPercent, memPercent := getSystemStats(m.log)

	diskPercent := 0.0
	if usage, err := disk.Usage(m.dataDir); err != nil {
		m.log.Warn().Err(err).Msg("Failed to read disk usage")
	} else {
		diskPercent = usage.UsedPercent
	}

	m.container.Bus.Emit(events.HealthCheck, "server", map[string]interface{}{
		"cpu_percent":  cpuPercent,
		"mem_percent":  memPercent,
		"disk_percent": diskPercent,
		"goroutines":   runtime.NumGoroutine(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
