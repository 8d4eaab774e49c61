// Package di wires the application together: databases, broker client,
// event bus, repositories, services and background jobs.
package di

import (
	"github.com/mcfalli/TickStockAppV2-sub021/internal/broker"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/database"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/jobs"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/reliability"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/scheduler"
	"github.com/rs/zerolog"
)

// Container holds every long-lived dependency. Wire builds it once at
// startup; handlers and jobs receive what they need from here.
type Container struct {
	// Databases
	ErrorsDB   *database.DB
	UniverseDB *database.DB

	// Shared infrastructure
	Broker *broker.Client
	Bus    *events.Bus

	// Repositories
	UniverseRepo *universe.Repository
	ErrorRepo    *monitoring.ErrorRepository
	AlertRepo    *monitoring.AlertRepository

	// Services
	UniverseService *universe.Service
	StatusStore     *jobs.StatusStore
	JobService      *jobs.Service

	// Monitoring pipeline
	ErrorLog     *monitoring.ErrorLog
	EventWindow  *monitoring.EventWindow
	AlertTracker *monitoring.AlertTracker
	Distributor  *monitoring.Distributor

	// Background work
	Scheduler *scheduler.Scheduler
	Backup    *reliability.BackupService

	log zerolog.Logger
}

// Databases returns the open databases keyed by name, for maintenance
// and backup jobs.
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"errors":   c.ErrorsDB,
		"universe": c.UniverseDB,
	}
}

// Close releases resources in reverse construction order. Long-running
// components (distributor, scheduler) must be stopped before calling
// Close. Safe on a partially built container.
func (c *Container) Close() {
	if c.ErrorLog != nil {
		if err := c.ErrorLog.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close error log")
		}
	}
	if c.Broker != nil {
		if err := c.Broker.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close broker client")
		}
	}
	if c.UniverseDB != nil {
		if err := c.UniverseDB.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close universe database")
		}
	}
	if c.ErrorsDB != nil {
		if err := c.ErrorsDB.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close errors database")
		}
	}

	c.log.Info().Msg("Container closed")
}
