package di

import (
	"fmt"
	"path/filepath"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/broker"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/config"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/jobs"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/reliability"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/scheduler"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured
// container. Order of operations:
// 1. Databases
// 2. Broker client and event bus
// 3. Repositories, default universe seed
// 4. Services
// 5. Monitoring pipeline
// 6. Scheduled maintenance jobs
//
// The distributor and scheduler are constructed but not started; main
// starts them once wiring succeeds.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// Step 1: databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: broker client and in-process bus. The client is built even
	// when Redis is down; operations fail fast and subscribers reconnect
	// once the broker comes back.
	container.Broker = broker.New(broker.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		OpTimeout: cfg.BrokerTimeout,
	}, log)

	container.Bus = events.NewBus(log)

	// Step 3: repositories
	container.UniverseRepo = universe.NewRepository(container.UniverseDB.Conn(), log)
	container.ErrorRepo = monitoring.NewErrorRepository(container.ErrorsDB.Conn(), log)
	container.AlertRepo = monitoring.NewAlertRepository(container.ErrorsDB.Conn(), log)

	if err := universe.SeedDefaults(container.UniverseRepo, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to seed default universes: %w", err)
	}

	// Step 4: services
	container.UniverseService = universe.NewService(container.UniverseRepo, cfg.UniverseCacheTTL, log)
	container.StatusStore = jobs.NewStatusStore(container.Broker, cfg.JobStatusTTL, log)
	container.JobService = jobs.NewService(
		container.StatusStore,
		container.Broker,
		container.UniverseService,
		container.Bus,
		cfg.JobChannel,
		cfg.CancelChannel,
		log,
	)

	// Step 5: monitoring pipeline
	errorLog, err := monitoring.NewErrorLog(filepath.Join(cfg.LogsDir(), "errors.jsonl"))
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	container.ErrorLog = errorLog

	container.EventWindow = monitoring.NewEventWindow(0)

	tracker, err := monitoring.NewAlertTracker(container.AlertRepo, log)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to rehydrate alerts: %w", err)
	}
	container.AlertTracker = tracker

	threshold, err := events.ParseSeverity(cfg.ErrorSeverityThreshold)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("invalid error severity threshold: %w", err)
	}

	container.Distributor = monitoring.NewDistributor(
		container.Broker,
		monitoring.DistributorConfig{
			ErrorChannel:      cfg.ErrorChannel,
			MonitoringChannel: cfg.MonitoringChannel,
			SeverityThreshold: threshold,
		},
		container.ErrorLog,
		container.ErrorRepo,
		container.EventWindow,
		container.AlertTracker,
		container.Bus,
		log,
	)

	// Step 6: scheduled maintenance
	if err := registerJobs(container, cfg, log); err != nil {
		container.Close()
		return nil, err
	}

	log.Info().Msg("Dependency wiring completed")

	return container, nil
}

// registerJobs creates the scheduler and registers retention, checkpoint
// and backup jobs. The backup job is skipped when credentials are not
// configured.
func registerJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	retention := reliability.NewRetentionJob(
		container.ErrorRepo,
		container.AlertRepo,
		container.ErrorLog,
		container.Databases(),
		cfg.LogsDir(),
		cfg.ErrorRetentionDays,
		log,
	)
	if err := container.Scheduler.AddJob("0 0 3 * * *", retention); err != nil {
		return fmt.Errorf("failed to register retention job: %w", err)
	}

	checkpoint := reliability.NewCheckpointJob(container.Databases(), log)
	if err := container.Scheduler.AddJob("0 0 * * * *", checkpoint); err != nil {
		return fmt.Errorf("failed to register checkpoint job: %w", err)
	}

	if cfg.Backup == nil || !cfg.Backup.Enabled {
		log.Debug().Msg("Backup not configured - nightly backup disabled")
		return nil
	}

	r2Client, err := reliability.NewR2Client(
		cfg.Backup.Endpoint,
		cfg.Backup.AccessKeyID,
		cfg.Backup.SecretAccessKey,
		cfg.Backup.Bucket,
		log,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize R2 client - nightly backup disabled")
		return nil
	}

	container.Backup = reliability.NewBackupService(
		r2Client,
		container.Databases(),
		cfg.DataDir,
		cfg.LogsDir(),
		cfg.Backup.RetentionDays,
		log,
	)
	if err := container.Scheduler.AddJob("0 30 2 * * *", container.Backup); err != nil {
		return fmt.Errorf("failed to register backup job: %w", err)
	}
	log.Info().Msg("Nightly cloud backup enabled")

	return nil
}
