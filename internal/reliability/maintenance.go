// Package reliability keeps the on-disk state healthy: retention pruning,
// WAL checkpoints and nightly cloud backups.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/database"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring"
	"github.com/rs/zerolog"
)

// Resolved alerts are kept for a week so the admin UI can show recent history.
const resolvedAlertRetention = 7 * 24 * time.Hour

// RetentionJob prunes aged rows and rotates the error log (daily 03:00).
type RetentionJob struct {
	errorStore    *monitoring.ErrorRepository
	alertStore    *monitoring.AlertRepository
	errorLog      *monitoring.ErrorLog
	databases     map[string]*database.DB
	logsDir       string
	retentionDays int
	log           zerolog.Logger
}

// NewRetentionJob creates the daily retention job.
func NewRetentionJob(
	errorStore *monitoring.ErrorRepository,
	alertStore *monitoring.AlertRepository,
	errorLog *monitoring.ErrorLog,
	databases map[string]*database.DB,
	logsDir string,
	retentionDays int,
	log zerolog.Logger,
) *RetentionJob {
	return &RetentionJob{
		errorStore:    errorStore,
		alertStore:    alertStore,
		errorLog:      errorLog,
		databases:     databases,
		logsDir:       logsDir,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "retention_prune").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *RetentionJob) Name() string {
	return "retention_prune"
}

// Run executes the retention pass.
func (j *RetentionJob) Run() error {
	j.log.Info().Int("retention_days", j.retentionDays).Msg("Starting retention prune")
	startTime := time.Now()

	// Step 1: prune persisted error events past the retention window
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	pruned, err := j.errorStore.PruneOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune error events: %w", err)
	}

	// Step 2: drop resolved alerts older than a week
	alertCutoff := time.Now().Add(-resolvedAlertRetention)
	deleted, err := j.alertStore.DeleteResolvedBefore(alertCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune resolved alerts: %w", err)
	}

	// Step 3: rotate the live error log and remove rotated files past retention
	rotated, err := j.errorLog.Rotate(time.Now().Format("2006-01-02"))
	if err != nil {
		j.log.Warn().Err(err).Msg("Error log rotation failed")
	} else if rotated != "" {
		j.log.Debug().Str("rotated", rotated).Msg("Error log rotated")
	}
	removed := j.pruneRotatedLogs(cutoff)

	// Step 4: log database sizes so growth shows up in the logs
	j.logDatabaseSizes()

	j.log.Info().
		Int64("errors_pruned", pruned).
		Int64("alerts_pruned", deleted).
		Int("logs_removed", removed).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Retention prune completed")

	return nil
}

// pruneRotatedLogs deletes rotated error log files older than the cutoff.
// The live log is skipped; only dated siblings are candidates.
func (j *RetentionJob) pruneRotatedLogs(cutoff time.Time) int {
	pattern := filepath.Join(j.logsDir, "errors-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to scan rotated logs")
		return 0
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.log.Warn().Err(err).Str("path", path).Msg("Failed to remove rotated log")
			continue
		}
		j.log.Debug().Str("path", path).Msg("Removed rotated log")
		removed++
	}
	return removed
}

func (j *RetentionJob) logDatabaseSizes() {
	for name, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Warn().Str("database", name).Err(err).Msg("Failed to get database stats")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Msg("Database size")
	}
}

// CheckpointJob truncates the WAL of every database (hourly). A growing
// WAL means checkpoints are not keeping up with writes.
type CheckpointJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewCheckpointJob creates the hourly WAL checkpoint job.
func NewCheckpointJob(databases map[string]*database.DB, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *CheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints every database. A single failure is logged but does not
// stop the remaining checkpoints.
func (j *CheckpointJob) Run() error {
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}
	return nil
}
