package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/database"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func openErrorsDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "errors.db"),
		Profile: database.ProfileDurable,
		Name:    "errors",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

// insertErrorAt writes a row with an explicit created_at so retention
// cutoffs can be exercised without waiting.
func insertErrorAt(t *testing.T, db *database.DB, createdAt time.Time) string {
	t.Helper()

	errorID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO error_events
		(error_id, source, severity, category, message, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		errorID, "tickstock_worker", "error", "pattern", "detector failed",
		createdAt.UTC().Format(time.RFC3339Nano),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	require.NoError(t, err)
	return errorID
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestRetentionJob_Run(t *testing.T) {
	db := openErrorsDB(t)
	errorStore := monitoring.NewErrorRepository(db.Conn(), testLogger())
	alertStore := monitoring.NewAlertRepository(db.Conn(), testLogger())

	logsDir := t.TempDir()
	errorLog, err := monitoring.NewErrorLog(filepath.Join(logsDir, "errors.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { errorLog.Close() })

	now := time.Now()
	insertErrorAt(t, db, now.AddDate(0, 0, -40))
	insertErrorAt(t, db, now.AddDate(0, 0, -35))
	insertErrorAt(t, db, now.Add(-time.Hour))

	// One alert past the week-long resolved window, one inside it, one
	// still open. Only the first should be pruned.
	require.NoError(t, alertStore.Save(&monitoring.Alert{
		AlertID:     "stale-resolved",
		State:       monitoring.AlertStateResolved,
		TriggeredAt: now.AddDate(0, 0, -9),
		ResolvedAt:  timePtr(now.AddDate(0, 0, -8)),
	}))
	require.NoError(t, alertStore.Save(&monitoring.Alert{
		AlertID:     "fresh-resolved",
		State:       monitoring.AlertStateResolved,
		TriggeredAt: now.AddDate(0, 0, -2),
		ResolvedAt:  timePtr(now.AddDate(0, 0, -1)),
	}))
	require.NoError(t, alertStore.Save(&monitoring.Alert{
		AlertID:     "still-open",
		State:       monitoring.AlertStateTriggered,
		TriggeredAt: now.AddDate(0, 0, -30),
	}))

	require.NoError(t, errorLog.Append(&events.ErrorEvent{
		ErrorID:   uuid.NewString(),
		Source:    "tickstock_worker",
		Severity:  events.SeverityError,
		Category:  events.CategoryPattern,
		Message:   "detector failed",
		Timestamp: events.WireTime{Time: now},
	}))

	job := NewRetentionJob(errorStore, alertStore, errorLog,
		map[string]*database.DB{"errors": db}, logsDir, 30, testLogger())
	require.NoError(t, job.Run())

	remaining, err := errorStore.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "only the recent error should survive")

	alerts, err := alertStore.List(false, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		ids = append(ids, alert.AlertID)
	}
	assert.ElementsMatch(t, []string{"fresh-resolved", "still-open"}, ids)

	rotated, err := filepath.Glob(filepath.Join(logsDir, "errors-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, rotated, 1, "live log should have been rotated")

	live, err := os.Stat(errorLog.Path())
	require.NoError(t, err)
	assert.Zero(t, live.Size(), "live log should be empty after rotation")

	// Backdate the rotated file past retention; the next run removes it.
	old := now.AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(rotated[0], old, old))
	require.NoError(t, job.Run())

	rotated, err = filepath.Glob(filepath.Join(logsDir, "errors-*.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, rotated, "aged rotated log should be pruned")
}

func TestRetentionJob_EmptyLogIsNotRotated(t *testing.T) {
	db := openErrorsDB(t)
	errorStore := monitoring.NewErrorRepository(db.Conn(), testLogger())
	alertStore := monitoring.NewAlertRepository(db.Conn(), testLogger())

	logsDir := t.TempDir()
	errorLog, err := monitoring.NewErrorLog(filepath.Join(logsDir, "errors.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { errorLog.Close() })

	job := NewRetentionJob(errorStore, alertStore, errorLog,
		map[string]*database.DB{"errors": db}, logsDir, 30, testLogger())
	require.NoError(t, job.Run())

	rotated, err := filepath.Glob(filepath.Join(logsDir, "errors-*.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, rotated)
}

func TestCheckpointJob_Run(t *testing.T) {
	db := openErrorsDB(t)
	insertErrorAt(t, db, time.Now())

	job := NewCheckpointJob(map[string]*database.DB{"errors": db}, testLogger())
	require.NoError(t, job.Run())

	// Database stays writable after the checkpoint.
	insertErrorAt(t, db, time.Now())
}
