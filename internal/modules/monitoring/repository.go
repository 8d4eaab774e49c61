package monitoring

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
	"github.com/rs/zerolog"
)

// defaultListLimit bounds unpaginated error queries.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ErrorRecord is a stored error event plus its insertion time.
type ErrorRecord struct {
	events.ErrorEvent
	CreatedAt time.Time `json:"created_at"`
}

// ErrorFilter narrows error queries. Zero values mean "any".
type ErrorFilter struct {
	Severity  string
	Category  string
	Component string
	Limit     int
}

// ErrorStats summarizes the stored errors for the dashboard.
type ErrorStats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCategory map[string]int `json:"by_category"`
}

// ErrorRepository handles error_events database operations (errors.db).
type ErrorRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewErrorRepository creates a new error repository
func NewErrorRepository(db *sql.DB, log zerolog.Logger) *ErrorRepository {
	return &ErrorRepository{
		db:  db,
		log: log.With().Str("repo", "errors").Logger(),
	}
}

// Insert stores an error event. Inserts are idempotent on error_id, so a
// duplicate delivery collapses into the existing row; the return value
// reports whether a new row was written.
func (r *ErrorRepository) Insert(event *events.ErrorEvent) (bool, error) {
	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO error_events
		(error_id, source, severity, category, message, component, traceback, context, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ErrorID,
		event.Source,
		string(event.Severity),
		string(event.Category),
		event.Message,
		event.Component,
		event.Traceback,
		event.ContextJSON(),
		event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert error event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

// List returns stored errors newest first, filtered by severity, category
// and component when set.
func (r *ErrorRepository) List(filter ErrorFilter) ([]ErrorRecord, error) {
	query := `
		SELECT error_id, source, severity, category, message, component, traceback, context, timestamp, created_at
		FROM error_events
	`
	conditions := []string{}
	args := []interface{}{}

	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, strings.ToLower(filter.Severity))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, strings.ToLower(filter.Category))
	}
	if filter.Component != "" {
		conditions = append(conditions, "component = ?")
		args = append(args, filter.Component)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query error events: %w", err)
	}
	defer rows.Close()

	records := []ErrorRecord{}
	for rows.Next() {
		record, err := scanErrorRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error event: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error events: %w", err)
	}
	return records, nil
}

// Stats returns error counts grouped by severity and category.
func (r *ErrorRepository) Stats() (*ErrorStats, error) {
	stats := &ErrorStats{
		BySeverity: map[string]int{},
		ByCategory: map[string]int{},
	}

	rows, err := r.db.Query("SELECT severity, COUNT(*) FROM error_events GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to query severity stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity stats: %w", err)
		}
		stats.BySeverity[severity] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate severity stats: %w", err)
	}

	catRows, err := r.db.Query("SELECT category, COUNT(*) FROM error_events GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to query category stats: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var category string
		var count int
		if err := catRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		stats.ByCategory[category] = count
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category stats: %w", err)
	}

	return stats, nil
}

// PruneOlderThan deletes stored errors older than the cutoff and returns
// how many rows went away. Runs from the maintenance scheduler.
func (r *ErrorRepository) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(
		"DELETE FROM error_events WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune error events: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", err)
	}
	if pruned > 0 {
		r.log.Info().Int64("rows", pruned).Time("cutoff", cutoff).Msg("Pruned stored errors")
	}
	return pruned, nil
}

// Count returns the number of stored error events.
func (r *ErrorRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM error_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count error events: %w", err)
	}
	return count, nil
}

func scanErrorRecord(rows *sql.Rows) (*ErrorRecord, error) {
	var record ErrorRecord
	var severity, category, contextJSON, timestamp, createdAt string
	var traceback sql.NullString

	if err := rows.Scan(
		&record.ErrorID,
		&record.Source,
		&severity,
		&category,
		&record.Message,
		&record.Component,
		&traceback,
		&contextJSON,
		&timestamp,
		&createdAt,
	); err != nil {
		return nil, err
	}

	record.Severity = events.Severity(severity)
	record.Category = events.Category(category)
	if traceback.Valid {
		record.Traceback = &traceback.String
	}
	if err := json.Unmarshal([]byte(contextJSON), &record.Context); err != nil {
		record.Context = map[string]interface{}{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		record.Timestamp = events.WireTime{Time: ts}
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = ts
	}
	return &record, nil
}
