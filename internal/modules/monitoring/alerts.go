package monitoring

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Alert lifecycle states.
const (
	AlertStateTriggered    = "triggered"
	AlertStateAcknowledged = "acknowledged"
	AlertStateResolved     = "resolved"
)

// ErrUnknownAlert rejects an acknowledgment for an alert id that was
// never tracked. Resolving an unknown alert is deliberately not an error.
var ErrUnknownAlert = fmt.Errorf("unknown alert")

// Alert is one tracked alert, correlated across events by alert_id.
type Alert struct {
	AlertID        string     `json:"alert_id"`
	State          string     `json:"state"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	Source         string     `json:"source"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Active reports whether the alert still needs operator attention.
func (a *Alert) Active() bool {
	return a.State != AlertStateResolved
}

// AlertRepository handles alert persistence (errors.db, alerts table).
// The tracker writes through on every transition so alert history
// survives restarts.
type AlertRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sql.DB, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// Save upserts the full alert row.
func (r *AlertRepository) Save(alert *Alert) error {
	_, err := r.db.Exec(`
		INSERT INTO alerts (alert_id, state, severity, message, source, triggered_at, acknowledged_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO UPDATE SET
			state = excluded.state,
			severity = excluded.severity,
			message = excluded.message,
			source = excluded.source,
			triggered_at = excluded.triggered_at,
			acknowledged_at = excluded.acknowledged_at,
			resolved_at = excluded.resolved_at
	`,
		alert.AlertID,
		alert.State,
		alert.Severity,
		alert.Message,
		alert.Source,
		formatAlertTime(&alert.TriggeredAt),
		formatAlertTime(alert.AcknowledgedAt),
		formatAlertTime(alert.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.AlertID, err)
	}
	return nil
}

// LoadOpen returns alerts that were not yet resolved, for rehydrating the
// tracker after a restart.
func (r *AlertRepository) LoadOpen() ([]Alert, error) {
	return r.query("SELECT alert_id, state, severity, message, source, triggered_at, acknowledged_at, resolved_at FROM alerts WHERE state != ? ORDER BY triggered_at", AlertStateResolved)
}

// List returns alerts newest first, optionally only unresolved ones.
func (r *AlertRepository) List(activeOnly bool, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if activeOnly {
		return r.query("SELECT alert_id, state, severity, message, source, triggered_at, acknowledged_at, resolved_at FROM alerts WHERE state != ? ORDER BY triggered_at DESC LIMIT ?", AlertStateResolved, limit)
	}
	return r.query("SELECT alert_id, state, severity, message, source, triggered_at, acknowledged_at, resolved_at FROM alerts ORDER BY triggered_at DESC LIMIT ?", limit)
}

// DeleteResolvedBefore removes resolved alerts whose resolution is older
// than the cutoff. Open alerts are never touched.
func (r *AlertRepository) DeleteResolvedBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(
		"DELETE FROM alerts WHERE state = ? AND resolved_at < ?",
		AlertStateResolved, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func (r *AlertRepository) query(query string, args ...interface{}) ([]Alert, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var alert Alert
		var triggered string
		var acknowledged, resolved sql.NullString
		if err := rows.Scan(&alert.AlertID, &alert.State, &alert.Severity, &alert.Message, &alert.Source, &triggered, &acknowledged, &resolved); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.TriggeredAt = parseAlertTime(triggered)
		if acknowledged.Valid {
			t := parseAlertTime(acknowledged.String)
			alert.AcknowledgedAt = &t
		}
		if resolved.Valid {
			t := parseAlertTime(resolved.String)
			alert.ResolvedAt = &t
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

func formatAlertTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseAlertTime(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}

// AlertTracker holds live alert state in memory, backed by the alerts
// table. Both the subscriber goroutine (worker events) and HTTP handlers
// (operator actions) mutate it, so every access goes through the mutex.
type AlertTracker struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	repo   *AlertRepository
	log    zerolog.Logger
}

// NewAlertTracker creates a tracker and rehydrates unresolved alerts from
// the repository.
func NewAlertTracker(repo *AlertRepository, log zerolog.Logger) (*AlertTracker, error) {
	tracker := &AlertTracker{
		alerts: make(map[string]*Alert),
		repo:   repo,
		log:    log.With().Str("component", "alert_tracker").Logger(),
	}

	open, err := repo.LoadOpen()
	if err != nil {
		return nil, fmt.Errorf("failed to load open alerts: %w", err)
	}
	for i := range open {
		alert := open[i]
		tracker.alerts[alert.AlertID] = &alert
	}
	if len(open) > 0 {
		tracker.log.Info().Int("alerts", len(open)).Msg("Rehydrated unresolved alerts")
	}

	return tracker, nil
}

// Trigger records an alert firing. A repeat trigger of an unresolved
// alert refreshes its message and severity without resetting an
// acknowledgment; a trigger after resolution starts a fresh lifecycle.
func (t *AlertTracker) Trigger(alertID, severity, message, source string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.alerts[alertID]
	if ok && existing.Active() {
		existing.Severity = severity
		existing.Message = message
		existing.Source = source
		return t.persist(existing)
	}

	alert := &Alert{
		AlertID:     alertID,
		State:       AlertStateTriggered,
		Severity:    severity,
		Message:     message,
		Source:      source,
		TriggeredAt: at.UTC(),
	}
	t.alerts[alertID] = alert
	return t.persist(alert)
}

// Acknowledge marks an alert as seen by an operator. Unknown ids error;
// acknowledging an already-resolved or already-acknowledged alert is a
// no-op. Returns whether the state changed.
func (t *AlertTracker) Acknowledge(alertID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	alert, ok := t.alerts[alertID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAlert, alertID)
	}
	if alert.State != AlertStateTriggered {
		return false, nil
	}

	now := time.Now().UTC()
	alert.State = AlertStateAcknowledged
	alert.AcknowledgedAt = &now
	return true, t.persist(alert)
}

// Resolve marks an alert as resolved. Unknown ids and repeat resolves are
// no-ops; resolution may race expiry or arrive twice from the worker.
// Returns whether the state changed.
func (t *AlertTracker) Resolve(alertID string, at time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	alert, ok := t.alerts[alertID]
	if !ok || alert.State == AlertStateResolved {
		return false, nil
	}

	resolvedAt := at.UTC()
	alert.State = AlertStateResolved
	alert.ResolvedAt = &resolvedAt
	return true, t.persist(alert)
}

// Active returns unresolved alerts, most recent first.
func (t *AlertTracker) Active() []Alert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := []Alert{}
	for _, alert := range t.alerts {
		if alert.Active() {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].TriggeredAt.After(active[j].TriggeredAt)
	})
	return active
}

// Get returns a copy of one alert.
func (t *AlertTracker) Get(alertID string) (Alert, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	alert, ok := t.alerts[alertID]
	if !ok {
		return Alert{}, false
	}
	return *alert, true
}

// ActiveCount returns how many alerts are unresolved.
func (t *AlertTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, alert := range t.alerts {
		if alert.Active() {
			count++
		}
	}
	return count
}

// persist writes through to the repository. Called with the lock held.
func (t *AlertTracker) persist(alert *Alert) error {
	if err := t.repo.Save(alert); err != nil {
		t.log.Error().Err(err).Str("alert_id", alert.AlertID).Msg("Failed to persist alert")
		return err
	}
	return nil
}
