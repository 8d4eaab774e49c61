package database

// schemas maps database names to their embedded schema definitions.
// Every statement is idempotent so Migrate can run on each startup.
var schemas = map[string]string{
	"errors":   errorsSchema,
	"universe": universeSchema,
}

// errorsSchema holds the queryable error archive and alert history.
// error_events rows are immutable once inserted; the primary key on
// error_id makes duplicate deliveries from the broker collapse into
// a single row (INSERT OR IGNORE on the write path).
const errorsSchema = `
CREATE TABLE IF NOT EXISTS error_events (
    error_id   TEXT PRIMARY KEY,
    source     TEXT NOT NULL,
    severity   TEXT NOT NULL,
    category   TEXT NOT NULL,
    message    TEXT NOT NULL,
    component  TEXT NOT NULL DEFAULT '',
    traceback  TEXT,
    context    TEXT NOT NULL DEFAULT '{}',
    timestamp  TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_error_events_severity ON error_events(severity);
CREATE INDEX IF NOT EXISTS idx_error_events_category ON error_events(category);
CREATE INDEX IF NOT EXISTS idx_error_events_component ON error_events(component);
CREATE INDEX IF NOT EXISTS idx_error_events_timestamp ON error_events(timestamp);

CREATE TABLE IF NOT EXISTS alerts (
    alert_id        TEXT PRIMARY KEY,
    state           TEXT NOT NULL,
    severity        TEXT NOT NULL DEFAULT '',
    message         TEXT NOT NULL DEFAULT '',
    source          TEXT NOT NULL DEFAULT '',
    triggered_at    TEXT NOT NULL,
    acknowledged_at TEXT,
    resolved_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_state ON alerts(state);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved_at ON alerts(resolved_at);
`

// universeSchema holds the symbol-set relationship index the resolver reads.
const universeSchema = `
CREATE TABLE IF NOT EXISTS universes (
    key         TEXT PRIMARY KEY,
    type        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS universe_members (
    universe_key TEXT NOT NULL REFERENCES universes(key) ON DELETE CASCADE,
    symbol       TEXT NOT NULL,
    PRIMARY KEY (universe_key, symbol)
);

CREATE INDEX IF NOT EXISTS idx_universe_members_key ON universe_members(universe_key);
`
