package universe

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles relationship index database operations against
// universe.db (universes + universe_members tables).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new universe repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}
}

// GetUniverse returns the universe row for a key, or nil when the key is
// not in the index. Membership is loaded separately via Members.
func (r *Repository) GetUniverse(key string) (*Record, error) {
	key = normalizeKey(key)

	row := r.db.QueryRow(`
		SELECT u.key, u.type, u.description, u.updated_at,
		       (SELECT COUNT(*) FROM universe_members m WHERE m.universe_key = u.key)
		FROM universes u
		WHERE u.key = ?
	`, key)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query universe %q: %w", key, err)
	}
	return rec, nil
}

// Members returns the symbols belonging to a universe, sorted. An empty
// slice for a known key is a valid result; callers distinguish known-empty
// from unknown via GetUniverse.
func (r *Repository) Members(key string) ([]string, error) {
	key = normalizeKey(key)

	rows, err := r.db.Query(`
		SELECT symbol FROM universe_members
		WHERE universe_key = ?
		ORDER BY symbol
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of %q: %w", key, err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan member symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members of %q: %w", key, err)
	}
	return symbols, nil
}

// ListUniverses returns all universes with member counts, optionally
// filtered by type. Results are ordered by key for stable listings.
func (r *Repository) ListUniverses(types ...string) ([]Record, error) {
	query := `
		SELECT u.key, u.type, u.description, u.updated_at,
		       (SELECT COUNT(*) FROM universe_members m WHERE m.universe_key = u.key)
		FROM universes u
	`
	args := []interface{}{}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(strings.TrimSpace(t)))
		}
		query += " WHERE u.type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY u.key"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list universes: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan universe row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate universes: %w", err)
	}
	return records, nil
}

// UpsertUniverse inserts or updates a universe row. Membership is managed
// separately through ReplaceMembers.
func (r *Repository) UpsertUniverse(rec Record) error {
	key := normalizeKey(rec.Key)
	if key == "" {
		return fmt.Errorf("universe key is required")
	}

	_, err := r.db.Exec(`
		INSERT INTO universes (key, type, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			type = excluded.type,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, key, strings.ToLower(strings.TrimSpace(rec.Type)), rec.Description, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert universe %q: %w", key, err)
	}
	return nil
}

// ReplaceMembers swaps the full membership of a universe in one
// transaction. Symbols are uppercased and deduplicated before insert.
func (r *Repository) ReplaceMembers(key string, symbols []string) error {
	key = normalizeKey(key)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM universe_members WHERE universe_key = ?", key); err != nil {
		return fmt.Errorf("failed to clear members of %q: %w", key, err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO universe_members (universe_key, symbol) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare member insert: %w", err)
	}
	defer stmt.Close()

	for _, symbol := range normalizeSymbols(symbols) {
		if _, err := stmt.Exec(key, symbol); err != nil {
			return fmt.Errorf("failed to insert member %s of %q: %w", symbol, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member replacement: %w", err)
	}

	r.log.Debug().Str("universe", key).Int("members", len(symbols)).Msg("Universe membership replaced")
	return nil
}

// Count returns the number of universes in the index.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM universes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count universes: %w", err)
	}
	return count, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var updatedAt sql.NullString
	if err := row.Scan(&rec.Key, &rec.Type, &rec.Description, &updatedAt, &rec.MemberCount); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
			rec.UpdatedAt = t
		}
	}
	return &rec, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// normalizeSymbols uppercases, trims, dedupes and sorts a symbol list.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
