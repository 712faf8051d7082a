// Package migrations implements a minimal, ordered SQL migration runner.
// Each migration file registers itself from an init() via Register; Run
// applies, in timestamp order, every registered migration not yet recorded
// as applied, in a single transaction per migration.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration is one ordered schema change. Timestamp must sort lexically in
// application order, so it uses "YYYYMMDD-HHmmss".
type Migration struct {
	Timestamp   string
	Description string
	Up          []string
}

var registry []Migration

// Register adds a migration to the package-level registry. Called from each
// migration file's init().
func Register(m Migration) {
	registry = append(registry, m)
}

// AppliedMigration describes one row of the schema_migrations table.
type AppliedMigration struct {
	Timestamp   string
	Description string
	AppliedAt   time.Time
}

// Run creates the schema_migrations bookkeeping table if needed, then applies
// every registered migration not yet recorded there, in timestamp order.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			timestamp   TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := getAppliedVersions(db)
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}

	ordered := make([]Migration, len(registry))
	copy(ordered, registry)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	for _, m := range ordered {
		if applied[m.Timestamp] {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Timestamp, m.Description, err)
		}
		logger.Info("applied migration", "timestamp", m.Timestamp, "description", m.Description)
	}
	return nil
}

func getAppliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT timestamp FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := map[string]bool{}
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		applied[ts] = true
	}
	return applied, rows.Err()
}

func runMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil {
			if isExpectedError(err) {
				continue
			}
			return fmt.Errorf("exec statement: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (timestamp, description, applied_at) VALUES (?, ?, ?)`,
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// isExpectedError tolerates re-running a statement against a schema that
// already has the column/index it would create, which happens when a
// migration's Up list is partially idempotent by construction.
func isExpectedError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") ||
		strings.Contains(msg, "already exists")
}

// GetAppliedMigrations returns every applied migration, most recent first.
func GetAppliedMigrations(db *sql.DB) ([]AppliedMigration, error) {
	rows, err := db.Query(`SELECT timestamp, description, applied_at FROM schema_migrations ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var appliedAt string
		if err := rows.Scan(&a.Timestamp, &a.Description, &appliedAt); err != nil {
			return nil, err
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetPendingMigrations returns registered migrations not yet recorded as applied.
func GetPendingMigrations(db *sql.DB) ([]Migration, error) {
	applied, err := getAppliedVersions(db)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range registry {
		if !applied[m.Timestamp] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Timestamp < pending[j].Timestamp })
	return pending, nil
}

// GetLatestVersion returns the timestamp of the most recently applied migration, or "".
func GetLatestVersion(db *sql.DB) (string, error) {
	var ts string
	err := db.QueryRow(`SELECT timestamp FROM schema_migrations ORDER BY timestamp DESC LIMIT 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return ts, err
}

// GetMigrationCount returns how many migrations have been applied.
func GetMigrationCount(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
	return n, err
}
