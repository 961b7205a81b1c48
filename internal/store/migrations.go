// Package store provides the SQLite expansion journal for textexpander.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial journal of expansion activity",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Add runs table and tag entries with their daemon run",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
	{
		Version:     3,
		Description: "Index entries by short code for per-code statistics",
		Up:          migrationV3Up,
		Down:        migrationV3Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS entries (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    short_code    TEXT NOT NULL,
    completion    INTEGER NOT NULL DEFAULT 0,
    context       TEXT NOT NULL,
    typed         INTEGER NOT NULL DEFAULT 0,
    deleted       INTEGER NOT NULL DEFAULT 0,
    timestamp_ns  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp_ns);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_entries_timestamp;
DROP TABLE IF EXISTS entries;
`

const migrationV2Up = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_ns  INTEGER NOT NULL,
    stopped_ns  INTEGER,
    version     TEXT,
    layout      TEXT,
    os          TEXT
);

ALTER TABLE entries ADD COLUMN run_id TEXT;
`

const migrationV2Down = `
ALTER TABLE entries DROP COLUMN run_id;
DROP TABLE IF EXISTS runs;
`

const migrationV3Up = `
CREATE INDEX IF NOT EXISTS idx_entries_code ON entries(short_code, kind);
`

const migrationV3Down = `
DROP INDEX IF EXISTS idx_entries_code;
`

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    applied_at  INTEGER NOT NULL,
    description TEXT
)`

// MigrateDB brings the journal schema up to the latest version. Each
// migration runs in its own transaction together with its bookkeeping row.
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	for _, m := range pendingAfter(current) {
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.Up); err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
				m.Version, time.Now().UnixNano(), m.Description,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("store: migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// RollbackMigration undoes the most recent migration.
func RollbackMigration(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	if current == 0 {
		return errors.New("store: no migrations to roll back")
	}
	idx := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == current })
	if idx < 0 {
		return fmt.Errorf("store: migration %d not found", current)
	}
	m := migrations[idx]
	err = inTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(m.Down); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", current)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: roll back migration %d: %w", current, err)
	}
	return nil
}

func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func currentVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("store: schema version: %w", err)
	}
	return v, nil
}

func pendingAfter(version int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > version {
			out = append(out, m)
		}
	}
	return out
}

// MigrationStatus reports applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
}

// GetMigrationStatus returns the schema version and what remains to apply.
// A database without the bookkeeping table reports every migration pending.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{LatestVersion: migrations[len(migrations)-1].Version}
	current, err := currentVersion(db)
	if err != nil {
		status.Pending = migrations
		return status, nil
	}
	status.CurrentVersion = current
	status.Pending = pendingAfter(current)
	return status, nil
}

// ValidateSchema checks that the journal tables exist.
func ValidateSchema(db *sql.DB) error {
	for _, table := range []string{"entries", "runs", "schema_migrations"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			return fmt.Errorf("store: check table %s: %w", table, err)
		}
		if n == 0 {
			return fmt.Errorf("store: missing table %s", table)
		}
	}
	return nil
}
