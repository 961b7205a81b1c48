package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run or entry does not exist.
var ErrNotFound = errors.New("store: not found")

// Options tunes the SQLite connection.
type Options struct {
	// BusyTimeout bounds how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// Store is the SQLite expansion journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path and applies pending migrations.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps WAL writes serialized behind the journal writer.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginRun records a daemon start and returns the run with its new ID.
func (s *Store) BeginRun(ctx context.Context, r Run) (Run, error) {
	r.ID = uuid.NewString()
	if r.StartedAt.IsZero() {
		r.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_ns, version, layout, os)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.Version, r.Layout, r.OS,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// EndRun stamps the stop time of a run.
func (s *Store) EndRun(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	result, err := s.db.ExecContext(ctx, `UPDATE runs SET stopped_ns = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var started int64
	var stopped sql.NullInt64
	var version, lay, osName sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_ns, stopped_ns, version, layout, os FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &started, &stopped, &version, &lay, &osName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if stopped.Valid {
		r.StoppedAt = time.Unix(0, stopped.Int64)
	}
	r.Version, r.Layout, r.OS = version.String, lay.String, osName.String
	return &r, nil
}

// Insert writes entries in one transaction. Entries without an ID get one.
func (s *Store) Insert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, run_id, kind, short_code, completion, context, typed, deleted, timestamp_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Time.IsZero() {
			e.Time = s.now()
		}
		var run any
		if e.RunID != "" {
			run = e.RunID
		}
		if _, err := stmt.ExecContext(ctx, e.ID, run, e.Kind, e.ShortCode, e.Completion,
			e.Context, e.Typed, e.Deleted, e.Time.UnixNano()); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const entryColumns = `id, COALESCE(run_id, ''), kind, short_code, completion, context, typed, deleted, timestamp_ns`

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		ORDER BY timestamp_ns DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesForShortCode returns a short code's history, oldest first.
func (s *Store) EntriesForShortCode(ctx context.Context, code string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE short_code = ?
		ORDER BY timestamp_ns ASC, rowid ASC`, code)
	if err != nil {
		return nil, fmt.Errorf("query entries by short code: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.ShortCode, &e.Completion,
			&e.Context, &e.Typed, &e.Deleted, &ts); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Time = time.Unix(0, ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// Stats summarizes the journal with the top most-expanded short codes.
func (s *Store) Stats(ctx context.Context, top int) (*Stats, error) {
	st := &Stats{}
	var first, last sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(kind = 'expanded'), 0),
		       COALESCE(SUM(kind = 'undone'), 0),
		       COALESCE(SUM(kind = 'cancelled'), 0),
		       COALESCE(SUM(CASE WHEN kind = 'expanded' THEN typed ELSE 0 END), 0),
		       MIN(timestamp_ns), MAX(timestamp_ns)
		FROM entries`,
	).Scan(&st.Entries, &st.Expansions, &st.Undos, &st.Cancels, &st.CharsTyped, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	if first.Valid {
		st.First = time.Unix(0, first.Int64)
		st.Last = time.Unix(0, last.Int64)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	if top > 0 {
		rows, err := s.db.QueryContext(ctx, shortCodeStatsQuery+`
			ORDER BY expansions DESC, short_code ASC
			LIMIT ?`, top)
		if err != nil {
			return nil, fmt.Errorf("query top short codes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			sc, err := scanShortCodeStats(rows)
			if err != nil {
				return nil, err
			}
			st.Top = append(st.Top, sc)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate top short codes: %w", err)
		}
	}

	return st, nil
}

const shortCodeStatsQuery = `
	SELECT short_code,
	       SUM(kind = 'expanded') AS expansions,
	       SUM(kind = 'undone'),
	       SUM(kind = 'cancelled'),
	       MAX(timestamp_ns)
	FROM entries
	GROUP BY short_code`

type scanner interface {
	Scan(dest ...any) error
}

func scanShortCodeStats(row scanner) (ShortCodeStats, error) {
	var sc ShortCodeStats
	var last int64
	if err := row.Scan(&sc.ShortCode, &sc.Expansions, &sc.Undos, &sc.Cancels, &last); err != nil {
		return sc, fmt.Errorf("scan short code stats: %w", err)
	}
	sc.LastUsed = time.Unix(0, last)
	return sc, nil
}

// ShortCodeStats returns the aggregate for one short code.
func (s *Store) ShortCodeStats(ctx context.Context, code string) (*ShortCodeStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT short_code,
		       SUM(kind = 'expanded'), SUM(kind = 'undone'), SUM(kind = 'cancelled'),
		       MAX(timestamp_ns)
		FROM entries WHERE short_code = ?
		GROUP BY short_code`, code)
	sc, err := scanShortCodeStats(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("short code %q: %w", code, ErrNotFound)
		}
		return nil, err
	}
	return &sc, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE timestamp_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return result.RowsAffected()
}
