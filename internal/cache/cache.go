// Package cache persists computed route results in an embedded sqlite
// database so interrupted or repeated runs only query the routing engine
// for pairs it has not seen before. The fingerprint is the primary key and
// writes are single-statement upserts, so concurrent workers can never
// leave a partial row behind.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Direction is one half of a route result: travel time in whole minutes and
// distance in whole kilometers, or an error marker when the routing engine
// could not resolve this direction.
type Direction struct {
	Minutes int
	Km      int
	Err     string // empty when the direction resolved successfully
}

// Failed reports whether this direction carries an error marker instead of
// usable numbers.
func (d Direction) Failed() bool {
	return d.Err != ""
}

// Result is the bidirectional outcome for one pair. Forward is From→To,
// Backward is To→From. A Result is written to the store exactly once per
// pair under normal operation and never partially.
type Result struct {
	Forward  Direction
	Backward Direction
}

// Store is a durable fingerprint→Result table. It is safe for concurrent
// use by multiple workers.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS routes (
	fingerprint TEXT PRIMARY KEY,
	from_time   INTEGER NOT NULL,
	from_dist   INTEGER NOT NULL,
	from_err    TEXT NOT NULL DEFAULT '',
	to_time     INTEGER NOT NULL,
	to_dist     INTEGER NOT NULL,
	to_err      TEXT NOT NULL DEFAULT '',
	updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);`

// Open opens (creating if necessary) the sqlite database at path and
// ensures the routes table exists. WAL mode keeps readers unblocked while
// workers upsert, and the busy timeout covers brief writer contention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored Result for fingerprint, or ok=false when the pair
// has not been computed yet.
func (s *Store) Get(ctx context.Context, fingerprint string) (Result, bool, error) {
	var r Result
	err := s.db.QueryRowContext(ctx,
		`SELECT from_time, from_dist, from_err, to_time, to_dist, to_err
		 FROM routes WHERE fingerprint = ?`, fingerprint).
		Scan(&r.Forward.Minutes, &r.Forward.Km, &r.Forward.Err,
			&r.Backward.Minutes, &r.Backward.Km, &r.Backward.Err)
	if err == sql.ErrNoRows {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("cache: get %s: %w", fingerprint, err)
	}
	return r, true, nil
}

// Put upserts the Result for fingerprint. Writing the same fingerprint
// twice is harmless: last write wins atomically, so a forced recompute
// replaces the old row without ever exposing a partial one.
func (s *Store) Put(ctx context.Context, fingerprint string, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (fingerprint, from_time, from_dist, from_err, to_time, to_dist, to_err, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(fingerprint) DO UPDATE SET
			from_time = excluded.from_time,
			from_dist = excluded.from_dist,
			from_err  = excluded.from_err,
			to_time   = excluded.to_time,
			to_dist   = excluded.to_dist,
			to_err    = excluded.to_err,
			updated_at = excluded.updated_at`,
		fingerprint, r.Forward.Minutes, r.Forward.Km, r.Forward.Err,
		r.Backward.Minutes, r.Backward.Km, r.Backward.Err)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", fingerprint, err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// All returns every stored entry keyed by fingerprint, for diagnostics and
// ad-hoc export.
func (s *Store) All(ctx context.Context) (map[string]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, from_time, from_dist, from_err, to_time, to_dist, to_err FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("cache: scan: %w", err)
	}
	defer rows.Close()

	out := map[string]Result{}
	for rows.Next() {
		var fp string
		var r Result
		if err := rows.Scan(&fp, &r.Forward.Minutes, &r.Forward.Km, &r.Forward.Err,
			&r.Backward.Minutes, &r.Backward.Km, &r.Backward.Err); err != nil {
			return nil, fmt.Errorf("cache: scan row: %w", err)
		}
		out[fp] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: scan: %w", err)
	}
	return out, nil
}
