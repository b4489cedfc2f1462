package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder implements Recorder backed by a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) a SQLite database at dbPath and
// creates the audit tables.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the CLI read the audit log while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			request_id  TEXT,
			date        TEXT,
			start_token TEXT,
			end_token   TEXT,
			status      INTEGER,
			returned    INTEGER,
			dropped     INTEGER,
			duration_us INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_ts ON query_log(timestamp)`,

		`CREATE TABLE IF NOT EXISTS upstream_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			request_id  TEXT,
			status      INTEGER,
			bytes       INTEGER,
			duration_us INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_upstream_ts ON upstream_log(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// RecordQuery inserts one query event.
func (r *SQLiteRecorder) RecordQuery(ctx context.Context, evt *QueryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO query_log
		(timestamp, request_id, date, start_token, end_token, status, returned, dropped, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.Time.UnixMilli(), evt.RequestID, evt.Date, evt.Start, evt.End,
		evt.Status, evt.Returned, evt.Dropped, evt.Duration.Microseconds(), evt.Error)
	if err != nil {
		return fmt.Errorf("insert query_log: %w", err)
	}
	return nil
}

// RecordUpstream inserts one upstream call event.
func (r *SQLiteRecorder) RecordUpstream(ctx context.Context, evt *UpstreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO upstream_log
		(timestamp, request_id, status, bytes, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		evt.Time.UnixMilli(), evt.RequestID, evt.Status, evt.Bytes, evt.Duration.Microseconds(), evt.Error)
	if err != nil {
		return fmt.Errorf("insert upstream_log: %w", err)
	}
	return nil
}

// RecentQueries returns the newest query events first.
func (r *SQLiteRecorder) RecentQueries(ctx context.Context, limit int) ([]QueryEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT
		timestamp, request_id, date, start_token, end_token, status, returned, dropped, duration_us, error
		FROM query_log ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select query_log: %w", err)
	}
	defer rows.Close()

	var out []QueryEvent
	for rows.Next() {
		var (
			evt        QueryEvent
			ms, micros int64
		)
		if err := rows.Scan(&ms, &evt.RequestID, &evt.Date, &evt.Start, &evt.End,
			&evt.Status, &evt.Returned, &evt.Dropped, &micros, &evt.Error); err != nil {
			return nil, err
		}
		evt.Time = time.UnixMilli(ms)
		evt.Duration = time.Duration(micros) * time.Microsecond
		out = append(out, evt)
	}
	return out, rows.Err()
}
