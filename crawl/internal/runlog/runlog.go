// CLAUDE:SUMMARY SQLite run ledger recording per-page and per-item fetch outcomes for crawl runs.
// Package runlog keeps a queryable ledger of crawl activity in SQLite.
//
// Every page fetch and every item outcome is one row, so an interrupted
// run can be audited afterwards: which pages were empty, which items were
// skipped on network errors, how long fetches took. The ledger is
// best-effort observability: a failing ledger write is logged and
// swallowed, it never blocks the crawl.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source      TEXT NOT NULL,
    kind        TEXT NOT NULL,              -- 'page' | 'item'
    url         TEXT NOT NULL,
    status      TEXT NOT NULL,              -- 'ok' | 'empty' | 'skipped' | 'error'
    status_code INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_source ON fetch_log(source, created_at);
`

// Entry outcome kinds and statuses.
const (
	KindPage = "page"
	KindItem = "item"

	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Entry is one ledger row.
type Entry struct {
	Source     string
	Kind       string
	URL        string
	Status     string
	StatusCode int
	Error      string
	DurationMs int64
}

// SourceStats aggregates a source's ledger rows by status.
type SourceStats struct {
	Pages    int64
	Items    int64
	Errors   int64
	Duration time.Duration // summed fetch time
}

// Log is a run ledger backed by one SQLite file.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and if needed creates) the ledger database.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	// One writer connection keeps SQLite happy under worker-pool load.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &Log{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Record inserts one entry. Errors are logged, not returned: the ledger
// must never block or fail the crawl.
func (l *Log) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_log (source, kind, url, status, status_code, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Source, e.Kind, e.URL, e.Status, e.StatusCode, e.Error, e.DurationMs,
		time.Now().UnixMilli(),
	)
	if err != nil {
		l.logger.Warn("runlog: insert failed", "source", e.Source, "error", err)
	}
}

// Stats aggregates the ledger for one source.
func (l *Log) Stats(ctx context.Context, source string) (SourceStats, error) {
	var s SourceStats
	var durationMs int64
	err := l.db.QueryRowContext(ctx, `
		SELECT
		    COUNT(CASE WHEN kind = 'page' THEN 1 END),
		    COUNT(CASE WHEN kind = 'item' THEN 1 END),
		    COUNT(CASE WHEN status = 'error' THEN 1 END),
		    COALESCE(SUM(duration_ms), 0)
		FROM fetch_log WHERE source = ?`, source).
		Scan(&s.Pages, &s.Items, &s.Errors, &durationMs)
	if err != nil {
		return SourceStats{}, fmt.Errorf("runlog: stats %s: %w", source, err)
	}
	s.Duration = time.Duration(durationMs) * time.Millisecond
	return s, nil
}

// History returns the newest entries for a source, most recent first.
func (l *Log) History(ctx context.Context, source string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT source, kind, url, status, status_code, error, duration_ms
		 FROM fetch_log WHERE source = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Source, &e.Kind, &e.URL, &e.Status,
			&e.StatusCode, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
