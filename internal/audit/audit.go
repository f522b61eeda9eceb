// Package audit keeps an append-only log of translation requests in SQLite.
// The log is operational telemetry for the admin console; the key file, not
// this database, is the source of truth for credentials.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS translate_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	key_prefix  TEXT NOT NULL,
	from_lang   TEXT NOT NULL,
	to_lang     TEXT NOT NULL,
	input_chars INTEGER NOT NULL,
	output_chars INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_translate_log_key ON translate_log(key_prefix, created_at);
`

// Entry is one logged translation request.
type Entry struct {
	ID          int64     `db:"id" json:"id"`
	KeyPrefix   string    `db:"key_prefix" json:"key_prefix"`
	FromLang    string    `db:"from_lang" json:"from"`
	ToLang      string    `db:"to_lang" json:"to"`
	InputChars  int       `db:"input_chars" json:"input_chars"`
	OutputChars int       `db:"output_chars" json:"output_chars"`
	DurationMs  int64     `db:"duration_ms" json:"duration_ms"`
	Status      int       `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// KeyUsage aggregates log rows per key for the admin dashboard.
type KeyUsage struct {
	KeyPrefix string    `db:"key_prefix" json:"key_prefix"`
	Requests  int64     `db:"requests" json:"requests"`
	LastUsed  time.Time `db:"last_used" json:"last_used"`
}

// Log wraps the SQLite usage database. Pass an empty path for in-memory.
type Log struct {
	db *sqlx.DB
}

// Open creates or opens the usage database at path.
func Open(path string) (*Log, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts one entry. The ID and CreatedAt fields are populated.
func (l *Log) Record(ctx context.Context, e *Entry) error {
	e.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO translate_log
		(key_prefix, from_lang, to_lang, input_chars, output_chars, duration_ms, status, created_at)
		VALUES
		(:key_prefix, :from_lang, :to_lang, :input_chars, :output_chars, :duration_ms, :status, :created_at)`

	result, err := l.db.NamedExecContext(ctx, q, e)
	if err != nil {
		return fmt.Errorf("insert translate log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get log id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	err := l.db.SelectContext(ctx, &entries,
		"SELECT * FROM translate_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list translate log: %w", err)
	}
	return entries, nil
}

// UsageByKey returns per-key request counts and last-used timestamps.
func (l *Log) UsageByKey(ctx context.Context) (map[string]KeyUsage, error) {
	var rows []KeyUsage
	err := l.db.SelectContext(ctx, &rows,
		`SELECT key_prefix, COUNT(*) AS requests, MAX(created_at) AS last_used
		 FROM translate_log GROUP BY key_prefix`)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	usage := make(map[string]KeyUsage, len(rows))
	for _, r := range rows {
		usage[r.KeyPrefix] = r
	}
	return usage, nil
}

// Count returns the total number of logged requests.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM translate_log"); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count translate log: %w", err)
	}
	return n, nil
}
