// Package history records worker invocations in a SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/runoshun/git-jar/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id       TEXT NOT NULL,
	jar_date      TEXT NOT NULL,
	invocation_id TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	exit_code     INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	workspace     TEXT NOT NULL DEFAULT '',
	published     INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	recorded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_task ON runs (task_id);
`

// Store implements domain.RunHistory.
type Store struct {
	db *sql.DB
}

// Ensure Store implements domain.RunHistory interface.
var _ domain.RunHistory = (*Store)(nil)

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a run.
func (s *Store) Record(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (task_id, jar_date, invocation_id, outcome, exit_code,
			duration_ms, workspace, published, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.Date, rec.InvocationID, string(rec.Outcome), rec.ExitCode,
		rec.Duration.Milliseconds(), rec.Workspace, rec.Published, rec.Error, rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// List returns runs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.RunRecord, error) {
	query := `SELECT id, task_id, jar_date, invocation_id, outcome, exit_code,
		duration_ms, workspace, published, error, recorded_at FROM runs`
	var where []string
	var args []any
	if filter.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Date != "" {
		where = append(where, "jar_date = ?")
		args = append(args, filter.Date)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var outcome string
		var durationMS, recordedAt int64
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Date, &rec.InvocationID, &outcome, &rec.ExitCode,
			&durationMS, &rec.Workspace, &rec.Published, &rec.Error, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt = time.UnixMilli(recordedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}
