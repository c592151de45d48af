// Package history persists a deployment audit trail in SQLite.
//
// History is optional: when no database path is configured the service
// keeps no on-disk state and this package is never instantiated.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages deployment history in SQLite.
type History struct {
	db *sql.DB
}

// New opens (or creates) the history database at dbPath.
func New(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// initSchema creates the database tables and indexes
func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			deploy_id TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT,
			exit_code INTEGER,
			stderr TEXT,
			duration_seconds REAL,
			remote_addr TEXT NOT NULL,
			error_message TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Create index for efficient queries
	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deployments_started
		ON deployments(started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Add records a deployment attempt in the history.
func (h *History) Add(ctx context.Context, record *Record) (int64, error) {
	startedAt := record.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	completedAt := time.Now().UTC().Format(time.RFC3339)
	if record.CompletedAt != nil {
		completedAt = record.CompletedAt.UTC().Format(time.RFC3339)
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deployments
		(deploy_id, status, stage, exit_code, stderr, duration_seconds,
		 remote_addr, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.DeployID,
		record.Status,
		record.Stage,
		record.ExitCode,
		record.Stderr,
		record.DurationSeconds,
		record.RemoteAddr,
		record.ErrorMessage,
		startedAt.UTC().Format(time.RFC3339),
		completedAt,
	)

	if err != nil {
		return 0, fmt.Errorf("failed to insert deployment record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// Latest returns the most recent deployment attempt, or nil when the
// history is empty.
func (h *History) Latest(ctx context.Context) (*Record, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, deploy_id, status, stage, exit_code, stderr,
		       duration_seconds, remote_addr, error_message, started_at, completed_at
		FROM deployments
		ORDER BY id DESC
		LIMIT 1
	`)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest deployment: %w", err)
	}

	return record, nil
}

// Recent returns up to limit deployment attempts, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, deploy_id, status, stage, exit_code, stderr,
		       duration_seconds, remote_addr, error_message, started_at, completed_at
		FROM deployments
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a database row into a Record.
// Works with both *sql.Row and *sql.Rows
func scanRecord(s scanner) (*Record, error) {
	var record Record
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.DeployID,
		&record.Status,
		&record.Stage,
		&record.ExitCode,
		&record.Stderr,
		&record.DurationSeconds,
		&record.RemoteAddr,
		&record.ErrorMessage,
		&startedAtStr,
		&completedAtStr,
	)

	if err != nil {
		return nil, err
	}

	// Parse timestamps
	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
