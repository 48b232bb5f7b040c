// Package telemetry records render run outcomes and per-stage timings in a
// local SQLite database. Writes are best-effort on the render path.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	status       TEXT NOT NULL,
	quality      TEXT NOT NULL,
	output_path  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_durations (
	run_id      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, stage)
);

CREATE TABLE IF NOT EXISTS events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL,
	stage    TEXT NOT NULL,
	attempt  INTEGER NOT NULL,
	error    TEXT NOT NULL,
	at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
`

// Sink is a handle to the project telemetry database.
type Sink struct {
	conn *sql.DB
}

// Run is one recorded render run.
type Run struct {
	RunID      string    `json:"runId"`
	ProjectID  string    `json:"projectId"`
	Status     string    `json:"status"`
	Quality    string    `json:"quality"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// StageDuration is one stage timing for a run.
type StageDuration struct {
	RunID      string `json:"runId"`
	Stage      string `json:"stage"`
	DurationMs int64  `json:"durationMs"`
}

// RetryEvent is one recorded retry attempt.
type RetryEvent struct {
	RunID   string    `json:"runId"`
	Stage   string    `json:"stage"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// Open creates or opens the telemetry database at dbPath and applies the
// schema.
func Open(dbPath string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply telemetry schema: %w", err)
	}
	return &Sink{conn: conn}, nil
}

func (s *Sink) Close() error {
	return s.conn.Close()
}

// RecordRun upserts a run row with its stage durations and retry events in a
// single transaction.
func (s *Sink) RecordRun(run Run, stages map[string]int64, events []RetryEvent) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin telemetry write: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (run_id, project_id, status, quality, output_path, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			output_path = excluded.output_path,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		run.RunID, run.ProjectID, run.Status, run.Quality, run.OutputPath, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for stage, ms := range stages {
		_, err = tx.Exec(`INSERT INTO stage_durations (run_id, stage, duration_ms) VALUES (?, ?, ?)
			ON CONFLICT(run_id, stage) DO UPDATE SET duration_ms = excluded.duration_ms`,
			run.RunID, stage, ms)
		if err != nil {
			return fmt.Errorf("record stage duration: %w", err)
		}
	}

	for _, ev := range events {
		_, err = tx.Exec(`INSERT INTO events (run_id, stage, attempt, error, at) VALUES (?, ?, ?, ?, ?)`,
			run.RunID, ev.Stage, ev.Attempt, ev.Error, ev.At.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("record retry event: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, most recently finished first.
func (s *Sink) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.conn.Query(`SELECT run_id, project_id, status, quality, output_path, error, started_at, finished_at
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.ProjectID, &r.Status, &r.Quality, &r.OutputPath, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StageDurations returns the stage timings recorded for a run.
func (s *Sink) StageDurations(runID string) ([]StageDuration, error) {
	rows, err := s.conn.Query(`SELECT run_id, stage, duration_ms FROM stage_durations WHERE run_id = ? ORDER BY stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	var out []StageDuration
	for rows.Next() {
		var d StageDuration
		if err := rows.Scan(&d.RunID, &d.Stage, &d.DurationMs); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RetryEvents returns the retry events recorded for a run, oldest first.
func (s *Sink) RetryEvents(runID string) ([]RetryEvent, error) {
	rows, err := s.conn.Query(`SELECT run_id, stage, attempt, error, at FROM events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query retry events: %w", err)
	}
	defer rows.Close()

	var out []RetryEvent
	for rows.Next() {
		var ev RetryEvent
		var at string
		if err := rows.Scan(&ev.RunID, &ev.Stage, &ev.Attempt, &ev.Error, &at); err != nil {
			return nil, fmt.Errorf("scan retry event: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, ev)
	}
	return out, rows.Err()
}
