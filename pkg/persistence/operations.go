package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CreateRun inserts run. ID and StartedAt are filled in when empty.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if s == nil {
		return nil
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
		INSERT INTO runs (id, request, status, project_root, plan_json, task_plan_json, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Request, run.Status, run.ProjectRoot, run.PlanJSON, run.TaskPlanJSON,
		formatTime(&run.StartedAt), formatTime(run.FinishedAt), run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun stores the mutable fields of run: status, plan documents, finish time
// and error.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if s == nil {
		return nil
	}
	query := `
		UPDATE runs SET status = ?, plan_json = ?, task_plan_json = ?, finished_at = ?, error = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		run.Status, run.PlanJSON, run.TaskPlanJSON, formatTime(run.FinishedAt), run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// FinishRun marks run finished now with status and an optional error.
func (s *Store) FinishRun(ctx context.Context, run *Run, status string, runErr error) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return s.UpdateRun(ctx, run)
}

// RecordStep inserts or replaces the outcome of step idx of a run.
func (s *Store) RecordStep(ctx context.Context, step *Step) error {
	if s == nil {
		return nil
	}
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	query := `
		INSERT INTO steps (id, run_id, idx, filepath, kind, attempts, content_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			filepath = excluded.filepath,
			kind = excluded.kind,
			attempts = excluded.attempts,
			content_hash = excluded.content_hash,
			error = excluded.error
	`
	_, err := s.db.ExecContext(ctx, query,
		step.ID, step.RunID, step.Index, step.Filepath, step.Kind, step.Attempts, step.ContentHash, step.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record step %d of run %s: %w", step.Index, step.RunID, err)
	}
	return nil
}

// GetRun returns the run with id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: %s (history disabled)", ErrRunNotFound, id)
	}
	query := `
		SELECT id, request, status, project_root, plan_json, task_plan_json, started_at, finished_at, error
		FROM runs WHERE id = ?
	`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, request, status, project_root, plan_json, task_plan_json, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC, id LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Steps returns the recorded steps of a run in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]*Step, error) {
	if s == nil {
		return nil, nil
	}
	query := `
		SELECT id, run_id, idx, filepath, kind, attempts, content_hash, error
		FROM steps WHERE run_id = ? ORDER BY idx
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*Step
	for rows.Next() {
		step := &Step{}
		if err := rows.Scan(&step.ID, &step.RunID, &step.Index, &step.Filepath,
			&step.Kind, &step.Attempts, &step.ContentHash, &step.Error); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&run.ID, &run.Request, &run.Status, &run.ProjectRoot,
		&run.PlanJSON, &run.TaskPlanJSON, &startedAt, &finishedAt, &run.Error); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	if finishedAt.Valid && finishedAt.String != "" {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finished_at %q: %w", finishedAt.String, err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// formatTime renders t for storage; nil maps to NULL.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
