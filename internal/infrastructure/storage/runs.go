package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

var runColumns = []string{"id", "workspace", "task_id", "status", "message", "created_at", "started_at", "finished_at"}

// CreateRun inserts a run and fills its id.
func (q *queries) CreateRun(ctx context.Context, run *domain.PipelineRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = q.now()
	}
	row, err := q.queryRow(ctx, q.sb.Insert("pipeline_runs").
		Columns(runColumns[1:]...).
		Values(
			run.Workspace,
			run.TaskID,
			string(run.Status),
			nullString(run.Message),
			run.CreatedAt.UTC(),
			nullTime(run.StartedAt),
			nullTime(run.FinishedAt),
		).
		Suffix("RETURNING id"))
	if err != nil {
		return err
	}
	if err := row.Scan(&run.ID); err != nil {
		return fmt.Errorf("insert run %s: %w", run.TaskID, err)
	}
	return nil
}

// UpdateRun persists the status, message and timestamps of a run.
func (q *queries) UpdateRun(ctx context.Context, run *domain.PipelineRun) error {
	res, err := q.exec(ctx, q.sb.Update("pipeline_runs").
		Set("status", string(run.Status)).
		Set("message", nullString(run.Message)).
		Set("started_at", nullTime(run.StartedAt)).
		Set("finished_at", nullTime(run.FinishedAt)).
		Where(sq.Eq{"id": run.ID}))
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.TaskID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// Run loads a run by id.
func (q *queries) Run(ctx context.Context, id int64) (*domain.PipelineRun, error) {
	row, err := q.queryRow(ctx, q.sb.Select(runColumns...).From("pipeline_runs").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", id, err)
	}
	return &run, nil
}

// RecentRuns lists the newest runs of a workspace.
func (q *queries) RecentRuns(ctx context.Context, workspace string, limit int) ([]domain.PipelineRun, error) {
	builder := q.sb.Select(runColumns...).
		From("pipeline_runs").
		Where(sq.Eq{"workspace": workspace}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	runs, err := queryAll(ctx, q, builder, scanRun)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// CountRuns returns the number of runs recorded for a workspace.
func (q *queries) CountRuns(ctx context.Context, workspace string) (int, error) {
	row, err := q.queryRow(ctx, q.sb.Select("COUNT(*)").From("pipeline_runs").Where(sq.Eq{"workspace": workspace}))
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}

func scanRun(row rowScanner) (domain.PipelineRun, error) {
	var (
		run               domain.PipelineRun
		status            string
		message           sql.NullString
		started, finished sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Workspace,
		&run.TaskID,
		&status,
		&message,
		&run.CreatedAt,
		&started,
		&finished,
	)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	run.Status = domain.RunStatus(status)
	run.Message = message.String
	run.CreatedAt = run.CreatedAt.UTC()
	run.StartedAt = timePtr(started)
	run.FinishedAt = timePtr(finished)
	return run, nil
}
