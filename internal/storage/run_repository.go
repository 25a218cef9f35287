package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/frameseal/internal/model"
)

// ErrNotFound is returned when a run doesn't exist in the ledger.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("run not found")

// RunRepository persists batch runs and their per-image results.
type RunRepository interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	RecordResult(ctx context.Context, result *model.ImageResult) error
	GetRun(ctx context.Context, id int64) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	ListResults(ctx context.Context, runID int64) ([]model.ImageResult, error)
	CountRuns(ctx context.Context) (int64, error)
	CountResultsByStatus(ctx context.Context, status model.ResultStatus) (int64, error)
	Ping(ctx context.Context) error
}

// sqliteRunRepository is the SQLite implementation of RunRepository.
// Only the interface is exported; tests and callers never see this type.
type sqliteRunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a SQLite-backed RunRepository.
func NewRunRepository(db *sqlx.DB) RunRepository {
	return &sqliteRunRepository{db: db}
}

// CreateRun inserts run and fills in its ID, status and start time.
func (r *sqliteRunRepository) CreateRun(ctx context.Context, run *model.Run) error {
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO runs (format, total, status)
		VALUES (:format, :total, :status)
	`, run)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}

	// Read back the database-assigned timestamp.
	stored, err := r.GetRun(ctx, id)
	if err != nil {
		return err
	}
	*run = *stored
	return nil
}

// FinishRun stores the final counters and status and stamps finished_at.
func (r *sqliteRunRepository) FinishRun(ctx context.Context, run *model.Run) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE runs SET
			succeeded = :succeeded,
			failed = :failed,
			canceled = :canceled,
			status = :status,
			finished_at = CURRENT_TIMESTAMP
		WHERE id = :id
	`, run)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRunRepository) RecordResult(ctx context.Context, result *model.ImageResult) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO image_results (run_id, source_path, output_path, status, error_message, duration_ms)
		VALUES (:run_id, :source_path, :output_path, :status, :error_message, :duration_ms)
	`, result)
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", result.SourcePath, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	result.ID = id
	return nil
}

func (r *sqliteRunRepository) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	var run model.Run
	err := r.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (r *sqliteRunRepository) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	var runs []model.Run
	err := r.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// ListResults returns the results of one run in the order they were recorded.
func (r *sqliteRunRepository) ListResults(ctx context.Context, runID int64) ([]model.ImageResult, error) {
	var results []model.ImageResult
	err := r.db.SelectContext(ctx, &results,
		"SELECT * FROM image_results WHERE run_id = ? ORDER BY id ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("listing results for run %d: %w", runID, err)
	}
	return results, nil
}

func (r *sqliteRunRepository) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM runs")
	return count, err
}

func (r *sqliteRunRepository) CountResultsByStatus(ctx context.Context, status model.ResultStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM image_results WHERE status = ?", status)
	return count, err
}

// Ping checks that the database still answers.
func (r *sqliteRunRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
