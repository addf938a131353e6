package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/storage"
)

// RunRepo implements storage.RunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

var _ storage.RunRepository = (*RunRepo)(nil)

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

type runRow struct {
	ID           string       `db:"id"`
	Attempt      int          `db:"attempt"`
	Outcome      string       `db:"outcome"`
	Connectivity bool         `db:"connectivity"`
	Errors       string       `db:"errors"`
	StartedAt    time.Time    `db:"started_at"`
	FinishedAt   sql.NullTime `db:"finished_at"`
}

const upsertRun = `
INSERT INTO run_attempts (id, attempt, outcome, connectivity, errors, started_at, finished_at)
VALUES (:id, :attempt, :outcome, :connectivity, :errors, :started_at, :finished_at)
ON CONFLICT (id) DO UPDATE SET
    outcome = EXCLUDED.outcome,
    connectivity = EXCLUDED.connectivity,
    errors = EXCLUDED.errors,
    finished_at = EXCLUDED.finished_at`

// Save inserts or updates a run attempt.
func (r *RunRepo) Save(ctx context.Context, run *domain.RunAttempt) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	row := runRow{
		ID:           run.ID,
		Attempt:      run.Attempt,
		Outcome:      string(run.Outcome),
		Connectivity: run.Connectivity,
		Errors:       string(encoded),
		StartedAt:    run.StartedAt,
		FinishedAt:   sql.NullTime{Time: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
	}
	if _, err := r.db.NamedExecContext(ctx, upsertRun, row); err != nil {
		return fmt.Errorf("failed to save run attempt: %w", err)
	}
	return nil
}

// ListRecent returns the newest run attempts.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*domain.RunAttempt, error) {
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `
SELECT id, attempt, outcome, connectivity, errors, started_at, finished_at
FROM run_attempts
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run attempts: %w", err)
	}

	runs := make([]*domain.RunAttempt, 0, len(rows))
	for _, row := range rows {
		run := &domain.RunAttempt{
			ID:           row.ID,
			Attempt:      row.Attempt,
			Outcome:      domain.RunOutcome(row.Outcome),
			Connectivity: row.Connectivity,
			StartedAt:    row.StartedAt,
		}
		if row.FinishedAt.Valid {
			run.FinishedAt = row.FinishedAt.Time
		}
		if len(row.Errors) > 0 {
			if err := json.Unmarshal([]byte(row.Errors), &run.Errors); err != nil {
				return nil, fmt.Errorf("failed to decode run errors: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// DeleteOlderThan removes attempts started before cutoff.
func (r *RunRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM run_attempts WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune run attempts: %w", err)
	}
	return res.RowsAffected()
}
