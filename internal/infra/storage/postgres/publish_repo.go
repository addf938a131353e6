package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/storage"
)

// PublishRepo implements storage.PublishRepository using PostgreSQL.
type PublishRepo struct {
	db *DB
}

var _ storage.PublishRepository = (*PublishRepo)(nil)

// NewPublishRepo creates a new PostgreSQL publish repository.
func NewPublishRepo(db *DB) *PublishRepo {
	return &PublishRepo{db: db}
}

// Save appends a publish record.
func (r *PublishRepo) Save(ctx context.Context, record *domain.PublishRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO publish_records (id, target, label, fingerprint, success, skipped, created_at)
VALUES (:id, :target, :label, :fingerprint, :success, :skipped, :created_at)`, record)
	if err != nil {
		return fmt.Errorf("failed to save publish record: %w", err)
	}
	return nil
}

// LastSuccessful returns the newest successful record for target.
func (r *PublishRepo) LastSuccessful(ctx context.Context, target string) (*domain.PublishRecord, error) {
	var record domain.PublishRecord
	err := r.db.GetContext(ctx, &record, `
SELECT id, target, label, fingerprint, success, skipped, created_at
FROM publish_records
WHERE target = $1 AND success
ORDER BY created_at DESC
LIMIT 1`, target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last publish record: %w", err)
	}
	return &record, nil
}

// ListRecent returns the newest publish records.
func (r *PublishRepo) ListRecent(ctx context.Context, limit int) ([]*domain.PublishRecord, error) {
	var records []*domain.PublishRecord
	err := r.db.SelectContext(ctx, &records, `
SELECT id, target, label, fingerprint, success, skipped, created_at
FROM publish_records
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish records: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes records created before cutoff.
func (r *PublishRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM publish_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune publish records: %w", err)
	}
	return res.RowsAffected()
}
