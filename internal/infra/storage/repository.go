package storage

import (
	"context"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
)

// RunRepository stores supervisor run attempts
type RunRepository interface {
	// Save inserts or updates a run attempt by ID
	Save(ctx context.Context, run *domain.RunAttempt) error

	// ListRecent returns up to limit attempts, newest first
	ListRecent(ctx context.Context, limit int) ([]*domain.RunAttempt, error)

	// DeleteOlderThan removes attempts started before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PublishRepository stores mirror history
type PublishRepository interface {
	// Save appends a publish record
	Save(ctx context.Context, record *domain.PublishRecord) error

	// LastSuccessful returns the newest successful record for target, or nil
	LastSuccessful(ctx context.Context, target string) (*domain.PublishRecord, error)

	// ListRecent returns up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*domain.PublishRecord, error)

	// DeleteOlderThan removes records created before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
