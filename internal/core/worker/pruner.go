package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/botrunner/internal/infra/storage"
)

// Pruner deletes old run and publish history based on retention policy.
type Pruner struct {
	retention time.Duration
	runs      storage.RunRepository
	publishes storage.PublishRepository
	logger    *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(
	retention time.Duration,
	runs storage.RunRepository,
	publishes storage.PublishRepository,
	logger *slog.Logger,
) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		retention: retention,
		runs:      runs,
		publishes: publishes,
		logger:    logger,
	}
}

func (p *Pruner) Name() string { return "pruner" }

// Run runs the pruner loop until ctx ends.
func (p *Pruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		return nil // Retention disabled
	}

	// Calculate check interval (e.g., 10% of retention period, but max 1 hour)
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes everything older than the retention period once.
func (p *Pruner) Prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	if n, err := p.runs.DeleteOlderThan(ctx, cutoff); err != nil {
		p.logger.Error("Failed to prune run attempts", "error", err)
	} else if n > 0 {
		p.logger.Info("Pruned run attempts", "count", n, "cutoff", cutoff)
	}

	if n, err := p.publishes.DeleteOlderThan(ctx, cutoff); err != nil {
		p.logger.Error("Failed to prune publish records", "error", err)
	} else if n > 0 {
		p.logger.Info("Pruned publish records", "count", n, "cutoff", cutoff)
	}
}
