package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/storage/memory"
)

func TestPruner_Prune(t *testing.T) {
	store := memory.NewMemoryStorage()
	runs := memory.NewRunRepo(store)
	publishes := memory.NewPublishRepo(store)
	ctx := context.Background()

	_ = runs.Save(ctx, &domain.RunAttempt{ID: "old", StartedAt: time.Now().Add(-2 * time.Hour)})
	_ = runs.Save(ctx, &domain.RunAttempt{ID: "new", StartedAt: time.Now()})
	_ = publishes.Save(ctx, &domain.PublishRecord{ID: "old", CreatedAt: time.Now().Add(-2 * time.Hour)})

	p := NewPruner(time.Hour, runs, publishes, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Prune(ctx)

	left, _ := runs.ListRecent(ctx, 10)
	if len(left) != 1 || left[0].ID != "new" {
		t.Errorf("expected only the new run, got %+v", left)
	}
	recs, _ := publishes.ListRecent(ctx, 10)
	if len(recs) != 0 {
		t.Errorf("expected publish records pruned, got %d", len(recs))
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	store := memory.NewMemoryStorage()
	p := NewPruner(0, memory.NewRunRepo(store), memory.NewPublishRepo(store), nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("disabled pruner should return")
	}
}
