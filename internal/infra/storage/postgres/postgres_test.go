package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/botrunner/internal/core/domain"
)

func openLiveDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("E2E_DATABASE_URL")
	if os.Getenv("E2E_LIVE") == "" || url == "" {
		t.Skip("Skipping live postgres test. Set E2E_LIVE=true and E2E_DATABASE_URL to run.")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestRunRepo_Live(t *testing.T) {
	db := openLiveDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()

	run := &domain.RunAttempt{
		ID:        uuid.New().String(),
		Attempt:   1,
		Outcome:   domain.RunOutcomeRunning,
		StartedAt: time.Now(),
	}
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	run.Outcome = domain.RunOutcomeFailed
	run.Connectivity = true
	run.Errors = []string{"Connection refused"}
	run.FinishedAt = time.Now()
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}

	runs, err := repo.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("expected saved run first, got %+v", runs)
	}
	if runs[0].Outcome != domain.RunOutcomeFailed || len(runs[0].Errors) != 1 {
		t.Errorf("unexpected stored run: %+v", runs[0])
	}
}

func TestPublishRepo_Live(t *testing.T) {
	db := openLiveDB(t)
	repo := NewPublishRepo(db)
	ctx := context.Background()

	target := "octocat/Hello-World@main:" + uuid.New().String()
	record := &domain.PublishRecord{
		ID:          uuid.New().String(),
		Target:      target,
		Fingerprint: "abc",
		Success:     true,
		CreatedAt:   time.Now(),
	}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.LastSuccessful(ctx, target)
	if err != nil {
		t.Fatalf("LastSuccessful failed: %v", err)
	}
	if got == nil || got.Fingerprint != "abc" {
		t.Errorf("unexpected record: %+v", got)
	}
}
