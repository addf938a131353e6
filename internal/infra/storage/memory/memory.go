package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/storage"
)

type MemoryStorage struct {
	runs     map[string]*domain.RunAttempt
	runOrder []string
	publish  []*domain.PublishRecord
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs: make(map[string]*domain.RunAttempt),
	}
}

// -----------------------------------------------------------------------------
// Run Repository
// -----------------------------------------------------------------------------

type RunRepo struct {
	store *MemoryStorage
}

var _ storage.RunRepository = (*RunRepo)(nil)

func NewRunRepo(store *MemoryStorage) *RunRepo {
	return &RunRepo{store: store}
}

func (r *RunRepo) Save(ctx context.Context, run *domain.RunAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.runs[run.ID]; !ok {
		r.store.runOrder = append(r.store.runOrder, run.ID)
	}
	cp := *run
	cp.Errors = append([]string(nil), run.Errors...)
	r.store.runs[run.ID] = &cp
	return nil
}

func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*domain.RunAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.RunAttempt
	for i := len(r.store.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.store.runs[r.store.runOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RunRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	kept := r.store.runOrder[:0]
	for _, id := range r.store.runOrder {
		if r.store.runs[id].StartedAt.Before(cutoff) {
			delete(r.store.runs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.store.runOrder = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Publish Repository
// -----------------------------------------------------------------------------

type PublishRepo struct {
	store *MemoryStorage
}

var _ storage.PublishRepository = (*PublishRepo)(nil)

func NewPublishRepo(store *MemoryStorage) *PublishRepo {
	return &PublishRepo{store: store}
}

func (r *PublishRepo) Save(ctx context.Context, record *domain.PublishRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *record
	r.store.publish = append(r.store.publish, &cp)
	return nil
}

func (r *PublishRepo) LastSuccessful(ctx context.Context, target string) (*domain.PublishRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := len(r.store.publish) - 1; i >= 0; i-- {
		rec := r.store.publish[i]
		if rec.Target == target && rec.Success {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PublishRepo) ListRecent(ctx context.Context, limit int) ([]*domain.PublishRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.PublishRecord
	for i := len(r.store.publish) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.store.publish[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *PublishRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	kept := r.store.publish[:0]
	for _, rec := range r.store.publish {
		if rec.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.store.publish = kept
	return deleted, nil
}
