package mirror

import (
	"context"
	"sync"
	"time"
)

// Cache remembers the last published fingerprint per target and serialises
// publishers of the same target. *redis.Client satisfies it.
type Cache interface {
	GetFingerprint(ctx context.Context, target string) (string, bool, error)
	SetFingerprint(ctx context.Context, target, fingerprint string, ttl time.Duration) error
	AcquireLock(ctx context.Context, target string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, target string) error
}

// MemoryCache is a process-local Cache. Entries do not expire.
type MemoryCache struct {
	mu           sync.Mutex
	fingerprints map[string]string
	locks        map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		fingerprints: make(map[string]string),
		locks:        make(map[string]time.Time),
	}
}

func (c *MemoryCache) GetFingerprint(_ context.Context, target string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp, ok := c.fingerprints[target]
	return fp, ok, nil
}

func (c *MemoryCache) SetFingerprint(_ context.Context, target, fingerprint string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprints[target] = fingerprint
	return nil
}

func (c *MemoryCache) AcquireLock(_ context.Context, target string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if until, held := c.locks[target]; held && time.Now().Before(until) {
		return false, nil
	}
	c.locks[target] = time.Now().Add(ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseLock(_ context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, target)
	return nil
}
