package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the publish mirror.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func fingerprintKey(target string) string {
	return fmt.Sprintf("publish:fingerprint:%s", target)
}

func lockKey(target string) string {
	return fmt.Sprintf("publish:lock:%s", target)
}

// GetFingerprint returns the last published content fingerprint for target.
func (c *Client) GetFingerprint(ctx context.Context, target string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, fingerprintKey(target)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get failed: %w", err)
	}
	return val, true, nil
}

// SetFingerprint stores the fingerprint of content just published to target.
// A zero ttl keeps it forever.
func (c *Client) SetFingerprint(ctx context.Context, target, fingerprint string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, fingerprintKey(target), fingerprint, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// AcquireLock attempts to take the publish lock for target.
func (c *Client) AcquireLock(ctx context.Context, target string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(target), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseLock releases the publish lock for target.
func (c *Client) ReleaseLock(ctx context.Context, target string) error {
	return c.rdb.Del(ctx, lockKey(target)).Err()
}
