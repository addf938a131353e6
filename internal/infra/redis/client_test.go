package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKeys(t *testing.T) {
	target := "octocat/Hello-World@main:Dodo.txt"
	if got := fingerprintKey(target); got != "publish:fingerprint:"+target {
		t.Errorf("unexpected fingerprint key %q", got)
	}
	if got := lockKey(target); got != "publish:lock:"+target {
		t.Errorf("unexpected lock key %q", got)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClient_Live(t *testing.T) {
	url := os.Getenv("E2E_REDIS_URL")
	if os.Getenv("E2E_LIVE") == "" || url == "" {
		t.Skip("Skipping live redis test. Set E2E_LIVE=true and E2E_REDIS_URL to run.")
	}

	c, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	target := "test/" + uuid.New().String()

	if _, found, err := c.GetFingerprint(ctx, target); err != nil || found {
		t.Fatalf("expected no fingerprint, found=%v err=%v", found, err)
	}
	if err := c.SetFingerprint(ctx, target, "abc", time.Minute); err != nil {
		t.Fatalf("SetFingerprint failed: %v", err)
	}
	fp, found, err := c.GetFingerprint(ctx, target)
	if err != nil || !found || fp != "abc" {
		t.Fatalf("unexpected fingerprint %q found=%v err=%v", fp, found, err)
	}

	ok, err := c.AcquireLock(ctx, target, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock, ok=%v err=%v", ok, err)
	}
	ok, _ = c.AcquireLock(ctx, target, time.Minute)
	if ok {
		t.Error("second acquire should fail while held")
	}
	if err := c.ReleaseLock(ctx, target); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
}
