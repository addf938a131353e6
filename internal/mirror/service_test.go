package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/botrunner/internal/infra/github"
	"github.com/vietddude/botrunner/internal/infra/storage/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	ok       bool
	contents []string
}

func (p *fakePublisher) TryPublish(_ context.Context, _ github.Config, content, _ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contents = append(p.contents, content)
	return p.ok
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contents)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enabledConfig() github.Config {
	return github.Config{PushEnabled: true, Repo: "octocat/Hello-World"}
}

func TestMirror_SkipsUnchangedContent(t *testing.T) {
	pub := &fakePublisher{ok: true}
	records := memory.NewPublishRepo(memory.NewMemoryStorage())
	svc := NewService(enabledConfig(), pub, WithRecords(records), WithLogger(quietLogger()))
	ctx := context.Background()

	res, err := svc.Mirror(ctx, "ABCDE", "test")
	if err != nil || !res.Published {
		t.Fatalf("first mirror: res=%+v err=%v", res, err)
	}

	res, err = svc.Mirror(ctx, "ABCDE", "test")
	if err != nil {
		t.Fatalf("second mirror: %v", err)
	}
	if !res.Skipped || res.Published {
		t.Errorf("expected skip, got %+v", res)
	}

	if _, err := svc.Mirror(ctx, "FGHIJ", "test"); err != nil {
		t.Fatalf("third mirror: %v", err)
	}
	if n := pub.calls(); n != 2 {
		t.Errorf("expected 2 publishes, got %d", n)
	}

	recent, _ := records.ListRecent(ctx, 10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	if !recent[1].Skipped {
		t.Errorf("expected middle record to be a skip: %+v", recent[1])
	}
	if recent[0].Target != "octocat/Hello-World@main:Dodo.txt" {
		t.Errorf("unexpected target %q", recent[0].Target)
	}
}

func TestMirror_UsesRecordsWhenCacheIsCold(t *testing.T) {
	pub := &fakePublisher{ok: true}
	records := memory.NewPublishRepo(memory.NewMemoryStorage())
	ctx := context.Background()

	first := NewService(enabledConfig(), pub, WithRecords(records), WithLogger(quietLogger()))
	if _, err := first.Mirror(ctx, "ABCDE", "test"); err != nil {
		t.Fatalf("mirror: %v", err)
	}

	// Fresh cache, same history.
	second := NewService(enabledConfig(), pub, WithRecords(records), WithLogger(quietLogger()))
	res, err := second.Mirror(ctx, "ABCDE", "test")
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if !res.Skipped {
		t.Errorf("expected skip from stored history, got %+v", res)
	}
}

func TestMirror_PushDisabled(t *testing.T) {
	pub := &fakePublisher{ok: true}
	cfg := enabledConfig()
	cfg.PushEnabled = false
	svc := NewService(cfg, pub, WithLogger(quietLogger()))

	if _, err := svc.Mirror(context.Background(), "ABCDE", "test"); !errors.Is(err, ErrPushDisabled) {
		t.Fatalf("expected ErrPushDisabled, got %v", err)
	}
	if pub.calls() != 0 {
		t.Error("publisher must not be called when push is disabled")
	}

	if _, err := svc.Force(context.Background(), "ABCDE", "test"); err != nil {
		t.Fatalf("Force: %v", err)
	}
	if pub.calls() != 1 {
		t.Error("Force should publish")
	}
}

func TestMirror_FailureIsRetried(t *testing.T) {
	pub := &fakePublisher{ok: false}
	svc := NewService(enabledConfig(), pub, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := svc.Mirror(ctx, "ABCDE", "test"); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	pub.ok = true
	res, err := svc.Mirror(ctx, "ABCDE", "test")
	if err != nil || !res.Published {
		t.Fatalf("expected retry to publish, res=%+v err=%v", res, err)
	}
}

func TestMirror_InvalidRepo(t *testing.T) {
	cfg := enabledConfig()
	cfg.Repo = "not-a-valid-repo"
	svc := NewService(cfg, &fakePublisher{ok: true}, WithLogger(quietLogger()))

	if _, err := svc.Mirror(context.Background(), "x", "test"); !errors.Is(err, github.ErrInvalidRepo) {
		t.Fatalf("expected ErrInvalidRepo, got %v", err)
	}
}

func TestMirror_LockHeld(t *testing.T) {
	cache := NewMemoryCache()
	svc := NewService(enabledConfig(), &fakePublisher{ok: true}, WithCache(cache), WithLogger(quietLogger()))
	ctx := context.Background()

	target := "octocat/Hello-World@main:Dodo.txt"
	if ok, _ := cache.AcquireLock(ctx, target, time.Minute); !ok {
		t.Fatal("expected to take lock")
	}
	if _, err := svc.Mirror(ctx, "x", "test"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	_ = cache.ReleaseLock(ctx, target)
	if _, err := svc.Mirror(ctx, "x", "test"); err != nil {
		t.Fatalf("expected publish after release, got %v", err)
	}
}

func TestWatcher_MirrorsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Dodo.txt")
	pub := &fakePublisher{ok: true}
	svc := NewService(enabledConfig(), pub, WithLogger(quietLogger()))
	w := NewWatcher(svc, path, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(path, []byte("ABCDE"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return pub.calls() == 1 })

	time.Sleep(50 * time.Millisecond)
	if n := pub.calls(); n != 1 {
		t.Errorf("unchanged file republished, calls=%d", n)
	}

	if err := os.WriteFile(path, []byte("FGHIJ"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return pub.calls() == 2 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcher_UnchangedFileIsNotRecordedAgain(t *testing.T) {
	pub := &fakePublisher{ok: true}
	records := memory.NewPublishRepo(memory.NewMemoryStorage())
	svc := NewService(enabledConfig(), pub, WithRecords(records), WithLogger(quietLogger()))

	path := filepath.Join(t.TempDir(), "Dodo.txt")
	if err := os.WriteFile(path, []byte("ABCDE"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w := NewWatcher(svc, path, time.Hour, quietLogger())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.poll(ctx)
	}

	recent, err := records.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 1 || !recent[0].Success {
		t.Fatalf("expected a single publish record, got %+v", recent)
	}

	// Restart with the remote already current: one skip, then quiet.
	restarted := NewWatcher(svc, path, time.Hour, quietLogger())
	for i := 0; i < 5; i++ {
		restarted.poll(ctx)
	}
	recent, _ = records.ListRecent(ctx, 10)
	if len(recent) != 2 || !recent[0].Skipped {
		t.Errorf("expected one skip record after restart, got %d records", len(recent))
	}
	if n := pub.calls(); n != 1 {
		t.Errorf("expected 1 publish, got %d", n)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("a") == Fingerprint("b") {
		t.Error("different content must differ")
	}
	if got := Fingerprint(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected empty digest %s", got)
	}
}
