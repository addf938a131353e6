package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/botrunner/internal/control"
)

type fakeTask struct {
	mu   sync.Mutex
	logs []string
}

func (t *fakeTask) Run(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (t *fakeTask) Status() string                 { return "ok" }

func (t *fakeTask) Log(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, msg)
}

func (t *fakeTask) RecentLogs(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.logs) {
		n = len(t.logs)
	}
	return append([]string(nil), t.logs[len(t.logs)-n:]...)
}

type fixedCurrent struct{ task control.AutomationTask }

func (c fixedCurrent) Task() control.AutomationTask { return c.task }
func (c fixedCurrent) Messenger() control.Messenger  { return nil }

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type dashboard struct {
	mu        sync.Mutex
	auth      string
	snapshots []Snapshot
}

func (d *dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	d.mu.Lock()
	d.auth = r.Header.Get("Authorization")
	d.mu.Unlock()

	_ = conn.WriteJSON(Command{Type: "log", Message: "hello from web"})
	for {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return
		}
		d.mu.Lock()
		d.snapshots = append(d.snapshots, snap)
		d.mu.Unlock()
	}
}

func (d *dashboard) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.snapshots)
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

func TestClient_StreamsStatus(t *testing.T) {
	d := &dashboard{}
	ts := httptest.NewServer(d)
	defer ts.Close()

	task := &fakeTask{}
	task.Log("booted")
	c := NewClient(Config{
		URL:      "ws" + strings.TrimPrefix(ts.URL, "http"),
		Token:    "secret",
		Interval: 10 * time.Millisecond,
	}, fixedCurrent{task: task}, func() string { return "running" }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return d.count() >= 3 })
	waitFor(t, func() bool {
		task.mu.Lock()
		defer task.mu.Unlock()
		return len(task.logs) == 2
	})

	d.mu.Lock()
	first := d.snapshots[0]
	auth := d.auth
	d.mu.Unlock()

	if auth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if first.Type != "status" || first.State != "running" || !first.Running || first.Status != "ok" {
		t.Errorf("unexpected snapshot %+v", first)
	}
	if len(first.Logs) == 0 || first.Logs[0] != "booted" {
		t.Errorf("expected recent logs in snapshot, got %v", first.Logs)
	}
	if task.RecentLogs(1)[0] != "[web] hello from web" {
		t.Errorf("expected web log command relayed, got %v", task.RecentLogs(2))
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestSnapshot_NoTask(t *testing.T) {
	c := NewClient(Config{}, fixedCurrent{}, nil, nil)
	snap := c.Snapshot()
	if snap.Running || snap.Status != "" {
		t.Errorf("expected idle snapshot, got %+v", snap)
	}
}
