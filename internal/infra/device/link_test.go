package device

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/botrunner/internal/recovery"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listen(t *testing.T) (net.Listener, Config) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return ln, Config{
		IP:            "127.0.0.1",
		Port:          addr.Port,
		ProbeInterval: 10 * time.Millisecond,
		Timeout:       time.Second,
	}
}

// serveProbes answers n probes then closes the connection.
func serveProbes(ln net.Listener, n int) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "getVersion" {
			_, _ = conn.Write([]byte("2.4.0\n"))
		}
	}
}

func TestLink_ClosedPeerIsConnectivityFailure(t *testing.T) {
	ln, cfg := listen(t)
	go serveProbes(ln, 3)

	link := NewLink(cfg, quietLogger())
	err := link.Run(context.Background())
	if err == nil {
		t.Fatal("expected error after peer closed")
	}
	if !recovery.IsConnectivityFailure(err) {
		t.Errorf("expected connectivity failure, got %v", err)
	}

	h := link.Health()
	if h.Version != "2.4.0" {
		t.Errorf("expected version from probes, got %q", h.Version)
	}
	if h.Connected {
		t.Error("link should report disconnected")
	}
	if h.ErrorRate <= 0 {
		t.Errorf("expected a recorded failure, got rate %v", h.ErrorRate)
	}
}

func TestLink_RefusedIsConnectivityFailure(t *testing.T) {
	ln, cfg := listen(t)
	_ = ln.Close()

	err := NewLink(cfg, quietLogger()).Run(context.Background())
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !recovery.IsConnectivityFailure(err) {
		t.Errorf("expected connectivity failure, got %v", err)
	}
}

func TestLink_CancelReturnsContextError(t *testing.T) {
	ln, cfg := listen(t)
	go serveProbes(ln, 1000)

	link := NewLink(cfg, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if !link.Health().Connected {
		t.Error("expected link to be connected")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop on cancel")
	}
}

func TestLink_RecentLogs(t *testing.T) {
	link := NewLink(Config{IP: "127.0.0.1", Port: 1}, quietLogger())
	for i := 0; i < logCapacity+10; i++ {
		link.Log("line " + strconv.Itoa(i))
	}

	all := link.RecentLogs(0)
	if len(all) != logCapacity {
		t.Fatalf("expected %d lines, got %d", logCapacity, len(all))
	}
	last := link.RecentLogs(2)
	if !strings.HasSuffix(last[1], "line "+strconv.Itoa(logCapacity+9)) {
		t.Errorf("unexpected newest line %q", last[1])
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := Config{IP: "192.168.0.1", Port: 6000}
	if got := cfg.Address(); got != "192.168.0.1:6000" {
		t.Errorf("unexpected address %q", got)
	}
}

func TestLink_Status(t *testing.T) {
	link := NewLink(Config{IP: "10.0.0.2", Port: 6000}, quietLogger())
	if got := link.Status(); got != "Disconnected from 10.0.0.2:6000." {
		t.Errorf("unexpected status %q", got)
	}
}
