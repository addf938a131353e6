package device

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	probeCommand = "getVersion\r\n"
	logCapacity  = 200
)

// Config holds the controlled device's address and probe timing.
type Config struct {
	IP            string        `yaml:"ip"`
	Port          int           `yaml:"port"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Link keeps a TCP connection to the device open and probes it until the
// context ends or the connection breaks. A Link is single use.
type Link struct {
	cfg    Config
	logger *slog.Logger
	health healthTracker

	mu   sync.Mutex
	logs []string
}

func NewLink(cfg Config, logger *slog.Logger) *Link {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		cfg:    cfg,
		logger: logger.With("device", cfg.Address()),
	}
}

// Run connects and probes. It returns ctx.Err() on cancellation and a
// wrapped network error when the link fails.
func (l *Link) Run(ctx context.Context) error {
	addr := l.cfg.Address()
	l.Log(fmt.Sprintf("Connecting to %s", addr))

	dialer := net.Dialer{Timeout: l.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("connect to device %s: %w", addr, err)
	}
	defer conn.Close()

	// Unblock pending reads on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	l.health.setConnected(true)
	defer l.health.setConnected(false)
	l.Log("Connected to device")

	reader := bufio.NewReader(conn)
	ticker := time.NewTicker(l.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		if err := l.probe(conn, reader); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.health.recordFailure()
			return fmt.Errorf("device probe: %w", err)
		}

		select {
		case <-ctx.Done():
			l.Log("Disconnecting from device")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Link) probe(conn net.Conn, reader *bufio.Reader) error {
	start := time.Now()
	if err := conn.SetDeadline(start.Add(l.cfg.Timeout)); err != nil {
		return err
	}
	if _, err := conn.Write([]byte(probeCommand)); err != nil {
		return err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	version := strings.TrimSpace(line)
	l.health.recordSuccess(version, time.Since(start))
	l.logger.Debug("Device probe ok", "version", version, "latency", time.Since(start))
	return nil
}

// Log appends msg to the link's recent log and the debug log.
func (l *Link) Log(msg string) {
	l.mu.Lock()
	l.logs = append(l.logs, fmt.Sprintf("%s %s", time.Now().Format(time.RFC3339), msg))
	if len(l.logs) > logCapacity {
		l.logs = l.logs[len(l.logs)-logCapacity:]
	}
	l.mu.Unlock()

	l.logger.Debug(msg)
}

// RecentLogs returns up to n of the newest log lines, oldest first.
func (l *Link) RecentLogs(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.logs) {
		n = len(l.logs)
	}
	out := make([]string, n)
	copy(out, l.logs[len(l.logs)-n:])
	return out
}

// Health returns the current link health.
func (l *Link) Health() Health {
	return l.health.get()
}

// Status is a one-line summary for chat and dashboards.
func (l *Link) Status() string {
	h := l.health.get()
	if !h.Connected {
		return fmt.Sprintf("Disconnected from %s.", l.cfg.Address())
	}
	if h.Version == "" {
		return fmt.Sprintf("Connected to %s.", l.cfg.Address())
	}
	return fmt.Sprintf("Connected to %s (version %s, latency %s).", l.cfg.Address(), h.Version, h.Latency.Round(time.Millisecond))
}
