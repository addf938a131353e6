package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/integration/wsclient"
)

const (
	defaultInterval       = 15 * time.Second
	defaultReconnectDelay = 10 * time.Second
	recentLogLines        = 20
)

// Config holds the realtime web endpoint settings.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Interval       time.Duration `yaml:"interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// Snapshot is pushed to the web endpoint on every interval.
type Snapshot struct {
	Type      string    `json:"type"`
	State     string    `json:"state,omitempty"`
	Running   bool      `json:"running"`
	Status    string    `json:"status,omitempty"`
	Logs      []string  `json:"logs,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is sent by the web endpoint.
type Command struct {
	Type    string `json:"type"` // ping, refresh, log
	Message string `json:"message,omitempty"`
}

type statusReporter interface {
	Status() string
}

type logSource interface {
	RecentLogs(n int) []string
}

// StateFunc reports the supervisor state.
type StateFunc func() string

// Client streams bot status to a realtime web dashboard.
type Client struct {
	cfg     Config
	current control.Current
	state   StateFunc
	logger  *slog.Logger
}

var _ control.Integration = (*Client)(nil)

func NewClient(cfg Config, current control.Current, state StateFunc, logger *slog.Logger) *Client {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, current: current, state: state, logger: logger.With("integration", "web")}
}

func (c *Client) Name() string { return "web" }

// Run keeps a session open until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	return wsclient.RunReconnecting(ctx, c.logger, c.Name(), c.cfg.ReconnectDelay, c.session)
}

func (c *Client) session(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, err := wsclient.Dial(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.logger.Info("Connected to web endpoint", "url", c.cfg.URL)

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(c.Snapshot()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("send status: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case <-ticker.C:
		}
	}
}

func (c *Client) readLoop(conn *wsclient.Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if wsclient.IsNormalClose(err) {
				return nil
			}
			return fmt.Errorf("web read: %w", err)
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("Ignoring malformed web command", "error", err)
			continue
		}
		switch cmd.Type {
		case "ping":
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return err
			}
		case "refresh":
			if err := conn.WriteJSON(c.Snapshot()); err != nil {
				return err
			}
		case "log":
			if task := c.current.Task(); task != nil {
				task.Log("[web] " + cmd.Message)
			}
		default:
			c.logger.Debug("Unhandled web command", "type", cmd.Type)
		}
	}
}

// Snapshot builds the current status message.
func (c *Client) Snapshot() Snapshot {
	snap := Snapshot{Type: "status", Timestamp: time.Now().UTC()}
	if c.state != nil {
		snap.State = c.state()
	}

	task := c.current.Task()
	if task == nil {
		return snap
	}
	snap.Running = true
	if r, ok := task.(statusReporter); ok {
		snap.Status = r.Status()
	}
	if l, ok := task.(logSource); ok {
		snap.Logs = l.RecentLogs(recentLogLines)
	}
	return snap
}
