package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/integration/wsclient"
)

const (
	DefaultURL            = "wss://irc-ws.chat.twitch.tv:443"
	defaultReconnectDelay = 10 * time.Second
)

// Config holds the chat channel settings.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Username       string        `yaml:"username"`
	Channel        string        `yaml:"channel"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// statusReporter is implemented by tasks that can describe themselves.
type statusReporter interface {
	Status() string
}

// Client joins an IRC-over-websocket channel, answers keepalives and the
// !status command, and copies channel messages to the current task's log.
type Client struct {
	cfg     Config
	current control.Current
	logger  *slog.Logger
}

var _ control.Integration = (*Client)(nil)

func NewClient(cfg Config, current control.Current, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	cfg.Channel = strings.ToLower(strings.TrimPrefix(cfg.Channel, "#"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, current: current, logger: logger.With("integration", "chat")}
}

func (c *Client) Name() string { return "chat" }

// Run keeps a session open until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	return wsclient.RunReconnecting(ctx, c.logger, c.Name(), c.cfg.ReconnectDelay, c.session)
}

func (c *Client) session(ctx context.Context) error {
	conn, err := wsclient.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	token := c.cfg.Token
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	for _, line := range []string{
		"PASS " + token,
		"NICK " + strings.ToLower(c.cfg.Username),
		"JOIN #" + c.cfg.Channel,
	} {
		if err := conn.WriteText(line); err != nil {
			return fmt.Errorf("chat login: %w", err)
		}
	}
	c.logger.Info("Joined chat channel", "channel", c.cfg.Channel)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("chat read: %w", err)
		}
		// One frame may carry several CRLF-separated lines.
		for _, raw := range strings.Split(string(data), "\r\n") {
			if raw == "" {
				continue
			}
			if err := c.handle(conn, ParseLine(raw)); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handle(conn *wsclient.Conn, msg Message) error {
	switch msg.Command {
	case "PING":
		return conn.WriteText("PONG :" + msg.Trailing)
	case "PRIVMSG":
		if task := c.current.Task(); task != nil {
			task.Log(fmt.Sprintf("[chat] %s: %s", msg.Nick(), msg.Trailing))
		}
		if strings.TrimSpace(msg.Trailing) == "!status" {
			return conn.WriteText(fmt.Sprintf("PRIVMSG #%s :%s", c.cfg.Channel, c.status()))
		}
	case "NOTICE":
		c.logger.Warn("Chat notice", "message", msg.Trailing)
	}
	return nil
}

func (c *Client) status() string {
	task := c.current.Task()
	if task == nil {
		return "Bot is not running."
	}
	if r, ok := task.(statusReporter); ok {
		return r.Status()
	}
	return "Bot is running."
}
