package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/integration/wsclient"
)

// ErrNotConnected is returned by Disconnect before RunMain has started. A later
// RunMain call on the same Messenger returns immediately.
var ErrNotConnected = errors.New("messenger not connected")

// Config holds the messaging gateway settings.
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	GatewayURL string `yaml:"gateway_url"`
}

// Frame is a gateway message.
type Frame struct {
	Op   string          `json:"op"` // identify, ready, heartbeat, heartbeat_ack, message
	Data json.RawMessage `json:"d,omitempty"`
}

type identify struct {
	Token string `json:"token"`
}

// MessageEvent is the payload of a "message" frame.
type MessageEvent struct {
	Author  string `json:"author"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// Messenger connects the automation task to a chat gateway. One Messenger
// serves a single RunMain call.
type Messenger struct {
	cfg    Config
	task   control.AutomationTask
	logger *slog.Logger

	mu       sync.Mutex
	conn     *wsclient.Conn
	started  bool
	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

var _ control.Messenger = (*Messenger)(nil)

func NewMessenger(cfg Config, task control.AutomationTask, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{
		cfg:    cfg,
		task:   task,
		logger:   logger.With("integration", "messaging"),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// NewFactory returns a control.MessengerFactory bound to cfg.
func NewFactory(cfg Config, logger *slog.Logger) control.MessengerFactory {
	return func(task control.AutomationTask) control.Messenger {
		return NewMessenger(cfg, task, logger)
	}
}

// RunMain identifies with token and relays gateway messages to the task log
// until ctx ends, Disconnect is called, or the gateway drops the connection.
func (m *Messenger) RunMain(ctx context.Context, token string) error {
	defer close(m.done)

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	if m.isStopping() {
		return nil
	}

	// Disconnect aborts a handshake still in flight.
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopping:
			cancel()
		case <-sessionCtx.Done():
		}
	}()

	header := http.Header{}
	header.Set("Authorization", "Bot "+token)
	conn, err := wsclient.Dial(sessionCtx, m.cfg.GatewayURL, header)
	if err != nil {
		if m.isStopping() && ctx.Err() == nil {
			return nil
		}
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer conn.Close()

	m.mu.Lock()
	if m.isStopping() {
		m.mu.Unlock()
		return nil
	}
	m.conn = conn
	m.mu.Unlock()

	payload, _ := json.Marshal(identify{Token: token})
	if err := conn.WriteJSON(Frame{Op: "identify", Data: payload}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-conn.Done():
				// Closed locally by Disconnect or ctx.
				return ctx.Err()
			default:
			}
			if wsclient.IsNormalClose(err) {
				return nil
			}
			return fmt.Errorf("gateway read: %w", err)
		}
		m.handle(conn, data)
	}
}

func (m *Messenger) handle(conn *wsclient.Conn, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.logger.Warn("Ignoring malformed gateway frame", "error", err)
		return
	}

	switch frame.Op {
	case "ready":
		m.task.Log("Messaging gateway ready")
		m.logger.Info("Messaging gateway ready")
	case "heartbeat":
		if err := conn.WriteJSON(Frame{Op: "heartbeat_ack"}); err != nil {
			m.logger.Warn("Failed to ack heartbeat", "error", err)
		}
	case "message":
		var ev MessageEvent
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			m.logger.Warn("Ignoring malformed message event", "error", err)
			return
		}
		m.task.Log(fmt.Sprintf("[%s] %s: %s", ev.Channel, ev.Author, ev.Content))
	default:
		m.logger.Debug("Unhandled gateway op", "op", frame.Op)
	}
}

// Disconnect closes the gateway connection and waits for RunMain to return.
// A handshake in progress is abandoned.
func (m *Messenger) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.stopOnce.Do(func() { close(m.stopping) })
	conn, started := m.conn, m.started
	m.mu.Unlock()
	if !started {
		return ErrNotConnected
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Gateway close", "error", err)
		}
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Messenger) isStopping() bool {
	select {
	case <-m.stopping:
		return true
	default:
		return false
	}
}
