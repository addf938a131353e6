package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB

	handshakeTimeout = 15 * time.Second
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("websocket connection closed")

// Conn is a client websocket connection safe for one reader and many writers.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a websocket connection to url. The connection is closed when
// ctx ends.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	var stopExpire func() bool
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		// The dialer honours ctx only while connecting, so cancelling ctx
		// during the upgrade request expires the socket instead.
		NetDialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
			conn, err := (&net.Dialer{}).DialContext(dialCtx, network, addr)
			if err != nil {
				return nil, err
			}
			stopExpire = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
			return conn, nil
		},
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if stopExpire != nil {
		stopExpire()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &Conn{ws: ws, closed: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.closed:
		}
	}()
	go c.pingLoop()
	return c, nil
}

// ReadMessage blocks for the next text or binary message.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	// Any traffic proves the peer is alive.
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

// WriteText sends a single text frame.
func (c *Conn) WriteText(msg string) error {
	return c.write(websocket.TextMessage, []byte(msg))
}

// WriteJSON sends v as a JSON text frame.
func (c *Conn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame and releases the connection. Safe to call twice.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		close(c.closed)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// IsNormalClose reports whether err ends a session cleanly.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Reconnect backoff: the delay doubles after each short session, up to
// maxReconnectDelay, and resets once a session stays up for stableSession.
const (
	maxReconnectDelay = 5 * time.Minute
	backoffMultiple   = 2.0
	stableSession     = time.Minute
)

// RunReconnecting calls session until ctx ends, backing off from delay between
// sessions. Session errors are logged and never returned.
func RunReconnecting(ctx context.Context, logger *slog.Logger, name string, delay time.Duration, session func(context.Context) error) error {
	wait := delay
	for {
		started := time.Now()
		err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) >= stableSession {
			wait = delay
		}

		if err != nil {
			logger.Warn("Session ended, reconnecting", "integration", name, "error", err, "delay", wait)
		} else {
			logger.Info("Session closed, reconnecting", "integration", name, "delay", wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = nextDelay(wait)
	}
}

func nextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffMultiple)
	if next > maxReconnectDelay || next <= 0 {
		return maxReconnectDelay
	}
	return next
}
