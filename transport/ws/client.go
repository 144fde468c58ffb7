package ws

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/algo-reflect/control"
	"github.com/gorilla/websocket"
)

// Handler consumes what the coordinator sends to one node.
// *node.Node implements it.
type Handler interface {
	HandleBinary(data []byte) error
	HandleCommand(cmd control.Command) error
}

// NodeURL returns the websocket URL for node on a server at base, which
// may use an http, https, ws or wss scheme.
func NodeURL(base string, node int) string {
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	}
	return strings.TrimSuffix(base, "/") + "/nodes/" + strconv.Itoa(node)
}

// Redial backoff bounds for Connect.
const (
	MinBackoff = 500 * time.Millisecond
	MaxBackoff = 10 * time.Second
)

// Client is a node's connection to the coordinator.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	mu     sync.Mutex
}

// Dial connects to url, usually built with NodeURL.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, logger: logger}, nil
}

// Run dispatches incoming messages to h until the connection fails or ctx
// is done. Handler errors are logged and do not stop the loop.
func (c *Client) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("ws: read: %w", err)
		}

		switch typ {
		case websocket.BinaryMessage:
			if err := h.HandleBinary(msg); err != nil {
				c.logger.Warn("frame rejected", "err", err)
			}
		case websocket.TextMessage:
			cmd, err := control.Parse(string(msg))
			if err != nil {
				c.logger.Warn("bad control line", "line", string(msg), "err", err)
				continue
			}
			if err := h.HandleCommand(cmd); err != nil {
				c.logger.Warn("command failed", "command", control.Format(cmd), "err", err)
			}
		}
	}
}

// SendCommand sends a control line to the coordinator.
func (c *Client) SendCommand(cmd control.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(control.Format(cmd)))
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}

// Connect keeps a connection to url open and dispatches to h until ctx is
// done, redialing with exponential backoff. onDrop, if set, runs after each
// established connection ends.
func Connect(ctx context.Context, url string, h Handler, logger *slog.Logger, onDrop func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	backoff := MinBackoff
	for {
		c, err := Dial(ctx, url, logger)
		if err == nil {
			logger.Info("connected", "url", url)
			backoff = MinBackoff
			err = c.Run(ctx, h)
			c.Close()
			if onDrop != nil {
				onDrop()
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("connection lost", "url", url, "err", err, "retry", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, MaxBackoff)
	}
}
