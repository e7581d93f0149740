// Package transport is the WebSocket link to the analysis backend.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultURL is the hosted analysis backend.
	DefaultURL = "wss://signal-image-latest.onrender.com/ws-signal"

	// DefaultPingInterval keeps idle proxies from dropping the socket.
	DefaultPingInterval = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("transport closed")

// Conn is an open backend connection.
type Conn interface {
	// Messages delivers inbound text frames in arrival order. It is closed
	// when the connection ends.
	Messages() <-chan []byte
	IsOpen() bool
	SendBinary(data []byte) error
	SendText(text string) error
	Close() error
}

// Dialer opens backend connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Options configures a WebSocket dialer.
type Options struct {
	URL          string
	Header       http.Header
	PingInterval time.Duration
}

// WebSocketDialer dials the backend with gorilla/websocket.
type WebSocketDialer struct {
	opts Options
}

// NewDialer creates a dialer. Zero options fall back to defaults.
func NewDialer(opts Options) *WebSocketDialer {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	return &WebSocketDialer{opts: opts}
}

// URL returns the endpoint this dialer connects to.
func (d *WebSocketDialer) URL() string { return d.opts.URL }

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	return Dial(ctx, d.opts)
}

// Client is a WebSocket connection to the backend.
type Client struct {
	conn    *websocket.Conn
	msgChan chan []byte
	done    chan struct{}

	open      atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
	err       error
}

// Dial connects to opts.URL.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (status %d)", opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", opts.URL, err)
	}

	c := &Client{
		conn:    conn,
		msgChan: make(chan []byte, 100),
		done:    make(chan struct{}),
	}
	c.open.Store(true)

	go c.readLoop()
	if opts.PingInterval > 0 {
		go c.pingLoop(opts.PingInterval)
	}

	slog.Info("transport connected", "url", opts.URL)
	return c, nil
}

// Messages implements Conn.
func (c *Client) Messages() <-chan []byte { return c.msgChan }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection ended, if any.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// IsOpen implements Conn.
func (c *Client) IsOpen() bool { return c.open.Load() }

// SendBinary implements Conn.
func (c *Client) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

// SendText implements Conn.
func (c *Client) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.open.Load() {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. Safe to call
// repeatedly.
func (c *Client) Close() error {
	if c.open.Load() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
	}
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.err = err
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer close(c.msgChan)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Info("transport closed by backend")
				} else {
					slog.Warn("transport read failed", "error", err)
				}
			}
			c.shutdown(fmt.Errorf("read error: %w", err))
			return
		}

		if messageType != websocket.TextMessage {
			slog.Debug("ignore inbound binary frame", "size", len(data))
			continue
		}

		select {
		case c.msgChan <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Client) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				slog.Debug("transport ping failed", "error", err)
			}
		}
	}
}
