package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/25smoking/mcpscan/internal/core"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected    = errors.New("not connected to scanner server")
	ErrResponseTimeout = errors.New("timed out waiting for scan response")
)

// DefaultResponseTimeout bounds how long Scan waits when ctx has no deadline.
const DefaultResponseTimeout = 60 * time.Second

// ServerURL builds the WebSocket URL of a scanner server.
func ServerURL(host string, port int) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Client submits scan contexts to a server. One request is outstanding per
// connection at a time; concurrent Scan calls are serialized. Close may be
// called while a Scan is waiting and makes it return.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  *zap.Logger

	scanMu sync.Mutex // serializes request/response exchanges
	nextID uint64

	connMu sync.Mutex // guards conn
	conn   *websocket.Conn
}

type ClientOption func(*Client)

// WithResponseTimeout sets how long Scan waits for the response.
func WithResponseTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		timeout: DefaultResponseTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Debug("connected", zap.String("url", c.url))
	return nil
}

// Scan sends one scan request and waits for the next message on the connection.
func (c *Client) Scan(ctx context.Context, sc *core.ScanContext) (*core.Report, error) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	conn := c.current()
	if conn == nil {
		return nil, ErrNotConnected
	}

	c.nextID++
	req := Request{ID: strconv.FormatUint(c.nextID, 10), Type: TypeScan, Context: sc}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("send scan request: %w", err)
	}

	// 取消时解除阻塞读
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		closed := !c.drop(conn)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case closed:
			return nil, ErrNotConnected
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrResponseTimeout
		}
		return nil, fmt.Errorf("read scan response: %w", err)
	}

	resp, report, err := DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	if resp.ID != "" && resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return report, nil
}

// Close sends a close frame and closes the connection. A pending Scan returns
// ErrNotConnected.
func (c *Client) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

func (c *Client) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// drop discards conn after a failed exchange. It reports false when conn had
// already been closed by Close.
func (c *Client) drop(conn *websocket.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != conn {
		return false
	}
	_ = conn.Close()
	c.conn = nil
	return true
}
