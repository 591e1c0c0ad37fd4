package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autodash/simulator/pkg/streaming"
	"github.com/cenkalti/backoff"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	ctx    context.Context
	cancel context.CancelFunc // called on shutdown
	closed bool

	reconnecting atomic.Bool
	reconnects   atomic.Int64
	dropped      atomic.Int64

	wsURL          string
	secret         string
	reconnectDelay time.Duration

	// Cached start_session message for reconnect replay.
	cachedStartMsg []byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, reconnectDelay time.Duration) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		sendCh:         make(chan []byte, sendChSize),
		ackCh:          make(chan streaming.AckMessage, ackChSize),
		ctx:            ctx,
		cancel:         cancel,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// current reports whether conn is still the live connection.
func (c *connection) current(conn *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

// writeLoop drains sendCh and writes messages to conn.
// It returns on error, on shutdown, or once conn has been replaced.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendCh:
			if !c.current(conn) {
				c.requeue(data)
				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.requeue(data)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.requeue(data)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop reads ack messages from the server and routes them to ackCh.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil || !c.current(conn) {
				return
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == streaming.TypeAck {
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. broken is
// the connection that failed; a stale report for an already replaced
// connection is ignored. On success the cached start_session message is
// replayed and the read/write loops restart.
func (c *connection) reconnect(broken *ws.Conn) {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = c.reconnectDelay
	strategy.MaxInterval = maxBackoff
	strategy.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, maxReconnect), c.ctx)

	attempt := 0
	var conn *ws.Conn
	err := backoff.RetryNotify(func() error {
		attempt++
		next, err := c.dialOnce()
		if err != nil {
			return err
		}
		if err := c.replayStart(next); err != nil {
			_ = next.Close()
			return err
		}
		conn = next
		return nil
	}, policy, func(err error, d time.Duration) {
		c.logger.Warn("Reconnect failed", "attempt", attempt, "retryIn", d, "error", err)
	})
	if err != nil {
		if c.ctx.Err() == nil {
			c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect, "error", err)
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.reconnects.Add(1)
	c.logger.Info("WebSocket reconnected", "attempt", attempt)
	go c.writeLoop(conn)
	go c.readLoop(conn)
}

// replayStart resends start_session so the server knows which session we're recording.
func (c *connection) replayStart(conn *ws.Conn) error {
	c.mu.Lock()
	cached := c.cachedStartMsg
	c.mu.Unlock()
	if cached == nil {
		return nil
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set deadline for start_session replay: %w", err)
	}
	if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
		return fmt.Errorf("replay start_session: %w", err)
	}
	return nil
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// requeue returns a message the write loop could not deliver.
func (c *connection) requeue(data []byte) {
	c.send(data)
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.ctx.Done():
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
