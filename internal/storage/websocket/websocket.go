// Package websocket streams recorded sessions to the dashboard server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/autodash/simulator/pkg/core"
	"github.com/autodash/simulator/pkg/streaming"
)

const (
	defaultAckTimeout     = 10 * time.Second
	defaultReconnectDelay = time.Second
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL            string
	Secret         string
	AckTimeout     time.Duration
	ReconnectDelay time.Duration // first backoff step
	Logger         *slog.Logger
}

// Backend streams session data over WebSocket to the dashboard server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn     *connection
	cfg      Config
	lastTick atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket"), cfg.ReconnectDelay),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Reconnects is how many times the connection has been re-established.
func (b *Backend) Reconnects() int64 {
	return b.conn.reconnects.Load()
}

// Dropped is how many messages were discarded because the send buffer was full.
func (b *Backend) Dropped() int64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session header and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()
	b.lastTick.Store(0)

	return b.conn.sendAndWait(data, streaming.TypeStartSession, b.cfg.AckTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{
		SessionID: s.ID,
		EndTime:   s.EndTime,
		Ticks:     b.lastTick.Load(),
	})
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndSession, b.cfg.AckTimeout)
	}

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	b.lastTick.Store(s.Tick)
	return b.sendEnvelope(streaming.TypeSnapshot, s)
}

func (b *Backend) RecordWarningEvent(e *core.WarningEvent) error {
	return b.sendEnvelope(streaming.TypeWarningEvent, e)
}
