// Package streaming defines the envelopes sent to the dashboard's live stream endpoint.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/autodash/simulator/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeSnapshot     = "snapshot"
	TypeWarningEvent = "warning_event"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload closes a session on the server.
type EndSessionPayload struct {
	SessionID string    `json:"sessionId"`
	EndTime   time.Time `json:"endTime"`
	Ticks     uint64    `json:"ticks"`
}
