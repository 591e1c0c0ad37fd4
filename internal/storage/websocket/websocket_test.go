package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodash/simulator/internal/storage"
	"github.com/autodash/simulator/pkg/core"
	"github.com/autodash/simulator/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
// With dropFirst set, the first connection is closed right after its
// start_session ack.
func testServer(t *testing.T, dropFirst bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		n := conns.Add(1)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				if dropFirst && n == 1 && env.Type == streaming.TypeStartSession {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) getSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testSession() *core.Session {
	return &core.Session{ID: "sess-ws", VehicleName: "AD-01", StartTime: time.Now().UTC()}
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	sess := testSession()
	require.NoError(t, b.StartSession(sess))
	require.NoError(t, b.RecordSnapshot(&core.Snapshot{SessionID: sess.ID, Tick: 7}))
	sess.EndTime = sess.StartTime.Add(time.Minute)
	require.NoError(t, b.EndSession(sess))

	msgs := ml.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeSnapshot, msgs[1].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[2].Type)
	assert.Equal(t, "test", ml.getSecret())

	var end streaming.EndSessionPayload
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &end))
	assert.Equal(t, "sess-ws", end.SessionID)
	assert.Equal(t, uint64(7), end.Ticks)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	sess := testSession()
	require.NoError(t, b.StartSession(sess))
	for tick := uint64(1); tick <= 5; tick++ {
		require.NoError(t, b.RecordSnapshot(&core.Snapshot{SessionID: sess.ID, Tick: tick}))
	}
	require.NoError(t, b.RecordWarningEvent(&core.WarningEvent{SessionID: sess.ID, Message: "Weak GPS", Raised: true}))
	require.NoError(t, b.EndSession(sess))

	assert.Equal(t, 1, ml.count(streaming.TypeStartSession))
	assert.Equal(t, 5, ml.count(streaming.TypeSnapshot))
	assert.Equal(t, 1, ml.count(streaming.TypeWarningEvent))
	assert.Equal(t, 1, ml.count(streaming.TypeEndSession))
	assert.Equal(t, int64(0), b.Dropped())
}

func TestReconnectReplaysStart(t *testing.T) {
	srv, ml := testServer(t, true)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(testSession()))

	assert.Eventually(t, func() bool {
		return b.Reconnects() == 1 && ml.count(streaming.TypeStartSession) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.RecordSnapshot(&core.Snapshot{SessionID: "sess-ws", Tick: 1}))
	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeSnapshot) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAckTimeout(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), AckTimeout: 50 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.StartSession(testSession())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestInit_BadURL(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/stream"})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestEnvelopeSerialization(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeWarningEvent, &core.WarningEvent{Message: "Low battery", Level: core.LevelCritical})
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeWarningEvent, decoded.Type)

	var e core.WarningEvent
	require.NoError(t, json.Unmarshal(decoded.Payload, &e))
	assert.Equal(t, "Low battery", e.Message)
	assert.Equal(t, core.LevelCritical, e.Level)
}
