package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGelfWriter struct {
	mu   sync.Mutex
	msgs []gelf.Message
}

func (w *fakeGelfWriter) WriteMessage(m *gelf.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, *m)
	return nil
}

func (w *fakeGelfWriter) all() []gelf.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]gelf.Message(nil), w.msgs...)
}

func TestGelfHandler_Message(t *testing.T) {
	w := &fakeGelfWriter{}
	h := NewGelfHandler(w, "autodash", slog.LevelInfo)

	r := slog.NewRecord(time.Unix(1700000000, 500000000), slog.LevelError, "storage failed", 0)
	r.AddAttrs(slog.String("backend", "postgres"), slog.Any("error", errors.New("connection refused")))
	require.NoError(t, h.Handle(context.Background(), r))

	msgs := w.all()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "1.1", m.Version)
	assert.Equal(t, "storage failed", m.Short)
	assert.Equal(t, int32(3), m.Level)
	assert.Equal(t, "autodash", m.Facility)
	assert.InDelta(t, 1700000000.5, m.TimeUnix, 1e-3)
	assert.Equal(t, "postgres", m.Extra["_backend"])
	assert.Equal(t, "connection refused", m.Extra["_error"])
}

func TestGelfHandler_AttrsAndGroups(t *testing.T) {
	w := &fakeGelfWriter{}
	logger := slog.New(NewGelfHandler(w, "autodash", slog.LevelDebug))

	logger.With("session", "s1").WithGroup("vehicle").Debug("tick", "speed", 48.0, slog.Group("pos", "x", 18.0))

	msgs := w.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, int32(7), msgs[0].Level)
	assert.Equal(t, "s1", msgs[0].Extra["_session"])
	assert.Equal(t, 48.0, msgs[0].Extra["_vehicle.speed"])
	assert.Equal(t, 18.0, msgs[0].Extra["_vehicle.pos.x"])
}

func TestGelfHandler_Enabled(t *testing.T) {
	h := NewGelfHandler(&fakeGelfWriter{}, "autodash", slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}
