package worker

import (
	"errors"
	"fmt"

	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/internal/influx"
	"github.com/autodash/simulator/pkg/core"
)

// ErrSessionActive is returned when starting a session while one is open.
var ErrSessionActive = errors.New("session already active")

// RegisterHandlers registers the session and recording handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.dispatch = d.Dispatch

	// Session lifecycle - sync so callers see the result
	d.Register(core.CmdSessionStart, m.handleSessionStart, dispatcher.Logged())
	d.Register(core.CmdSessionEnd, m.handleSessionEnd, dispatcher.Logged())

	// Snapshots arrive every tick - buffered, dropped when the writer falls behind
	d.Register(core.CmdRecordSnapshot, m.handleSnapshot, dispatcher.Buffered(SnapshotBuffer))
	// Warning transitions are rare and must not be lost
	d.Register(core.CmdRecordWarning, m.handleWarningEvent, dispatcher.Buffered(WarningBuffer), dispatcher.Blocking(), dispatcher.Logged())
}

// StartSession opens a session and announces it to the backend.
func (m *Manager) StartSession() (core.Session, error) {
	if _, ok := m.deps.Session.Current(); ok {
		return core.Session{}, ErrSessionActive
	}
	info := m.deps.Info
	s := m.deps.Session.Start(info.VehicleName, info.TickInterval, info.Version, info.Tag)
	m.deps.WarningCache.Reset()

	if err := m.backend.StartSession(&s); err != nil {
		return s, fmt.Errorf("failed to start session in storage: %w", err)
	}
	m.deps.Logger.Info("Session started", "session", s.ID, "vehicle", s.VehicleName)
	return s, nil
}

// EndSession closes the active session and finalises it in the backend.
func (m *Manager) EndSession() (core.Session, error) {
	s, err := m.deps.Session.End()
	if err != nil {
		return s, err
	}
	if err := m.backend.EndSession(&s); err != nil {
		return s, fmt.Errorf("failed to end session in storage: %w", err)
	}
	m.deps.Logger.Info("Session ended",
		"session", s.ID,
		"duration", s.EndTime.Sub(s.StartTime),
		"snapshots", m.Recorded(),
		"warningEvents", m.WarningEvents(),
	)
	return s, nil
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	return m.StartSession()
}

func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	return m.EndSession()
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	snap, ok := e.Payload.(core.Snapshot)
	if !ok {
		return nil, fmt.Errorf("record snapshot: unexpected payload %T", e.Payload)
	}
	// ticks outside a session are not recorded
	if snap.SessionID == "" || snap.SessionID != m.deps.Session.ID() {
		return nil, nil
	}

	if err := m.backend.RecordSnapshot(&snap); err != nil {
		return nil, fmt.Errorf("failed to record snapshot %d: %w", snap.Tick, err)
	}
	m.recorded.Inc()

	if m.deps.Influx != nil {
		if err := m.deps.Influx.WritePoint(m.deps.InfluxBucket, influx.SnapshotPoint(&snap)); err != nil {
			m.deps.Logger.Warn("Failed to write snapshot point", "tick", snap.Tick, "error", err)
		}
	}

	for _, ev := range m.deps.WarningCache.Update(snap.SessionID, snap.Tick, snap.Time, snap.Warnings) {
		if err := m.recordWarning(ev); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// recordWarning goes through the dispatcher when registered. Once the
// dispatcher is draining for shutdown the event is handled inline.
func (m *Manager) recordWarning(ev core.WarningEvent) error {
	e := dispatcher.Event{Command: core.CmdRecordWarning, Payload: ev, Timestamp: ev.Time}
	if m.dispatch != nil {
		_, err := m.dispatch(e)
		if !errors.Is(err, dispatcher.ErrClosed) {
			return err
		}
	}
	_, err := m.handleWarningEvent(e)
	return err
}

func (m *Manager) handleWarningEvent(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.WarningEvent)
	if !ok {
		return nil, fmt.Errorf("record warning: unexpected payload %T", e.Payload)
	}

	if err := m.backend.RecordWarningEvent(&ev); err != nil {
		return nil, fmt.Errorf("failed to record warning event: %w", err)
	}
	m.events.Inc()

	if m.deps.Influx != nil {
		if err := m.deps.Influx.WritePoint(m.deps.InfluxBucket, influx.WarningPoint(&ev)); err != nil {
			m.deps.Logger.Warn("Failed to write warning point", "msg", ev.Message, "error", err)
		}
	}
	if m.deps.Notifier != nil && m.deps.Notifier.NotifyWarning(ev) {
		m.deps.Logger.Debug("Warning notification sent", "msg", ev.Message)
	}
	return nil, nil
}
