// Package memory keeps a session's frames in memory and exports them as JSON
// when the session ends.
package memory

import (
	"sync"

	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg       config.MemoryConfig
	projector *geo.Projector
	session   *core.Session

	frames   []core.Snapshot
	warnings []core.WarningEvent

	lastExportPath     string
	lastExportMetadata core.UploadMetadata
	mu                 sync.RWMutex
}

// New creates a new memory backend. projector may be nil, in which case the
// export carries no geographic track.
func New(cfg config.MemoryConfig, projector *geo.Projector) *Backend {
	return &Backend{
		cfg:       cfg,
		projector: projector,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess := *s
	b.session = &sess
	b.frames = nil
	b.warnings = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	if s != nil && s.ID == b.session.ID {
		b.session.EndTime = s.EndTime
	}
	return b.exportJSON()
}

// RecordSnapshot appends a frame. Frames outside the current session are ignored.
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil || s.SessionID != b.session.ID {
		return nil
	}
	snap := *s
	snap.Vehicle = s.Vehicle.Clone()
	snap.Warnings = append([]core.Warning(nil), s.Warnings...)
	b.frames = append(b.frames, snap)
	return nil
}

// RecordWarningEvent appends a warning transition.
func (b *Backend) RecordWarningEvent(e *core.WarningEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil || e.SessionID != b.session.ID {
		return nil
	}
	b.warnings = append(b.warnings, *e)
	return nil
}

// Frames returns a copy of the recorded frames.
func (b *Backend) Frames() []core.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Snapshot(nil), b.frames...)
}

// WarningEvents returns a copy of the recorded warning events.
func (b *Backend) WarningEvents() []core.WarningEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.WarningEvent(nil), b.warnings...)
}
