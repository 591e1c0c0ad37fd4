// Package worker records the simulation stream: session lifecycle, snapshots
// and the warning transitions derived from them.
package worker

import (
	"log/slog"
	"time"

	"github.com/autodash/simulator/internal/cache"
	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/internal/session"
	"github.com/autodash/simulator/internal/storage"
	"github.com/autodash/simulator/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Queue sizes for the recording commands.
const (
	SnapshotBuffer = 1000
	WarningBuffer  = 500
)

// PointWriter is satisfied by the influx manager.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// WarningNotifier is satisfied by the pushover facade.
type WarningNotifier interface {
	NotifyWarning(core.WarningEvent) bool
}

// SessionInfo is stamped on every session the worker opens.
type SessionInfo struct {
	VehicleName  string
	TickInterval time.Duration
	Version      string
	Tag          string
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session      *session.Context
	WarningCache *cache.WarningCache
	Info         SessionInfo
	Logger       *slog.Logger

	// optional sinks
	Influx       PointWriter
	InfluxBucket string
	Notifier     WarningNotifier
}

// Manager records everything the clock publishes into the storage backend.
type Manager struct {
	deps     Dependencies
	backend  storage.Backend
	dispatch func(dispatcher.Event) (any, error)

	recorded cache.SafeCounter
	events   cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.WarningCache == nil {
		deps.WarningCache = cache.NewWarningCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if backend == nil {
		backend = storage.Nop{}
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// Backend returns the storage backend snapshots are recorded into.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}

// Recorded returns how many snapshots reached the backend.
func (m *Manager) Recorded() int {
	return m.recorded.Value()
}

// WarningEvents returns how many warning transitions reached the backend.
func (m *Manager) WarningEvents() int {
	return m.events.Value()
}
