package cache

import (
	"sync"
	"time"

	"github.com/autodash/simulator/internal/sim"
	"github.com/autodash/simulator/pkg/core"
)

// WarningCache remembers which warnings were active on the last recorded
// snapshot so sinks only see transitions, not the same warning every tick.
type WarningCache struct {
	mu        sync.Mutex
	sessionID string
	active    []core.Warning
}

func NewWarningCache() *WarningCache {
	return &WarningCache{}
}

// Update compares ws with the cached set and returns one event per warning
// that was raised or cleared. A new session id starts from an empty set.
func (c *WarningCache) Update(sessionID string, tick uint64, at time.Time, ws []core.Warning) []core.WarningEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sessionID != c.sessionID {
		c.sessionID = sessionID
		c.active = nil
	}

	raised, cleared := sim.DiffWarnings(c.active, ws)
	c.active = append(c.active[:0], ws...)

	events := make([]core.WarningEvent, 0, len(raised)+len(cleared))
	for _, w := range raised {
		events = append(events, warningEvent(sessionID, tick, at, w, true))
	}
	for _, w := range cleared {
		events = append(events, warningEvent(sessionID, tick, at, w, false))
	}
	return events
}

// Active returns a copy of the cached warnings.
func (c *WarningCache) Active() []core.Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Warning(nil), c.active...)
}

func (c *WarningCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.active = nil
}

func warningEvent(sessionID string, tick uint64, at time.Time, w core.Warning, raised bool) core.WarningEvent {
	return core.WarningEvent{
		SessionID: sessionID,
		Tick:      tick,
		Time:      at,
		Level:     w.Level,
		Message:   w.Message,
		Raised:    raised,
	}
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
