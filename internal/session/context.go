// Package session tracks the recording session the simulator is currently in.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/autodash/simulator/pkg/core"
	"github.com/google/uuid"
)

// ErrNoActiveSession is returned when ending or reading a session that was never started.
var ErrNoActiveSession = errors.New("no active session")

// Context holds the current session behind a read/write lock.
type Context struct {
	mu      sync.RWMutex
	current *core.Session
	now     func() time.Time
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{now: time.Now}
}

// Start opens a new session, replacing any active one.
func (c *Context) Start(vehicleName string, tickInterval time.Duration, version, tag string) core.Session {
	s := core.Session{
		ID:           uuid.NewString(),
		VehicleName:  vehicleName,
		StartTime:    c.now().UTC(),
		TickInterval: tickInterval,
		Route:        core.DefaultRoute,
		Version:      version,
		Tag:          tag,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stored := clone(s)
	c.current = &stored
	return clone(s)
}

// End closes the active session and returns it with its end time set.
func (c *Context) End() (core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return core.Session{}, ErrNoActiveSession
	}
	s := clone(*c.current)
	s.EndTime = c.now().UTC()
	c.current = nil
	return s, nil
}

// Current returns a copy of the active session.
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.Session{}, false
	}
	return clone(*c.current), true
}

// ID returns the active session id, or "" when none is open.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.ID
}

func clone(s core.Session) core.Session {
	s.Route = append([]core.Position(nil), s.Route...)
	return s
}
