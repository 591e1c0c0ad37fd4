// Package clock owns the simulated vehicle and advances it on a fixed interval.
//
// The Clock is an actor: only its own goroutine (or a test calling Step) ever
// touches the mutable state. Operators talk to it through a mailbox of control
// commands that is drained at the start of every tick, and read it through
// deep-copied snapshots.
package clock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autodash/simulator/internal/channel"
	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/internal/sim"
	"github.com/autodash/simulator/pkg/core"
	"go.opentelemetry.io/otel/metric"
)

// ErrAlreadyRunning is returned by Run when the clock loop is already active.
var ErrAlreadyRunning = errors.New("clock already running")

const (
	DefaultInterval = 250 * time.Millisecond
	mailboxSize     = 64
)

// Publisher receives every snapshot after a tick. *dispatcher.Dispatcher satisfies it.
type Publisher interface {
	Dispatch(dispatcher.Event) (any, error)
}

// Config sets up a Clock.
type Config struct {
	Interval    time.Duration
	HistorySize int
	Seed        int64
}

type commandKind int

const (
	cmdToggleAutopilot commandKind = iota
	cmdToggleDriving
	cmdLaneChange
)

type command struct {
	kind commandKind
	lane core.LaneDirection
}

// Option customises a Clock.
type Option func(*Clock)

// WithSource replaces the seeded random source.
func WithSource(src sim.Source) Option {
	return func(c *Clock) { c.rng = src }
}

// WithPublisher sends each snapshot to p as a record event.
func WithPublisher(p Publisher) Option {
	return func(c *Clock) { c.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Clock) { c.logger = l }
}

// WithSessionID supplies the session id stamped on snapshots.
func WithSessionID(fn func() string) Option {
	return func(c *Clock) { c.sessionID = fn }
}

// WithNow overrides the wall clock used for snapshot times.
func WithNow(fn func() time.Time) Option {
	return func(c *Clock) { c.now = fn }
}

// Clock drives the simulation.
type Clock struct {
	interval  time.Duration
	state     *sim.State
	controls  core.Controls
	rng       sim.Source
	tick      uint64
	mailbox   channel.Channel[command]
	publisher Publisher
	logger    *slog.Logger
	sessionID func() string
	now       func() time.Time
	running   atomic.Bool

	mu     sync.RWMutex
	latest core.Snapshot

	ticks    metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64ObservableGauge
}

// New creates a Clock at the initial vehicle state with autopilot engaged.
func New(cfg Config, opts ...Option) (*Clock, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	c := &Clock{
		interval:  cfg.Interval,
		state:     sim.NewState(cfg.HistorySize),
		controls:  sim.DefaultControls(),
		mailbox:   channel.New[command](mailboxSize),
		logger:    slog.Default(),
		sessionID: func() string { return "" },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = sim.NewSource(cfg.Seed)
	}

	if err := c.initMetrics(); err != nil {
		return nil, err
	}

	c.latest = c.snapshot()
	return c, nil
}

func (c *Clock) initMetrics() error {
	m := meter()

	var err error
	c.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Total simulation ticks"),
	)
	if err != nil {
		return fmt.Errorf("creating tick counter: %w", err)
	}

	c.duration, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Time spent advancing one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration histogram: %w", err)
	}

	c.active, err = m.Int64ObservableGauge(
		"sim.warnings.active",
		metric.WithDescription("Warnings active on the latest snapshot"),
	)
	if err != nil {
		return fmt.Errorf("creating active warnings gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			c.mu.RLock()
			n := len(c.latest.Warnings)
			c.mu.RUnlock()
			o.ObserveInt64(c.active, int64(n))
			return nil
		},
		c.active,
	)
	if err != nil {
		return fmt.Errorf("registering warnings callback: %w", err)
	}
	return nil
}

// ToggleAutopilot flips autopilot before the next tick.
func (c *Clock) ToggleAutopilot() {
	c.mailbox.Send(command{kind: cmdToggleAutopilot})
}

// ToggleDriving flips between drive and park before the next tick.
func (c *Clock) ToggleDriving() {
	c.mailbox.Send(command{kind: cmdToggleDriving})
}

// RequestLaneChange queues a one-shot lane change for the next tick.
// Only LaneLeft and LaneRight are accepted.
func (c *Clock) RequestLaneChange(dir core.LaneDirection) error {
	if dir != core.LaneLeft && dir != core.LaneRight {
		return fmt.Errorf("%w: %q", core.ErrInvalidLaneDirection, string(dir))
	}
	c.mailbox.Send(command{kind: cmdLaneChange, lane: dir})
	return nil
}

// Snapshot returns the snapshot published by the most recent tick.
func (c *Clock) Snapshot() core.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Ticks returns how many ticks have been published.
func (c *Clock) Ticks() uint64 {
	return c.Snapshot().Tick
}

// Interval returns the tick period.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Step applies pending commands, advances one tick and publishes the result.
// It must not be called concurrently with itself or with Run.
func (c *Clock) Step() core.Snapshot {
	start := time.Now()

	c.drain()
	sim.Tick(c.state, &c.controls, c.rng)
	c.tick++

	snap := c.snapshot()
	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()

	ctx := context.Background()
	c.ticks.Add(ctx, 1)
	c.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	if c.publisher != nil {
		// a full record queue drops the snapshot, the tick itself stands
		if _, err := c.publisher.Dispatch(dispatcher.Event{
			Command:   core.CmdRecordSnapshot,
			Payload:   snap,
			Timestamp: snap.Time,
		}); err != nil {
			c.logger.Debug("snapshot not recorded", "tick", snap.Tick, "error", err)
		}
	}
	return snap
}

// Run ticks every interval until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("simulation clock started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("simulation clock stopped", "ticks", c.tick)
			return nil
		case <-ticker.C:
			c.Step()
		}
	}
}

func (c *Clock) drain() {
	channel.Drain[command](c.mailbox, c.apply)
}

func (c *Clock) apply(cmd command) {
	switch cmd.kind {
	case cmdToggleAutopilot:
		c.controls.AutopilotEngaged = !c.controls.AutopilotEngaged
		c.logger.Info("autopilot toggled", "engaged", c.controls.AutopilotEngaged)
	case cmdToggleDriving:
		c.controls.DrivingActive = !c.controls.DrivingActive
		c.logger.Info("driving toggled", "gear", c.controls.Gear())
	case cmdLaneChange:
		c.controls.PendingLaneChanges = append(c.controls.PendingLaneChanges, cmd.lane)
		c.logger.Debug("lane change requested", "direction", string(cmd.lane))
	}
}

func (c *Clock) snapshot() core.Snapshot {
	v := c.state.Vehicle()
	return core.Snapshot{
		SessionID: c.sessionID(),
		Tick:      c.tick,
		Time:      c.now().UTC(),
		Gear:      c.controls.Gear(),
		Controls:  c.controls,
		Vehicle:   v,
		Warnings:  sim.Warnings(v),
	}
}
