package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/internal/sim"
	"github.com/autodash/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []dispatcher.Event
	err    error
}

func (p *recordingPublisher) Dispatch(e dispatcher.Event) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil, p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestClock(t *testing.T, opts ...Option) *Clock {
	t.Helper()
	opts = append([]Option{WithSource(sim.NewSequenceSource())}, opts...)
	c, err := New(Config{Interval: time.Millisecond}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_InitialSnapshot(t *testing.T) {
	c := newTestClock(t)

	snap := c.Snapshot()
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, "D", snap.Gear)
	assert.True(t, snap.Controls.AutopilotEngaged)
	assert.Equal(t, 38.0, snap.Vehicle.Speed)
	assert.Empty(t, snap.Vehicle.SpeedHistory)
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, DefaultInterval, mustClock(t, Config{}).Interval())
}

func mustClock(t *testing.T, cfg Config) *Clock {
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestStep_AdvancesAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c := newTestClock(t,
		WithPublisher(pub),
		WithSessionID(func() string { return "sess-1" }),
		WithNow(func() time.Time { return fixed }),
	)

	for i := 0; i < 3; i++ {
		c.Step()
	}

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap.Tick)
	assert.Equal(t, uint64(3), c.Ticks())
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, fixed, snap.Time)
	assert.Len(t, snap.Vehicle.SpeedHistory, 3)

	require.Equal(t, 3, pub.count())
	last := pub.events[2]
	assert.Equal(t, core.CmdRecordSnapshot, last.Command)
	published, ok := last.Payload.(core.Snapshot)
	require.True(t, ok)
	assert.Equal(t, snap.Tick, published.Tick)
}

func TestStep_PublishFailureKeepsTicking(t *testing.T) {
	pub := &recordingPublisher{err: dispatcher.ErrQueueFull}
	c := newTestClock(t, WithPublisher(pub))

	for i := 0; i < 5; i++ {
		c.Step()
	}
	assert.Equal(t, uint64(5), c.Ticks())
	assert.Equal(t, 5, pub.count())
}

func TestControls_AppliedOnNextTick(t *testing.T) {
	c := newTestClock(t)

	c.ToggleAutopilot()
	assert.True(t, c.Snapshot().Controls.AutopilotEngaged, "toggle must wait for the tick")

	snap := c.Step()
	assert.False(t, snap.Controls.AutopilotEngaged)

	c.ToggleDriving()
	snap = c.Step()
	assert.False(t, snap.Controls.DrivingActive)
	assert.Equal(t, "P", snap.Gear)

	c.ToggleDriving()
	c.ToggleAutopilot()
	snap = c.Step()
	assert.True(t, snap.Controls.DrivingActive)
	assert.True(t, snap.Controls.AutopilotEngaged)
}

func TestRequestLaneChange(t *testing.T) {
	c := newTestClock(t)

	require.NoError(t, c.RequestLaneChange(core.LaneLeft))
	snap := c.Step()
	assert.InDelta(t, -0.4, snap.Vehicle.LaneOffset, 1e-9)
	assert.Empty(t, snap.Controls.PendingLaneChanges)

	snap = c.Step()
	assert.InDelta(t, -0.32, snap.Vehicle.LaneOffset, 1e-9)
}

func TestRequestLaneChange_SameTick(t *testing.T) {
	c := newTestClock(t)

	require.NoError(t, c.RequestLaneChange(core.LaneLeft))
	require.NoError(t, c.RequestLaneChange(core.LaneLeft))
	snap := c.Step()
	assert.InDelta(t, -0.8, snap.Vehicle.LaneOffset, 1e-9)
	assert.Empty(t, snap.Controls.PendingLaneChanges)

	c = newTestClock(t)
	require.NoError(t, c.RequestLaneChange(core.LaneLeft))
	require.NoError(t, c.RequestLaneChange(core.LaneRight))
	snap = c.Step()
	assert.InDelta(t, 0.0, snap.Vehicle.LaneOffset, 1e-9)
}

func TestRequestLaneChange_Invalid(t *testing.T) {
	c := newTestClock(t)

	err := c.RequestLaneChange(core.LaneDirection("up"))
	assert.True(t, errors.Is(err, core.ErrInvalidLaneDirection))

	err = c.RequestLaneChange(core.LaneNone)
	assert.True(t, errors.Is(err, core.ErrInvalidLaneDirection))

	snap := c.Step()
	assert.Equal(t, 0.0, snap.Vehicle.LaneOffset)
}

func TestStep_LowBatteryWarning(t *testing.T) {
	c := newTestClock(t)
	c.state.Battery = 15.01

	snap := c.Step()
	assert.True(t, snap.HasWarning(sim.MsgLowBattery))

	c.state.Battery = 20
	snap = c.Step()
	assert.False(t, snap.HasWarning(sim.MsgLowBattery))
}

func TestSnapshot_IsIsolated(t *testing.T) {
	c := newTestClock(t)
	c.Step()

	snap := c.Snapshot()
	snap.Vehicle.SpeedHistory[0] = -5
	snap.Vehicle.Obstacles[0].X = -5

	again := c.Snapshot()
	assert.NotEqual(t, -5.0, again.Vehicle.SpeedHistory[0])
	assert.NotEqual(t, -5.0, again.Vehicle.Obstacles[0].X)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestClock(t, WithPublisher(pub))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Ticks() >= 5 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	stopped := c.Ticks()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, c.Ticks())
	assert.GreaterOrEqual(t, pub.count(), 5)
}

func TestRun_ConcurrentControlsAndReads(t *testing.T) {
	c := newTestClock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.ToggleAutopilot()
			} else {
				_ = c.RequestLaneChange(core.LaneRight)
			}
		}(i)
		go func() {
			defer wg.Done()
			snap := c.Snapshot()
			assert.GreaterOrEqual(t, snap.Vehicle.LaneOffset, -sim.LaneOffsetLimit)
			assert.LessOrEqual(t, snap.Vehicle.LaneOffset, sim.LaneOffsetLimit)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return c.Ticks() >= 3 }, time.Second, time.Millisecond)
}
