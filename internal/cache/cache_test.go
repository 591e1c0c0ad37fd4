package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/autodash/simulator/internal/sim"
	"github.com/autodash/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lowBattery = core.Warning{Level: core.LevelCritical, Message: sim.MsgLowBattery}
	weakGPS    = core.Warning{Level: core.LevelWarning, Message: sim.MsgWeakGPS}
)

func TestWarningCache_FirstUpdateRaisesAll(t *testing.T) {
	c := NewWarningCache()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	events := c.Update("s1", 7, at, []core.Warning{lowBattery, weakGPS})
	require.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.Raised)
		assert.Equal(t, "s1", e.SessionID)
		assert.Equal(t, uint64(7), e.Tick)
		assert.Equal(t, at, e.Time)
	}
	assert.Equal(t, core.LevelCritical, events[0].Level)
	assert.Equal(t, []core.Warning{lowBattery, weakGPS}, c.Active())
}

func TestWarningCache_OnlyTransitions(t *testing.T) {
	c := NewWarningCache()
	now := time.Now()

	c.Update("s1", 1, now, []core.Warning{weakGPS})
	assert.Empty(t, c.Update("s1", 2, now, []core.Warning{weakGPS}))

	events := c.Update("s1", 3, now, []core.Warning{lowBattery})
	require.Len(t, events, 2)
	assert.Equal(t, sim.MsgLowBattery, events[0].Message)
	assert.True(t, events[0].Raised)
	assert.Equal(t, sim.MsgWeakGPS, events[1].Message)
	assert.False(t, events[1].Raised)

	events = c.Update("s1", 4, now, nil)
	require.Len(t, events, 1)
	assert.False(t, events[0].Raised)
	assert.Empty(t, c.Active())
}

func TestWarningCache_NewSessionStartsClean(t *testing.T) {
	c := NewWarningCache()
	now := time.Now()

	c.Update("s1", 1, now, []core.Warning{weakGPS})
	events := c.Update("s2", 1, now, []core.Warning{weakGPS})
	require.Len(t, events, 1)
	assert.True(t, events[0].Raised)
	assert.Equal(t, "s2", events[0].SessionID)
}

func TestWarningCache_Reset(t *testing.T) {
	c := NewWarningCache()
	c.Update("s1", 1, time.Now(), []core.Warning{weakGPS})
	c.Reset()

	assert.Empty(t, c.Active())
	assert.Len(t, c.Update("s1", 2, time.Now(), []core.Warning{weakGPS}), 1)
}

func TestWarningCache_Concurrent(t *testing.T) {
	c := NewWarningCache()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws := []core.Warning{}
			if i%2 == 0 {
				ws = append(ws, weakGPS)
			}
			c.Update("s1", uint64(i), time.Now(), ws)
			_ = c.Active()
		}(i)
	}
	wg.Wait()
}

func TestSafeCounter_InitialValue(t *testing.T) {
	c := &SafeCounter{}
	assert.Equal(t, 0, c.Value())
}

func TestSafeCounter_SetAndInc(t *testing.T) {
	c := &SafeCounter{}

	c.Set(42)
	assert.Equal(t, 42, c.Value())

	c.Inc()
	c.Inc()
	assert.Equal(t, 44, c.Value())

	c.Set(0)
	assert.Equal(t, 0, c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	c := &SafeCounter{}
	var wg sync.WaitGroup

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, c.Value())
}
