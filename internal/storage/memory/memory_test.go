package memory

import (
	"testing"
	"time"

	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/internal/storage"
	"github.com/autodash/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testSession(id string) *core.Session {
	return &core.Session{
		ID:           id,
		VehicleName:  "AD-01",
		StartTime:    start,
		TickInterval: 250 * time.Millisecond,
		Route:        core.DefaultRoute,
		Version:      "1.0.0",
	}
}

func testSnapshot(sessionID string, tick uint64) *core.Snapshot {
	return &core.Snapshot{
		SessionID: sessionID,
		Tick:      tick,
		Time:      start.Add(time.Duration(tick) * 250 * time.Millisecond),
		Gear:      "D",
		Controls:  core.Controls{AutopilotEngaged: true, DrivingActive: true},
		Vehicle: core.VehicleState{
			Speed:        40,
			Battery:      78,
			Position:     core.Position{X: 18, Y: 82},
			SpeedHistory: []float64{38, 40},
			Obstacles:    []core.Obstacle{{ID: 1, X: 55, Y: 40}},
		},
		Warnings: []core.Warning{},
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	require.NotNil(t, b)
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestRecordSnapshot_BeforeSessionIgnored(t *testing.T) {
	b := New(config.MemoryConfig{}, nil)
	require.NoError(t, b.RecordSnapshot(testSnapshot("sess-1", 1)))
	require.NoError(t, b.RecordWarningEvent(&core.WarningEvent{SessionID: "sess-1"}))
	assert.Empty(t, b.Frames())
	assert.Empty(t, b.WarningEvents())
}

func TestRecordSnapshot(t *testing.T) {
	b := New(config.MemoryConfig{}, nil)
	require.NoError(t, b.StartSession(testSession("sess-1")))

	snap := testSnapshot("sess-1", 1)
	require.NoError(t, b.RecordSnapshot(snap))
	require.NoError(t, b.RecordSnapshot(testSnapshot("other", 2)))

	frames := b.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(1), frames[0].Tick)

	// stored frames do not alias the caller's slices
	snap.Vehicle.SpeedHistory[0] = 999
	snap.Vehicle.Obstacles[0].X = 999
	frames = b.Frames()
	assert.Equal(t, 38.0, frames[0].Vehicle.SpeedHistory[0])
	assert.Equal(t, 55.0, frames[0].Vehicle.Obstacles[0].X)
}

func TestRecordWarningEvent(t *testing.T) {
	b := New(config.MemoryConfig{}, nil)
	require.NoError(t, b.StartSession(testSession("sess-1")))

	require.NoError(t, b.RecordWarningEvent(&core.WarningEvent{SessionID: "sess-1", Tick: 3, Message: "Low battery", Raised: true}))
	require.NoError(t, b.RecordWarningEvent(&core.WarningEvent{SessionID: "other", Tick: 4}))

	events := b.WarningEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "Low battery", events[0].Message)
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{}, nil)
	require.NoError(t, b.StartSession(testSession("sess-1")))
	require.NoError(t, b.RecordSnapshot(testSnapshot("sess-1", 1)))

	require.NoError(t, b.StartSession(testSession("sess-2")))
	assert.Empty(t, b.Frames())

	require.NoError(t, b.RecordSnapshot(testSnapshot("sess-2", 1)))
	assert.Len(t, b.Frames(), 1)
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	require.NoError(t, b.EndSession(nil))
	assert.Empty(t, b.GetExportedFilePath())
}
