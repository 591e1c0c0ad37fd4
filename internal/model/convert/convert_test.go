package convert

import (
	"database/sql"
	"testing"
	"time"

	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/model"
	"github.com/autodash/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testSnapshot() core.Snapshot {
	return core.Snapshot{
		SessionID: "sess-1",
		Tick:      12,
		Time:      time.Date(2026, 3, 1, 10, 0, 3, 0, time.UTC),
		Gear:      "D",
		Controls:  core.Controls{AutopilotEngaged: true, DrivingActive: true},
		Vehicle: core.VehicleState{
			Speed:         46.2,
			Battery:       77.76,
			Temperature:   27.12,
			GPSBars:       4,
			SteeringAngle: 1.5,
			Heading:       31.4,
			LaneOffset:    -0.2,
			Position:      core.Position{X: 19.1, Y: 81.4},
			SpeedHistory:  []float64{40, 42, 46.2},
			Obstacles:     []core.Obstacle{{ID: 1, X: 55, Y: 40}, {ID: 2, X: 70, Y: 65}},
		},
		Warnings: []core.Warning{{Level: core.LevelInfo, Message: "Lane centering"}},
	}
}

func TestCoreToSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := core.Session{
		ID:           "sess-1",
		VehicleName:  "AD-01",
		StartTime:    start,
		TickInterval: 250 * time.Millisecond,
		Route:        core.DefaultRoute,
		Version:      "1.0.0",
		Tag:          "test",
	}

	m, err := CoreToSession(s)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", m.ID)
	assert.Equal(t, "AD-01", m.VehicleName)
	assert.Equal(t, int64(250), m.TickIntervalMs)
	assert.False(t, m.EndTime.Valid)
	assert.JSONEq(t, `[{"x":10,"y":90},{"x":30,"y":70},{"x":50,"y":50},{"x":70,"y":40},{"x":90,"y":35}]`, string(m.Route))

	s.EndTime = start.Add(time.Minute)
	m, err = CoreToSession(s)
	require.NoError(t, err)
	assert.True(t, m.EndTime.Valid)
	assert.Equal(t, start.Add(time.Minute), m.EndTime.Time)
}

func TestCoreToSession_EmptyRoute(t *testing.T) {
	m, err := CoreToSession(core.Session{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, datatypes.JSON("[]"), m.Route)
}

func TestSessionRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := core.Session{
		ID:           "sess-2",
		VehicleName:  "AD-02",
		StartTime:    start,
		EndTime:      start.Add(90 * time.Second),
		TickInterval: 100 * time.Millisecond,
		Route:        []core.Position{{X: 1, Y: 2}, {X: 3, Y: 4}},
	}
	m, err := CoreToSession(in)
	require.NoError(t, err)

	out, err := SessionToCore(m)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSessionToCore_BadRoute(t *testing.T) {
	_, err := SessionToCore(model.Session{Route: datatypes.JSON("{nope")})
	assert.Error(t, err)
}

func TestSessionToCore_OpenSession(t *testing.T) {
	out, err := SessionToCore(model.Session{ID: "open", EndTime: sql.NullTime{}})
	require.NoError(t, err)
	assert.True(t, out.EndTime.IsZero())
	assert.Nil(t, out.Route)
}

func TestCoreToFrame(t *testing.T) {
	snap := testSnapshot()
	proj := geo.NewProjector(13.405, 52.52, 10)

	f, err := CoreToFrame(snap, proj)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", f.SessionID)
	assert.Equal(t, uint64(12), f.Tick)
	assert.Equal(t, "D", f.Gear)
	assert.True(t, f.Autopilot)
	assert.Equal(t, 46.2, f.Speed)
	assert.Equal(t, uint8(4), f.GPSBars)
	assert.Equal(t, 19.1, f.MapX)
	assert.Equal(t, 81.4, f.MapY)
	assert.False(t, f.Position.IsEmpty())
	assert.JSONEq(t, `[{"id":1,"x":55,"y":40},{"id":2,"x":70,"y":65}]`, string(f.Obstacles))
	assert.JSONEq(t, `[{"level":"info","msg":"Lane centering"}]`, string(f.Warnings))

	pos, ok := proj.PositionFromPoint(f.Position)
	require.True(t, ok)
	assert.InDelta(t, 19.1, pos.X, 1e-6)
	assert.InDelta(t, 81.4, pos.Y, 1e-6)
}

func TestCoreToFrame_NilProjector(t *testing.T) {
	f, err := CoreToFrame(testSnapshot(), nil)
	require.NoError(t, err)
	assert.True(t, f.Position.IsEmpty())
}

func TestCoreToFrame_NoWarnings(t *testing.T) {
	snap := testSnapshot()
	snap.Warnings = nil
	snap.Vehicle.Obstacles = nil

	f, err := CoreToFrame(snap, nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.JSON("[]"), f.Warnings)
	assert.Equal(t, datatypes.JSON("[]"), f.Obstacles)
}

func TestFrameRoundTrip(t *testing.T) {
	in := testSnapshot()
	f, err := CoreToFrame(in, nil)
	require.NoError(t, err)

	out, err := FrameToCore(f)
	require.NoError(t, err)

	assert.Nil(t, out.Vehicle.SpeedHistory)
	in.Vehicle.SpeedHistory = nil
	assert.Equal(t, in, out)
}

func TestFrameToCore_ParkedGear(t *testing.T) {
	out, err := FrameToCore(model.TelemetryFrame{Gear: "P"})
	require.NoError(t, err)
	assert.False(t, out.Controls.DrivingActive)
	assert.NotNil(t, out.Warnings)
}

func TestFrameToCore_BadJSON(t *testing.T) {
	_, err := FrameToCore(model.TelemetryFrame{Obstacles: datatypes.JSON("[")})
	assert.Error(t, err)

	_, err = FrameToCore(model.TelemetryFrame{Warnings: datatypes.JSON("{")})
	assert.Error(t, err)
}

func TestWarningEventRoundTrip(t *testing.T) {
	in := core.WarningEvent{
		SessionID: "sess-1",
		Tick:      40,
		Time:      time.Date(2026, 3, 1, 10, 0, 10, 0, time.UTC),
		Level:     core.LevelCritical,
		Message:   "Low battery",
		Raised:    true,
	}
	m := CoreToWarningEvent(in)
	assert.Equal(t, "critical", m.Level)
	assert.Equal(t, in, WarningEventToCore(m))
}
