package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/autodash/simulator/internal/model"
	"github.com/autodash/simulator/pkg/core"
)

// SessionToCore converts a GORM model.Session to a core.Session.
func SessionToCore(s model.Session) (core.Session, error) {
	out := core.Session{
		ID:           s.ID,
		VehicleName:  s.VehicleName,
		StartTime:    s.StartTime,
		TickInterval: time.Duration(s.TickIntervalMs) * time.Millisecond,
		Version:      s.Version,
		Tag:          s.Tag,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	if len(s.Route) > 0 {
		if err := json.Unmarshal(s.Route, &out.Route); err != nil {
			return core.Session{}, fmt.Errorf("unmarshal route: %w", err)
		}
	}
	return out, nil
}

// FrameToCore rebuilds a snapshot from a telemetry row.
// The speed history is not stored per frame and comes back nil. Driving state
// is recovered from the gear.
func FrameToCore(f model.TelemetryFrame) (core.Snapshot, error) {
	snap := core.Snapshot{
		SessionID: f.SessionID,
		Tick:      f.Tick,
		Time:      f.Time,
		Gear:      f.Gear,
		Controls: core.Controls{
			AutopilotEngaged: f.Autopilot,
			DrivingActive:    f.Gear == "D",
		},
		Vehicle: core.VehicleState{
			Speed:         f.Speed,
			Battery:       f.Battery,
			Temperature:   f.Temperature,
			GPSBars:       int(f.GPSBars),
			SteeringAngle: f.SteeringAngle,
			Heading:       f.Heading,
			LaneOffset:    f.LaneOffset,
			Position:      core.Position{X: f.MapX, Y: f.MapY},
		},
		Warnings: []core.Warning{},
	}
	if len(f.Obstacles) > 0 {
		if err := json.Unmarshal(f.Obstacles, &snap.Vehicle.Obstacles); err != nil {
			return core.Snapshot{}, fmt.Errorf("unmarshal obstacles: %w", err)
		}
	}
	if len(f.Warnings) > 0 {
		if err := json.Unmarshal(f.Warnings, &snap.Warnings); err != nil {
			return core.Snapshot{}, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	return snap, nil
}

// WarningEventToCore converts a GORM model.WarningEvent to a core.WarningEvent.
func WarningEventToCore(e model.WarningEvent) core.WarningEvent {
	return core.WarningEvent{
		SessionID: e.SessionID,
		Tick:      e.Tick,
		Time:      e.Time,
		Level:     core.Level(e.Level),
		Message:   e.Message,
		Raised:    e.Raised,
	}
}
