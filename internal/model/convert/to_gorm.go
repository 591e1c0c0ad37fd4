// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/model"
	"github.com/autodash/simulator/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column. Nil slices are stored as "[]".
func toJSON[T any](v []T) (datatypes.JSON, error) {
	if len(v) == 0 {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) (model.Session, error) {
	route, err := toJSON(s.Route)
	if err != nil {
		return model.Session{}, fmt.Errorf("marshal route: %w", err)
	}
	out := model.Session{
		ID:             s.ID,
		VehicleName:    s.VehicleName,
		StartTime:      s.StartTime,
		TickIntervalMs: s.TickInterval.Milliseconds(),
		Route:          route,
		Version:        s.Version,
		Tag:            s.Tag,
	}
	if !s.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: s.EndTime, Valid: true}
	}
	return out, nil
}

// CoreToFrame converts a snapshot to a telemetry row. With a nil projector the
// Position column is left empty.
func CoreToFrame(s core.Snapshot, proj *geo.Projector) (model.TelemetryFrame, error) {
	obstacles, err := toJSON(s.Vehicle.Obstacles)
	if err != nil {
		return model.TelemetryFrame{}, fmt.Errorf("marshal obstacles: %w", err)
	}
	warnings, err := toJSON(s.Warnings)
	if err != nil {
		return model.TelemetryFrame{}, fmt.Errorf("marshal warnings: %w", err)
	}

	v := s.Vehicle
	frame := model.TelemetryFrame{
		Time:          s.Time,
		SessionID:     s.SessionID,
		Tick:          s.Tick,
		Gear:          s.Gear,
		Autopilot:     s.Controls.AutopilotEngaged,
		Speed:         v.Speed,
		Battery:       v.Battery,
		Temperature:   v.Temperature,
		GPSBars:       uint8(v.GPSBars),
		SteeringAngle: v.SteeringAngle,
		Heading:       v.Heading,
		LaneOffset:    v.LaneOffset,
		MapX:          v.Position.X,
		MapY:          v.Position.Y,
		Obstacles:     obstacles,
		Warnings:      warnings,
	}
	if proj != nil {
		frame.Position = proj.Point(v.Position)
	}
	return frame, nil
}

// CoreToWarningEvent converts a core.WarningEvent to a GORM model.WarningEvent.
func CoreToWarningEvent(e core.WarningEvent) model.WarningEvent {
	return model.WarningEvent{
		Time:      e.Time,
		SessionID: e.SessionID,
		Tick:      e.Tick,
		Level:     string(e.Level),
		Message:   e.Message,
		Raised:    e.Raised,
	}
}
