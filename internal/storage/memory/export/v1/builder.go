package v1

import (
	"math"
	"time"

	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session   *core.Session
	Frames    []core.Snapshot
	Warnings  []core.WarningEvent
	Projector *geo.Projector // optional
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	s := data.Session
	export := Export{
		FormatVersion:  FormatVersion,
		SessionID:      s.ID,
		VehicleName:    s.VehicleName,
		Version:        s.Version,
		Tag:            s.Tag,
		StartTime:      formatTime(s.StartTime),
		EndTime:        formatTime(s.EndTime),
		TickIntervalMs: s.TickInterval.Milliseconds(),
		Route:          make([][]float64, 0, len(s.Route)),
		Track:          make([][]float64, 0),
		Frames:         make([][]any, 0, len(data.Frames)),
		Warnings:       make([][]any, 0, len(data.Warnings)),
	}

	for _, p := range s.Route {
		export.Route = append(export.Route, []float64{p.X, p.Y})
	}

	positions := make([]core.Position, 0, len(data.Frames))
	for _, f := range data.Frames {
		v := f.Vehicle
		obstacles := make([][]float64, 0, len(v.Obstacles))
		for _, o := range v.Obstacles {
			obstacles = append(obstacles, []float64{float64(o.ID), round(o.X, 2), round(o.Y, 2)})
		}
		warnings := make([]string, 0, len(f.Warnings))
		for _, w := range f.Warnings {
			warnings = append(warnings, w.Message)
		}

		export.Frames = append(export.Frames, []any{
			f.Tick,
			round(v.Speed, 2),
			round(v.Battery, 3),
			round(v.Temperature, 2),
			v.GPSBars,
			round(v.SteeringAngle, 2),
			round(v.Heading, 2),
			round(v.LaneOffset, 3),
			[]float64{round(v.Position.X, 3), round(v.Position.Y, 3)},
			f.Gear,
			boolToInt(f.Controls.AutopilotEngaged),
			obstacles,
			warnings,
		})
		positions = append(positions, v.Position)
		if f.Tick > export.EndTick {
			export.EndTick = f.Tick
		}

		if data.Projector != nil {
			lon, lat := data.Projector.LonLat(v.Position)
			export.Track = append(export.Track, []float64{round(lon, 7), round(lat, 7)})
		}
	}

	// Format: [tick, "raised"|"cleared", level, message]
	for _, e := range data.Warnings {
		state := "cleared"
		if e.Raised {
			state = "raised"
		}
		export.Warnings = append(export.Warnings, []any{e.Tick, state, string(e.Level), e.Message})
	}

	export.Summary = summarize(data.Frames, data.Warnings)
	if data.Projector != nil {
		export.Summary.DistanceMeters = round(data.Projector.TrackLength(positions), 2)
	}
	return export
}

func summarize(frames []core.Snapshot, events []core.WarningEvent) Summary {
	sum := Summary{
		Frames:         len(frames),
		WarningsRaised: make(map[string]int),
	}
	for _, e := range events {
		if e.Raised {
			sum.WarningsRaised[e.Message]++
		}
	}
	if len(frames) == 0 {
		return sum
	}

	sum.MinSpeed = math.Inf(1)
	sum.MaxSpeed = math.Inf(-1)
	var total float64
	var autopilot int
	for _, f := range frames {
		speed := f.Vehicle.Speed
		sum.MinSpeed = math.Min(sum.MinSpeed, speed)
		sum.MaxSpeed = math.Max(sum.MaxSpeed, speed)
		total += speed
		if f.Controls.AutopilotEngaged {
			autopilot++
		}
	}
	sum.MinSpeed = round(sum.MinSpeed, 2)
	sum.MaxSpeed = round(sum.MaxSpeed, 2)
	sum.AvgSpeed = round(total/float64(len(frames)), 2)
	sum.AutopilotShare = round(float64(autopilot)/float64(len(frames)), 3)
	sum.BatteryStart = round(frames[0].Vehicle.Battery, 3)
	sum.BatteryEnd = round(frames[len(frames)-1].Vehicle.Battery, 3)
	sum.BatteryUsed = round(sum.BatteryStart-sum.BatteryEnd, 3)
	return sum
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
