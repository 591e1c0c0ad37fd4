// Package sim advances the synthetic vehicle one tick at a time.
package sim

import (
	"github.com/autodash/simulator/internal/queue"
	"github.com/autodash/simulator/pkg/core"
)

// DefaultHistorySize is how many speed samples the sparkline keeps.
const DefaultHistorySize = 120

// State is the mutable vehicle owned by the simulation clock.
type State struct {
	Speed         float64
	Battery       float64
	Temperature   float64
	GPSBars       int
	SteeringAngle float64
	Heading       float64
	LaneOffset    float64
	Position      core.Position
	Obstacles     []core.Obstacle
	SpeedHistory  *queue.Ring[float64]
}

// NewState returns the vehicle as it is at process start.
func NewState(historySize int) *State {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &State{
		Speed:         38,
		Battery:       78,
		Temperature:   27,
		GPSBars:       4,
		SteeringAngle: 2,
		Heading:       30,
		LaneOffset:    0,
		Position:      core.Position{X: 18, Y: 82},
		Obstacles: []core.Obstacle{
			{ID: 1, X: 55, Y: 40},
			{ID: 2, X: 70, Y: 65},
		},
		SpeedHistory: queue.NewRing[float64](historySize),
	}
}

// DefaultControls has autopilot engaged and the vehicle driving.
func DefaultControls() core.Controls {
	return core.Controls{AutopilotEngaged: true, DrivingActive: true}
}

// Vehicle returns a deep copy of the state for publishing.
func (s *State) Vehicle() core.VehicleState {
	return core.VehicleState{
		Speed:         s.Speed,
		Battery:       s.Battery,
		Temperature:   s.Temperature,
		GPSBars:       s.GPSBars,
		SteeringAngle: s.SteeringAngle,
		Heading:       s.Heading,
		LaneOffset:    s.LaneOffset,
		Position:      s.Position,
		SpeedHistory:  s.SpeedHistory.Values(),
		Obstacles:     append([]core.Obstacle(nil), s.Obstacles...),
	}
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Obstacles = append([]core.Obstacle(nil), s.Obstacles...)
	c.SpeedHistory = s.SpeedHistory.Clone()
	return &c
}
