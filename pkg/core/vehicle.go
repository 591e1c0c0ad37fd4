// pkg/core/vehicle.go
package core

// Position is a point in map space. Both axes run 0..100.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Obstacle is a tracked object on the perception map.
// ID is assigned once at startup and never changes.
type Obstacle struct {
	ID uint16  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// VehicleState is a read-only copy of the simulated vehicle at one tick.
type VehicleState struct {
	Speed         float64    `json:"speed"`         // km/h
	Battery       float64    `json:"battery"`       // percent
	Temperature   float64    `json:"temperature"`   // Celsius
	GPSBars       int        `json:"gpsBars"`       // 2..5
	SteeringAngle float64    `json:"steeringAngle"` // degrees
	Heading       float64    `json:"heading"`       // degrees, [0,360)
	LaneOffset    float64    `json:"laneOffset"`    // meters, signed
	Position      Position   `json:"position"`
	SpeedHistory  []float64  `json:"speedHistory"`
	Obstacles     []Obstacle `json:"obstacles"`
}

// Clone returns a deep copy so readers never alias the simulator's slices.
func (v VehicleState) Clone() VehicleState {
	out := v
	if v.SpeedHistory != nil {
		out.SpeedHistory = append([]float64(nil), v.SpeedHistory...)
	}
	if v.Obstacles != nil {
		out.Obstacles = append([]Obstacle(nil), v.Obstacles...)
	}
	return out
}
