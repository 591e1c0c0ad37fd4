// Package v1 contains the v1 export format for recorded sessions.
// Frames and warnings are positional arrays to keep long recordings small.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion  int         `json:"formatVersion"`
	SessionID      string      `json:"sessionId"`
	VehicleName    string      `json:"vehicleName"`
	Version        string      `json:"version"`
	Tag            string      `json:"tag"`
	StartTime      string      `json:"startTime"`
	EndTime        string      `json:"endTime"`
	TickIntervalMs int64       `json:"tickIntervalMs"`
	EndTick        uint64      `json:"endTick"`
	Route          [][]float64 `json:"route"`
	Summary        Summary     `json:"summary"`
	Track          [][]float64 `json:"track"` // [lon, lat] per frame, empty without a projector
	Frames         [][]any     `json:"frames"`
	Warnings       [][]any     `json:"warnings"`
}

// Summary aggregates a whole session.
type Summary struct {
	Frames         int            `json:"frames"`
	DistanceMeters float64        `json:"distanceMeters"`
	MinSpeed       float64        `json:"minSpeed"`
	MaxSpeed       float64        `json:"maxSpeed"`
	AvgSpeed       float64        `json:"avgSpeed"`
	BatteryStart   float64        `json:"batteryStart"`
	BatteryEnd     float64        `json:"batteryEnd"`
	BatteryUsed    float64        `json:"batteryUsed"`
	AutopilotShare float64        `json:"autopilotShare"` // fraction of frames under autopilot
	WarningsRaised map[string]int `json:"warningsRaised"` // keyed by message
}

// Frame column indices.
const (
	FrameTick = iota
	FrameSpeed
	FrameBattery
	FrameTemperature
	FrameGPSBars
	FrameSteering
	FrameHeading
	FrameLaneOffset
	FramePosition
	FrameGear
	FrameAutopilot
	FrameObstacles
	FrameWarnings
)
