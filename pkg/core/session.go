// pkg/core/session.go
package core

import "time"

// DefaultRoute is the planned path drawn on the perception map.
var DefaultRoute = []Position{
	{X: 10, Y: 90},
	{X: 30, Y: 70},
	{X: 50, Y: 50},
	{X: 70, Y: 40},
	{X: 90, Y: 35},
}

// Session is one run of the simulator, from process start to shutdown.
type Session struct {
	ID           string        `json:"id"`
	VehicleName  string        `json:"vehicleName"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime,omitempty"`
	TickInterval time.Duration `json:"tickInterval"`
	Route        []Position    `json:"route"`
	Version      string        `json:"version"`
	Tag          string        `json:"tag,omitempty"`
}

// UploadMetadata contains session metadata for upload to the dashboard server.
type UploadMetadata struct {
	SessionID   string
	VehicleName string
	Duration    float64 // seconds
	Tag         string
}
