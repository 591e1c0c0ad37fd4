// Package model holds the gorm table definitions for recorded sessions.
package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// DatabaseModels is every table migrated on setup.
var DatabaseModels = []interface{}{
	&Session{},
	&TelemetryFrame{},
	&WarningEvent{},
	&PerformanceSample{},
}

// Session is one simulator run.
type Session struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt      time.Time      `json:"-"`
	UpdatedAt      time.Time      `json:"-"`
	VehicleName    string         `json:"vehicleName" gorm:"size:64"`
	StartTime      time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime        sql.NullTime   `json:"endTime"`
	TickIntervalMs int64          `json:"tickIntervalMs"`
	Route          datatypes.JSON `json:"route"`
	Version        string         `json:"version" gorm:"size:64"`
	Tag            string         `json:"tag" gorm:"size:127"`
}

func (*Session) TableName() string {
	return "sessions"
}

// TelemetryFrame is the vehicle state published by one tick.
// Position is stored in EPSG:3857; MapX/MapY keep the raw map coordinates.
type TelemetryFrame struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time      `json:"time" gorm:"index:idx_frame_time"`
	SessionID     string         `json:"sessionId" gorm:"size:36;index:idx_frame_session_tick,priority:1"`
	Tick          uint64         `json:"tick" gorm:"index:idx_frame_session_tick,priority:2"`
	Gear          string         `json:"gear" gorm:"size:1"`
	Autopilot     bool           `json:"autopilot"`
	Speed         float64        `json:"speed"`
	Battery       float64        `json:"battery"`
	Temperature   float64        `json:"temperature"`
	GPSBars       uint8          `json:"gpsBars"`
	SteeringAngle float64        `json:"steeringAngle"`
	Heading       float64        `json:"heading"`
	LaneOffset    float64        `json:"laneOffset"`
	MapX          float64        `json:"mapX"`
	MapY          float64        `json:"mapY"`
	Position      geom.Point     `json:"position"`
	Obstacles     datatypes.JSON `json:"obstacles"`
	Warnings      datatypes.JSON `json:"warnings"`
}

func (*TelemetryFrame) TableName() string {
	return "telemetry_frames"
}

// WarningEvent marks a warning being raised or cleared.
type WarningEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_warning_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_warning_session"`
	Tick      uint64    `json:"tick"`
	Level     string    `json:"level" gorm:"size:16"`
	Message   string    `json:"message" gorm:"size:64"`
	Raised    bool      `json:"raised"`
}

func (*WarningEvent) TableName() string {
	return "warning_events"
}

// PerformanceSample is a periodic health reading of the recorder itself.
type PerformanceSample struct {
	ID                  uint              `json:"id" gorm:"primarykey;autoIncrement;"`
	Time                time.Time         `json:"time" gorm:"index:idx_perf_time"`
	SessionID           string            `json:"sessionId" gorm:"size:36;index:idx_perf_session"`
	Tick                uint64            `json:"tick"`
	BufferLengths       BufferLengths     `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*PerformanceSample) TableName() string {
	return "performance_samples"
}

// BufferLengths are dispatcher queue depths.
type BufferLengths struct {
	Snapshots uint16 `json:"snapshots"`
	Warnings  uint16 `json:"warnings"`
}

// WriteQueueLengths are storage writer queue depths.
type WriteQueueLengths struct {
	Frames   uint16 `json:"frames"`
	Warnings uint16 `json:"warnings"`
}
