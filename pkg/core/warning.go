// pkg/core/warning.go
package core

import "time"

// Level is the severity of an advisory warning.
type Level string

const (
	LevelCritical Level = "critical"
	LevelWarning  Level = "warning"
	LevelInfo     Level = "info"
)

// Warning is an advisory derived from the current vehicle state.
type Warning struct {
	Level   Level  `json:"level"`
	Message string `json:"msg"`
}

// WarningEvent records a warning appearing or clearing between two ticks.
type WarningEvent struct {
	SessionID string    `json:"sessionId"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	Level     Level     `json:"level"`
	Message   string    `json:"msg"`
	Raised    bool      `json:"raised"`
}
