// pkg/core/snapshot.go
package core

import "time"

// Snapshot is what a tick publishes: the vehicle state, the controls it ran
// under and the warnings derived from the result.
type Snapshot struct {
	SessionID string       `json:"sessionId"`
	Tick      uint64       `json:"tick"`
	Time      time.Time    `json:"time"`
	Gear      string       `json:"gear"`
	Controls  Controls     `json:"controls"`
	Vehicle   VehicleState `json:"vehicle"`
	Warnings  []Warning    `json:"warnings"`
}

// HasWarning reports whether a warning with the given message is active.
func (s *Snapshot) HasWarning(msg string) bool {
	for _, w := range s.Warnings {
		if w.Message == msg {
			return true
		}
	}
	return false
}
