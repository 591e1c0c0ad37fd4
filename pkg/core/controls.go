// pkg/core/controls.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLaneDirection is returned when a lane change names neither left nor right.
var ErrInvalidLaneDirection = errors.New("invalid lane direction")

// LaneDirection is a one-shot lane change request.
type LaneDirection string

const (
	LaneNone  LaneDirection = ""
	LaneLeft  LaneDirection = "left"
	LaneRight LaneDirection = "right"
)

// LaneChangeNudge is the lateral offset applied by a single lane change, in meters.
const LaneChangeNudge = 0.4

// ParseLaneDirection accepts "left"/"right" in any case, plus the "l"/"r" shorthands.
func ParseLaneDirection(s string) (LaneDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return LaneLeft, nil
	case "right", "r":
		return LaneRight, nil
	default:
		return LaneNone, fmt.Errorf("%w: %q", ErrInvalidLaneDirection, s)
	}
}

// Nudge returns the signed offset for the direction. Left is negative.
func (d LaneDirection) Nudge() float64 {
	switch d {
	case LaneLeft:
		return -LaneChangeNudge
	case LaneRight:
		return LaneChangeNudge
	default:
		return 0
	}
}

// Controls are the operator inputs read by every tick.
// PendingLaneChanges holds one entry per request since the last tick, in
// arrival order.
type Controls struct {
	AutopilotEngaged   bool            `json:"autopilotEngaged"`
	DrivingActive      bool            `json:"drivingActive"`
	PendingLaneChanges []LaneDirection `json:"pendingLaneChanges,omitempty"`
}

// Gear is the shift indicator derived from the driving flag.
func (c Controls) Gear() string {
	if c.DrivingActive {
		return "D"
	}
	return "P"
}
