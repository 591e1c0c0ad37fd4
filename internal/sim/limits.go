package sim

import "math"

// Field ranges. Every tick clamps into these closed intervals.
const (
	SpeedMin, SpeedMax             = 0.0, 120.0
	BatteryMin, BatteryMax         = 0.0, 100.0
	TemperatureMin, TemperatureMax = 18.0, 45.0
	GPSBarsMin, GPSBarsMax         = 2, 5
	SteeringLimit                  = 30.0
	PositionMin, PositionMax       = 5.0, 95.0
	ObstacleMin, ObstacleMax       = 10.0, 90.0

	// LaneHoldLimit bounds the lane offset produced by centering or drift.
	LaneHoldLimit = 1.2
	// LaneOffsetLimit bounds the offset after a lane change nudge.
	LaneOffsetLimit = 1.5

	HeadingPeriod = 360.0
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapHeading maps any angle into [0,360).
func wrapHeading(h float64) float64 {
	h = math.Mod(h, HeadingPeriod)
	if h < 0 {
		h += HeadingPeriod
	}
	// -tiny + 360 rounds to exactly 360
	if h >= HeadingPeriod {
		h -= HeadingPeriod
	}
	return h
}
