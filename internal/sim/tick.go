package sim

import (
	"math"

	"github.com/autodash/simulator/pkg/core"
)

const (
	batteryDrainDriving = 0.02
	batteryDrainIdle    = 0.005

	tempRiseDriving = 0.01
	tempFallIdle    = 0.005

	// gpsLoss and gpsGain split one uniform draw 10/80/10.
	gpsLoss = 0.1
	gpsGain = 0.9

	targetSpeedAutopilot = 48.0
	targetSpeedManual    = 30.0
	speedSmoothing       = 0.08
	speedNoise           = 0.3

	steeringNoiseAutopilot = 1.0
	steeringNoiseManual    = 3.0

	laneDecay = 0.2
	laneNoise = 0.03

	obstacleNoise = 0.15

	// Heading changes by (steering/steeringDivisor)*(speed/speedDivisor) per tick.
	steeringDivisor = 60.0
	speedDivisor    = 40.0
	// positionScale turns km/h into map units per tick.
	positionScale = 300.0
)

// Tick advances s by one step under controls c, drawing noise from rng.
//
// Draw order is fixed: gps, speed, steering, lane (manual only), then x and y
// for each obstacle. A pending lane change in c is consumed.
func Tick(s *State, c *core.Controls, rng Source) {
	driving := c.DrivingActive
	autopilot := c.AutopilotEngaged

	if driving {
		s.Battery -= batteryDrainDriving
		s.Temperature += tempRiseDriving
	} else {
		s.Battery -= batteryDrainIdle
		s.Temperature -= tempFallIdle
	}
	s.Battery = clamp(s.Battery, BatteryMin, BatteryMax)
	s.Temperature = clamp(s.Temperature, TemperatureMin, TemperatureMax)

	s.GPSBars = clampInt(s.GPSBars+gpsStep(rng.Float64()), GPSBarsMin, GPSBarsMax)

	target := TargetSpeed(*c)
	s.Speed = clamp(s.Speed+(target-s.Speed)*speedSmoothing+noise(rng, speedNoise), SpeedMin, SpeedMax)

	amp := steeringNoiseManual
	if autopilot {
		amp = steeringNoiseAutopilot
	}
	s.SteeringAngle = clamp(s.SteeringAngle+noise(rng, amp), -SteeringLimit, SteeringLimit)

	s.Heading = wrapHeading(s.Heading + (s.SteeringAngle/steeringDivisor)*(s.Speed/speedDivisor))

	if autopilot {
		s.LaneOffset -= s.LaneOffset * laneDecay
	} else {
		s.LaneOffset += noise(rng, laneNoise)
	}
	s.LaneOffset = clamp(s.LaneOffset, -LaneHoldLimit, LaneHoldLimit)
	for _, dir := range c.PendingLaneChanges {
		s.LaneOffset = clamp(s.LaneOffset+dir.Nudge(), -LaneOffsetLimit, LaneOffsetLimit)
	}
	c.PendingLaneChanges = nil

	rad := s.Heading * math.Pi / 180
	step := s.Speed / positionScale
	s.Position.X = clamp(s.Position.X+math.Cos(rad)*step, PositionMin, PositionMax)
	s.Position.Y = clamp(s.Position.Y-math.Sin(rad)*step, PositionMin, PositionMax)

	for i := range s.Obstacles {
		o := &s.Obstacles[i]
		o.X = clamp(o.X+noise(rng, obstacleNoise), ObstacleMin, ObstacleMax)
		o.Y = clamp(o.Y+noise(rng, obstacleNoise), ObstacleMin, ObstacleMax)
	}

	s.SpeedHistory.Add(s.Speed)
}

// TargetSpeed is the speed the vehicle settles at under the given controls.
func TargetSpeed(c core.Controls) float64 {
	switch {
	case c.AutopilotEngaged && c.DrivingActive:
		return targetSpeedAutopilot
	case c.DrivingActive:
		return targetSpeedManual
	default:
		return 0
	}
}

// noise maps a uniform draw onto [-amp, amp].
func noise(rng Source, amp float64) float64 {
	return (rng.Float64() - 0.5) * 2 * amp
}

func gpsStep(u float64) int {
	switch {
	case u < gpsLoss:
		return -1
	case u >= gpsGain:
		return 1
	default:
		return 0
	}
}
