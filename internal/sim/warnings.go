package sim

import (
	"math"

	"github.com/autodash/simulator/pkg/core"
)

// Warning messages. Sinks key on these strings.
const (
	MsgLowBattery    = "Low battery"
	MsgWeakGPS       = "Weak GPS"
	MsgLaneCentering = "Lane centering"
	MsgHighSpeed     = "High speed"
)

const (
	LowBatteryThreshold = 15.0
	WeakGPSBars         = 2
	LaneCenteringLimit  = 0.8
	HighSpeedThreshold  = 80.0
)

// Warnings derives the advisories for a vehicle state. It holds no memory
// between calls; the result depends on v alone.
func Warnings(v core.VehicleState) []core.Warning {
	list := []core.Warning{}
	if v.Battery < LowBatteryThreshold {
		list = append(list, core.Warning{Level: core.LevelCritical, Message: MsgLowBattery})
	}
	if v.GPSBars <= WeakGPSBars {
		list = append(list, core.Warning{Level: core.LevelWarning, Message: MsgWeakGPS})
	}
	if math.Abs(v.LaneOffset) > LaneCenteringLimit {
		list = append(list, core.Warning{Level: core.LevelWarning, Message: MsgLaneCentering})
	}
	if v.Speed > HighSpeedThreshold {
		list = append(list, core.Warning{Level: core.LevelInfo, Message: MsgHighSpeed})
	}
	return list
}

// DiffWarnings reports which warnings appeared and which cleared between two lists.
func DiffWarnings(prev, cur []core.Warning) (raised, cleared []core.Warning) {
	seen := make(map[string]bool, len(prev))
	for _, w := range prev {
		seen[w.Message] = true
	}
	now := make(map[string]bool, len(cur))
	for _, w := range cur {
		now[w.Message] = true
		if !seen[w.Message] {
			raised = append(raised, w)
		}
	}
	for _, w := range prev {
		if !now[w.Message] {
			cleared = append(cleared, w)
		}
	}
	return raised, cleared
}
