package signal

import (
	"fmt"

	"traffic-analyzer/internal/domain/traffic"
)

const baseGreenTime = 30.0

// densityMultipliers scale the base green time per congestion level.
// Unrecognized densities fall back to 1.0.
var densityMultipliers = map[traffic.Density]float64{
	traffic.DensityLow:    0.7,
	traffic.DensityMedium: 1.0,
	traffic.DensityHigh:   1.3,
	"gridlock":            1.5,
}

// Controller maps the latest analysis onto a signal decision. It is a
// pure function of its input except for the emergency latch, which is
// set on the first emergency-priority analysis and never cleared (there
// is deliberately no reset path).
type Controller struct {
	emergencyLatched bool
}

func NewController() *Controller {
	return &Controller{}
}

// EmergencyLatched reports whether an emergency-priority analysis has
// ever been observed.
func (c *Controller) EmergencyLatched() bool {
	return c.emergencyLatched
}

// Decide evaluates the rules highest-priority first; the first match
// wins. sensorTriggered merges the external motion sensor: it counts as
// one crossing pedestrian when the classifier saw none.
func (c *Controller) Decide(a traffic.Analysis, sensorTriggered bool) traffic.Decision {
	if a.EmergencyPriority {
		c.emergencyLatched = true
		return traffic.Decision{
			Action:     traffic.ActionEmergencyClear,
			LightState: traffic.LightRed,
			WalkSign:   false,
			Message:    "Emergency vehicle approaching!",
		}
	}

	crossing := a.HasCrossingPedestrian()
	if !crossing && sensorTriggered && len(a.Pedestrians) == 0 {
		crossing = true
	}
	if crossing {
		return traffic.Decision{
			Action:     traffic.ActionPedestrianCrossing,
			LightState: traffic.LightRed,
			WalkSign:   true,
			Message:    "Pedestrian crossing active",
		}
	}

	density := a.TrafficDensity
	if density == "" {
		density = traffic.DensityMedium
	}
	multiplier, ok := densityMultipliers[density]
	if !ok {
		multiplier = 1.0
	}
	greenTime := baseGreenTime * multiplier
	return traffic.Decision{
		Action:     traffic.ActionAdaptive,
		LightState: traffic.LightGreen,
		WalkSign:   false,
		GreenTime:  greenTime,
		Message:    fmt.Sprintf("Density: %s - green: %.0fs", density, greenTime),
	}
}

// Idle is the decision when no analysis has ever completed. The message
// distinguishes a terminally exhausted quota from simply waiting, and
// quota exhaustion always wins.
func Idle(quota traffic.QuotaState, cameraActive bool) traffic.Decision {
	message := "Waiting for camera..."
	switch {
	case quota.DailyQuotaExhausted:
		message = "Daily API quota exhausted. Restart tomorrow."
	case cameraActive:
		message = "Camera active - waiting for first analysis..."
	}
	return traffic.Decision{
		Action:     traffic.ActionIdle,
		LightState: traffic.LightGreen,
		WalkSign:   false,
		Message:    message,
	}
}
