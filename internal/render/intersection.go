package render

import (
	"traffic-analyzer/internal/domain/traffic"
)

// Slot is a fixed position on the top-down intersection map.
type Slot struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MapVehicle is a vehicle placed in one of the map's lane slots.
type MapVehicle struct {
	Label     string `json:"label"`
	Emergency bool   `json:"emergency"`
	Slot      Slot   `json:"slot"`
}

// MapPedestrian is a pedestrian placed on the crosswalk.
type MapPedestrian struct {
	Slot Slot `json:"slot"`
}

// IntersectionMap is the top-down schematic the dashboard renders:
// vehicles fill two slots per lane, at most four pedestrians fit on the
// crosswalk, and the light/walk-sign/sensor states come straight from
// the decision and the PIR.
type IntersectionMap struct {
	LightState  traffic.LightState `json:"light_state"`
	WalkSign    bool               `json:"walk_sign"`
	PIRActive   bool               `json:"pir_active"`
	Vehicles    []MapVehicle       `json:"vehicles"`
	Pedestrians []MapPedestrian    `json:"pedestrians"`
}

// Lane 1 runs upward on the left, lane 2 downward on the right; slots
// fill nearest-to-intersection first.
var (
	lane1Slots = []Slot{{3.75, 11.5}, {3.75, 9.5}}
	lane2Slots = []Slot{{6.25, 3.5}, {6.25, 1.5}}
	pedSlots   = []Slot{{3.0, 7.3}, {4.2, 6.8}, {5.5, 7.4}, {6.8, 7.0}}
)

var vehicleLabels = map[string]string{
	"car":       "CAR",
	"truck":     "TRK",
	"bus":       "BUS",
	"ambulance": "AMB",
	"police":    "POL",
}

func label(kind string) string {
	if l, ok := vehicleLabels[kind]; ok {
		return l
	}
	return "CAR"
}

// Intersection lays out the map for the current analysis and decision.
func Intersection(a traffic.Analysis, decision traffic.Decision, pirActive bool) IntersectionMap {
	m := IntersectionMap{
		LightState:  decision.LightState,
		WalkSign:    decision.WalkSign,
		PIRActive:   pirActive,
		Vehicles:    []MapVehicle{},
		Pedestrians: []MapPedestrian{},
	}
	if m.LightState == "" {
		m.LightState = traffic.LightGreen
	}

	slot1, slot2 := 0, 0
	place := func(kind string, emergency bool) bool {
		var s Slot
		switch {
		case slot1 < len(lane1Slots):
			s = lane1Slots[slot1]
			slot1++
		case slot2 < len(lane2Slots):
			s = lane2Slots[slot2]
			slot2++
		default:
			return false
		}
		m.Vehicles = append(m.Vehicles, MapVehicle{Label: label(kind), Emergency: emergency, Slot: s})
		return true
	}

	for _, v := range a.Vehicles {
		if !place(v.Type, false) {
			break
		}
	}
	for _, e := range a.EmergencyVehicles {
		if !place(e.Type, true) {
			break
		}
	}

	for i := range a.Pedestrians {
		if i >= len(pedSlots) {
			break
		}
		m.Pedestrians = append(m.Pedestrians, MapPedestrian{Slot: pedSlots[i]})
	}

	return m
}
