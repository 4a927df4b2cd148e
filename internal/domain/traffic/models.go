package traffic

import (
	"encoding/json"
	"time"
)

// Density is the classifier's coarse congestion estimate.
type Density string

const (
	DensityLow     Density = "low"
	DensityMedium  Density = "medium"
	DensityHigh    Density = "high"
	DensityUnknown Density = "unknown"
)

// Box is a bounding box in the classifier's convention:
// [yMin, xMin, yMax, xMax], normalized to a 0-1000 grid regardless of
// the source image resolution.
type Box [4]int

func (b Box) YMin() int { return b[0] }
func (b Box) XMin() int { return b[1] }
func (b Box) YMax() int { return b[2] }
func (b Box) XMax() int { return b[3] }

// Empty reports whether the box carries no geometry (the zero box,
// which is also what malformed wire boxes degrade to).
func (b Box) Empty() bool {
	return b == Box{}
}

// Valid reports whether the box is well-formed: yMin <= yMax,
// xMin <= xMax, all coordinates within [0, 1000].
func (b Box) Valid() bool {
	for _, c := range b {
		if c < 0 || c > 1000 {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

type Vehicle struct {
	Type string `json:"type"`
	Box  Box    `json:"box_2d"`
}

type EmergencyVehicle struct {
	Type string `json:"type"`
	Box  Box    `json:"box_2d"`
}

type Pedestrian struct {
	Box      Box    `json:"box_2d"`
	Crossing bool   `json:"crossing"`
	Source   string `json:"source,omitempty"`
}

// Analysis is one completed classifier result. It is immutable once
// produced: each successful call replaces the previous value wholesale.
type Analysis struct {
	Vehicles          []Vehicle          `json:"vehicles"`
	EmergencyVehicles []EmergencyVehicle `json:"emergency_vehicles"`
	Pedestrians       []Pedestrian       `json:"pedestrians"`
	TrafficDensity    Density            `json:"traffic_density"`
	RecommendedAction string             `json:"recommended_action"`
	EmergencyPriority bool               `json:"emergency_priority"`
}

// HasCrossingPedestrian reports whether any pedestrian is on the crossing.
func (a *Analysis) HasCrossingPedestrian() bool {
	for _, p := range a.Pedestrians {
		if p.Crossing {
			return true
		}
	}
	return false
}

// HasAmbulance reports whether an ambulance is among the emergency vehicles.
func (a *Analysis) HasAmbulance() bool {
	for _, e := range a.EmergencyVehicles {
		if e.Type == "ambulance" {
			return true
		}
	}
	return false
}

// rawAnalysis mirrors the classifier's JSON schema with loosely typed
// boxes, so a malformed entry can be dropped without failing the decode.
type rawAnalysis struct {
	Vehicles []struct {
		Type string `json:"type"`
		Box  []int  `json:"box_2d"`
	} `json:"vehicles"`
	EmergencyVehicles []struct {
		Type string `json:"type"`
		Box  []int  `json:"box_2d"`
	} `json:"emergency_vehicles"`
	Pedestrians []struct {
		Box      []int `json:"box_2d"`
		Crossing bool  `json:"crossing"`
	} `json:"pedestrians"`
	TrafficDensity    string `json:"traffic_density"`
	RecommendedAction string `json:"recommended_action"`
	EmergencyPriority bool   `json:"emergency_priority"`
}

// toBox converts a wire-format coordinate list. A malformed list or an
// out-of-range box collapses to the zero box: the detection itself is
// kept (it still counts for signal logic), only its geometry is dropped.
func toBox(raw []int) Box {
	if len(raw) != 4 {
		return Box{}
	}
	b := Box{raw[0], raw[1], raw[2], raw[3]}
	if !b.Valid() {
		return Box{}
	}
	return b
}

// DecodeAnalysis parses a classifier response into an Analysis.
// Missing fields default (empty lists, unknown density) and malformed
// boxes degrade to the zero box; only an undecodable document is an error.
func DecodeAnalysis(data []byte) (Analysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal(data, &raw); err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		Vehicles:          []Vehicle{},
		EmergencyVehicles: []EmergencyVehicle{},
		Pedestrians:       []Pedestrian{},
		TrafficDensity:    DensityUnknown,
		RecommendedAction: raw.RecommendedAction,
		EmergencyPriority: raw.EmergencyPriority,
	}

	// Density passes through as reported; signal logic treats anything
	// it does not recognize as a 1.0 multiplier.
	if raw.TrafficDensity != "" {
		a.TrafficDensity = Density(raw.TrafficDensity)
	}

	for _, v := range raw.Vehicles {
		kind := v.Type
		if kind == "" {
			kind = "car"
		}
		a.Vehicles = append(a.Vehicles, Vehicle{Type: kind, Box: toBox(v.Box)})
	}
	for _, e := range raw.EmergencyVehicles {
		kind := e.Type
		if kind == "" {
			kind = "emergency"
		}
		a.EmergencyVehicles = append(a.EmergencyVehicles, EmergencyVehicle{Type: kind, Box: toBox(e.Box)})
	}
	for _, p := range raw.Pedestrians {
		a.Pedestrians = append(a.Pedestrians, Pedestrian{Box: toBox(p.Box), Crossing: p.Crossing})
	}

	return a, nil
}

// Action is the signal plan chosen for the current tick.
type Action string

const (
	ActionIdle               Action = "idle"
	ActionAdaptive           Action = "adaptive"
	ActionPedestrianCrossing Action = "pedestrian_crossing"
	ActionEmergencyClear     Action = "emergency_clear"
)

// LightState is the road-facing light color.
type LightState string

const (
	LightGreen LightState = "green"
	LightRed   LightState = "red"
)

// Decision is the output of one signal evaluation. Produced fresh on
// every tick and never persisted.
type Decision struct {
	Action     Action     `json:"action"`
	LightState LightState `json:"light_state"`
	WalkSign   bool       `json:"walk_sign"`
	Message    string     `json:"message"`
	GreenTime  float64    `json:"green_time_seconds,omitempty"`
}

// QuotaState is a copy of the analyzer's admission bookkeeping.
type QuotaState struct {
	NextAllowedCallAt   time.Time `json:"next_allowed_call_at"`
	DailyQuotaExhausted bool      `json:"daily_quota_exhausted"`
	CallsMade           int       `json:"calls_made"`
	Analyzing           bool      `json:"analyzing"`
}
