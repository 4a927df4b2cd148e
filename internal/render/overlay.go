package render

import (
	"traffic-analyzer/internal/domain/traffic"
)

// Rect is a pixel-space rectangle ready for the frontend to draw.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// OverlayBox is one drawable detection.
type OverlayBox struct {
	Label    string `json:"label"`
	Rect     Rect   `json:"rect"`
	Kind     string `json:"kind"`
	Crossing bool   `json:"crossing,omitempty"`
}

// scaleBox maps a 0-1000 normalized box onto an image of the given
// size. The second return is false for boxes without usable geometry.
func scaleBox(b traffic.Box, width, height int) (Rect, bool) {
	if b.Empty() || !b.Valid() || width <= 0 || height <= 0 {
		return Rect{}, false
	}
	return Rect{
		X1: b.XMin() * width / 1000,
		Y1: b.YMin() * height / 1000,
		X2: b.XMax() * width / 1000,
		Y2: b.YMax() * height / 1000,
	}, true
}

// Overlay converts an analysis into drawable boxes for a frame of the
// given pixel size. Detections without valid geometry are excluded;
// they never abort the overlay.
func Overlay(a traffic.Analysis, width, height int) []OverlayBox {
	boxes := make([]OverlayBox, 0, len(a.Vehicles)+len(a.EmergencyVehicles)+len(a.Pedestrians))

	for _, v := range a.Vehicles {
		if rect, ok := scaleBox(v.Box, width, height); ok {
			boxes = append(boxes, OverlayBox{Label: v.Type, Rect: rect, Kind: "vehicle"})
		}
	}
	for _, e := range a.EmergencyVehicles {
		if rect, ok := scaleBox(e.Box, width, height); ok {
			boxes = append(boxes, OverlayBox{Label: e.Type, Rect: rect, Kind: "emergency"})
		}
	}
	for _, p := range a.Pedestrians {
		if rect, ok := scaleBox(p.Box, width, height); ok {
			boxes = append(boxes, OverlayBox{Label: "pedestrian", Rect: rect, Kind: "pedestrian", Crossing: p.Crossing})
		}
	}
	return boxes
}
