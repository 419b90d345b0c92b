package handlers

import (
	"encoding/json"
	"errors"
	"math"
)

var errNoCoordinates = errors.New("geometry has no coordinates")

// envelopeArea returns the area of the lon/lat bounding box of a GeoJSON
// geometry, in square degrees.
func envelopeArea(raw json.RawMessage) (float64, error) {
	var geom struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geom); err != nil {
		return 0, err
	}

	var coords any
	if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
		return 0, err
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false

	var walk func(v any)
	walk = func(v any) {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return
		}
		if x, ok := arr[0].(float64); ok {
			if len(arr) < 2 {
				return
			}
			y, ok := arr[1].(float64)
			if !ok {
				return
			}
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
			found = true
			return
		}
		for _, child := range arr {
			walk(child)
		}
	}
	walk(coords)

	if !found {
		return 0, errNoCoordinates
	}
	return (maxX - minX) * (maxY - minY), nil
}
