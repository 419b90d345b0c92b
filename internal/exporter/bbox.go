package exporter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is a lon/lat bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// ParseBBox parses "minX,minY,maxX,maxY".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("%w: bbox must have 4 comma separated values, got %d", ErrInvalidRequest, len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: bbox value %q: %v", ErrInvalidRequest, p, err)
		}
		v[i] = f
	}

	b := BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if err := b.validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

func (b BBox) validate() error {
	for _, v := range [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bbox values must be finite numbers", ErrInvalidRequest)
		}
	}
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return fmt.Errorf("%w: bbox min corner must be below and left of max corner", ErrInvalidRequest)
	}
	if b.MinX < -180 || b.MaxX > 180 || b.MinY < -90 || b.MaxY > 90 {
		return fmt.Errorf("%w: bbox outside lon/lat range", ErrInvalidRequest)
	}
	return nil
}

// Corners returns the closed ring, counter-clockwise from the min corner.
func (b BBox) Corners() [][2]float64 {
	return [][2]float64{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}
}

// Polygon returns the box as a GeoJSON Polygon.
func (b BBox) Polygon() (json.RawMessage, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: [][][2]float64{b.Corners()},
	}
	data, err := json.Marshal(geom)
	if err != nil {
		return nil, fmt.Errorf("%w: bbox geometry: %v", ErrInvalidRequest, err)
	}
	return data, nil
}
