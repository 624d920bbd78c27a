package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a geographic coordinate in WGS 84, longitude first.
//
// The order is the GeoJSON convention and the one the spatial index is
// built on. Keeping the two axes as named fields (instead of a bare
// []float64) means a [lat, lon] swap cannot be expressed in Go code at
// all — it can only arrive over the wire, where UnmarshalJSON rejects
// out-of-range values.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Origin is the deployed fallback for a nearby query issued without
// coordinates: the equator / prime-meridian intersection.
var Origin = Point{Longitude: 0, Latitude: 0}

// Validate checks that both axes are finite and inside the WGS 84
// value space. NaN needs an explicit check: every range comparison on
// it is false, yet ST_MakePoint would accept it and fail server-side.
func (p Point) Validate() error {
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("longitude must be a finite number, got %v", p.Longitude)
	}
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return fmt.Errorf("latitude must be a finite number, got %v", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	return nil
}

// pointJSON is the wire form: a GeoJSON-style point object.
// "type" is accepted and emitted for compatibility with clients that
// store raw GeoJSON, but only "coordinates" carries information.
type pointJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		Type:        "Point",
		Coordinates: []float64{p.Longitude, p.Latitude},
	})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if len(raw.Coordinates) != 2 {
		return fmt.Errorf("point coordinates must be [longitude, latitude], got %d elements", len(raw.Coordinates))
	}
	parsed := Point{Longitude: raw.Coordinates[0], Latitude: raw.Coordinates[1]}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*p = parsed
	return nil
}
