package models

import (
	"fmt"
	"math"
)

// Coordinate represents a geographical point in decimal degrees (WGS 84).
type Coordinate struct {
	Latitude  float64 `json:"latitude"`  // Latitude of the point, [-90, 90].
	Longitude float64 `json:"longitude"` // Longitude of the point, [-180, 180].
}

// Validate reports whether the coordinate is finite and inside the valid ranges.
// The returned error wraps ErrInvalidArgument.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v is out of range [-90, 90]", ErrInvalidArgument, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v is out of range [-180, 180]", ErrInvalidArgument, c.Longitude)
	}

	return nil
}
