package models

// Specialist is a discoverable mental-health professional with a known location.
type Specialist struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Specialization string     `json:"specialization"`
	Address        string     `json:"address"`
	Location       Coordinate `json:"location"`
	Rating         float64    `json:"rating"`
	Contact        string     `json:"contact"`
	Availability   string     `json:"availability"`
}

// PendingSpecialist is a specialist row that still has no coordinates and waits for geocoding.
type PendingSpecialist struct {
	ID      string // ID is the unique identifier of the specialist.
	Address string // Address is the free-text address to be geocoded.
}

// ProximityResult is a specialist annotated with its distance from the query origin.
// It is computed per request and never stored.
type ProximityResult struct {
	Specialist
	DistanceKm float64 `json:"distanceKm"`
}

// Defaults applied by NearbyQuery.Normalize.
const (
	DefaultNearbyRadiusMeters = 50_000
	DefaultNearbyLimit        = 10
)

// NearbyQuery describes a proximity lookup. Nil optional fields take their defaults.
type NearbyQuery struct {
	Origin            Coordinate
	MaxDistanceMeters *int
	Limit             *int
}

// Normalize returns the effective radius and limit for the query.
// A zero radius is valid and matches only entities located exactly at the origin.
func (q NearbyQuery) Normalize(maxLimit int) (int, int) {
	radius := DefaultNearbyRadiusMeters
	if q.MaxDistanceMeters != nil {
		radius = *q.MaxDistanceMeters
	}

	limit := DefaultNearbyLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	return radius, limit
}
