package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider geocodes addresses with the Google Maps Geocoding API.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider wraps an already configured Google Maps client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode returns the location of the first Google result for address.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}

	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	results, err := gp.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return nil, ErrNoResult
		}
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoResult
	}

	loc := results[0].Geometry.Location
	coords := &models.Coordinate{Latitude: loc.Lat, Longitude: loc.Lng}
	if err = coords.Validate(); err != nil {
		return nil, ErrInvalidCoords
	}

	return coords, nil
}
