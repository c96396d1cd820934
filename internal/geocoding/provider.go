package geocoding

import (
	"context"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Provider resolves a free-text address into coordinates.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinate, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	// ErrNoResult is returned by every provider when the address matches nothing.
	ErrNoResult = errors.New("geocoding provider returned no result")
	// ErrEmptyAddress is returned before any request is made for a blank address.
	ErrEmptyAddress = errors.New("geocoding provider got empty address")
	// ErrInvalidCoords is returned when the provider answers with unusable coordinates.
	ErrInvalidCoords = errors.New("geocoding provider returned invalid coordinates")
)
