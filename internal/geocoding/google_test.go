package geocoding_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProvider_Geocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.ErrorIs(t, err, assert.AnError)
		mockClient.AssertExpectations(t)
	})

	t.Run("api reports zero results", func(t *testing.T) {
		address := "nowhere at all"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, errors.New("maps: ZERO_RESULTS - ")).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
		mockClient.AssertExpectations(t)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
		mockClient.AssertExpectations(t)
	})

	t.Run("empty address", func(t *testing.T) {
		coords, err := provider.Geocode(ctx, "   ")

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrEmptyAddress)
	})

	t.Run("successfull geocoding", func(t *testing.T) {
		address := "Rajpath, New Delhi"
		req := &maps.GeocodingRequest{Address: address}
		mockReponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 28.6139, Lng: 77.2090}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockReponse, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 28.6139, coords.Latitude, 0.0001)
		require.InEpsilon(t, 77.2090, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}
