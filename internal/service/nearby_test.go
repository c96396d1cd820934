package service_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/service"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var delhi = models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}

func newNearbyService(t *testing.T, geocoder geocoding.Provider) (*service.NearbyService, *mocks.Interface) {
	t.Helper()
	store := mocks.NewInterface(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := service.NewNearbyService(logger, store, geocoder, metrics.NewMetrics(prometheus.NewRegistry()), 100, time.Second)

	return svc, store
}

func intPtr(v int) *int { return &v }

func TestFindNearby(t *testing.T) {
	t.Parallel()

	near := models.Specialist{ID: "near", Name: "Dr. Near", Location: models.Coordinate{Latitude: 28.62, Longitude: 77.21}}
	mid := models.Specialist{ID: "mid", Name: "Dr. Mid", Location: models.Coordinate{Latitude: 28.70, Longitude: 77.10}}
	far := models.Specialist{ID: "far", Name: "Dr. Far", Location: models.Coordinate{Latitude: 28.90, Longitude: 77.40}}
	mumbai := models.Specialist{ID: "mumbai", Name: "Dr. Mumbai", Location: models.Coordinate{Latitude: 19.0760, Longitude: 72.8777}}

	t.Run("error - invalid origin", func(t *testing.T) {
		t.Parallel()
		svc, _ := newNearbyService(t, nil)

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: models.Coordinate{Latitude: 91}})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
		assert.Nil(t, res)
	})

	t.Run("error - negative radius", func(t *testing.T) {
		t.Parallel()
		svc, _ := newNearbyService(t, nil)

		_, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, MaxDistanceMeters: intPtr(-1)})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("error - non-positive limit", func(t *testing.T) {
		t.Parallel()
		svc, _ := newNearbyService(t, nil)

		_, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, Limit: intPtr(0)})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("error - store unavailable", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		storeErr := errors.Join(models.ErrStoreUnavailable, assert.AnError)
		store.On("FindWithin", mock.Anything, delhi, models.DefaultNearbyRadiusMeters, models.DefaultNearbyLimit).
			Return(nil, storeErr).Once()

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi})

		require.ErrorIs(t, err, models.ErrStoreUnavailable)
		assert.Nil(t, res)
	})

	t.Run("error - store deadline exceeded", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, models.DefaultNearbyRadiusMeters, models.DefaultNearbyLimit).
			Return(func(ctx context.Context, _ models.Coordinate, _, _ int) ([]models.Specialist, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}).Once()

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		_, err := svc.FindNearby(ctx, models.NearbyQuery{Origin: delhi})

		require.ErrorIs(t, err, models.ErrStoreUnavailable)
	})

	t.Run("success - defaults and ordering", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, 50_000, 10).
			Return([]models.Specialist{mid, far, near}, nil).Once()

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi})

		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, []string{"near", "mid", "far"}, []string{res[0].ID, res[1].ID, res[2].ID})
		for i, r := range res {
			assert.InDelta(t, geo.DistanceKm(delhi, r.Location), r.DistanceKm, 1e-9)
			assert.LessOrEqual(t, r.DistanceKm, 50.0)
			if i > 0 {
				assert.LessOrEqual(t, res[i-1].DistanceKm, r.DistanceKm)
			}
		}
	})

	t.Run("success - results outside radius are dropped", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, 20_000, 10).
			Return([]models.Specialist{near, mid, far, mumbai}, nil).Once()

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, MaxDistanceMeters: intPtr(20_000)})

		require.NoError(t, err)
		for _, r := range res {
			assert.LessOrEqual(t, r.DistanceKm, 20.0)
			assert.NotEqual(t, "mumbai", r.ID)
		}
	})

	t.Run("success - limit is honored", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, 50_000, 2).
			Return([]models.Specialist{far, near, mid}, nil).Once()

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, Limit: intPtr(2)})

		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "near", res[0].ID)
		assert.Equal(t, "mid", res[1].ID)
	})

	t.Run("success - limit is clamped", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, 50_000, 100).Return([]models.Specialist{}, nil).Once()

		_, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, Limit: intPtr(1000)})

		require.NoError(t, err)
	})

	t.Run("success - zero radius returns empty", func(t *testing.T) {
		t.Parallel()
		svc, store := newNearbyService(t, nil)
		store.On("FindWithin", mock.Anything, delhi, 0, 10).Return(nil, nil).Once()

		res, err := svc.FindNearby(t.Context(), models.NearbyQuery{Origin: delhi, MaxDistanceMeters: intPtr(0)})

		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	})
}

func TestFindNearbyAddress(t *testing.T) {
	t.Parallel()

	t.Run("error - geocoding disabled", func(t *testing.T) {
		t.Parallel()
		svc, _ := newNearbyService(t, nil)

		_, err := svc.FindNearbyAddress(t.Context(), "Connaught Place", models.NearbyQuery{})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("error - blank address", func(t *testing.T) {
		t.Parallel()
		svc, _ := newNearbyService(t, mocks.NewProvider(t))

		_, err := svc.FindNearbyAddress(t.Context(), "  ", models.NearbyQuery{})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("error - address not found", func(t *testing.T) {
		t.Parallel()
		provider := mocks.NewProvider(t)
		svc, _ := newNearbyService(t, provider)
		provider.On("Geocode", mock.Anything, "nowhere").Return(nil, geocoding.ErrNoResult).Once()

		_, err := svc.FindNearbyAddress(t.Context(), "nowhere", models.NearbyQuery{})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("error - address resolves to unusable coordinates", func(t *testing.T) {
		t.Parallel()
		provider := mocks.NewProvider(t)
		svc, _ := newNearbyService(t, provider)
		provider.On("Geocode", mock.Anything, "Null Island").
			Return(nil, fmt.Errorf("%w: lat=abc", geocoding.ErrInvalidCoords)).Once()

		_, err := svc.FindNearbyAddress(t.Context(), "Null Island", models.NearbyQuery{})

		require.ErrorIs(t, err, models.ErrInvalidArgument)
		assert.NotErrorIs(t, err, models.ErrGeocoderUnavailable)
	})

	t.Run("error - provider failure", func(t *testing.T) {
		t.Parallel()
		provider := mocks.NewProvider(t)
		svc, _ := newNearbyService(t, provider)
		provider.On("Geocode", mock.Anything, "Connaught Place").Return(nil, assert.AnError).Once()

		_, err := svc.FindNearbyAddress(t.Context(), "Connaught Place", models.NearbyQuery{})

		require.ErrorIs(t, err, models.ErrGeocoderUnavailable)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("success - address resolved to origin", func(t *testing.T) {
		t.Parallel()
		provider := mocks.NewProvider(t)
		svc, store := newNearbyService(t, provider)
		provider.On("Geocode", mock.Anything, "Rajpath, New Delhi").Return(&delhi, nil).Once()
		store.On("FindWithin", mock.Anything, delhi, 50_000, 10).
			Return([]models.Specialist{{ID: "here", Location: delhi}}, nil).Once()

		res, err := svc.FindNearbyAddress(t.Context(), "Rajpath, New Delhi", models.NearbyQuery{})

		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Zero(t, res[0].DistanceKm)
	})
}
