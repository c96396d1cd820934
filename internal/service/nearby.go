package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
)

// NearbyService answers proximity lookups against a geo-indexed specialist store.
type NearbyService struct {
	log          *slog.Logger
	store        repository.SpecialistFinder
	geocoder     geocoding.Provider // optional, nil disables address lookups
	metrics      *metrics.Metrics
	maxLimit     int
	queryTimeout time.Duration
}

// NewNearbyService creates a NearbyService. geocoder may be nil.
func NewNearbyService(
	log *slog.Logger,
	store repository.SpecialistFinder,
	geocoder geocoding.Provider,
	metrics *metrics.Metrics,
	maxLimit int,
	queryTimeout time.Duration,
) *NearbyService {
	return &NearbyService{
		log:          log,
		store:        store,
		geocoder:     geocoder,
		metrics:      metrics,
		maxLimit:     maxLimit,
		queryTimeout: queryTimeout,
	}
}

// FindNearby returns specialists within the query radius of its origin, nearest first.
//
// An invalid origin, a negative radius or a non-positive limit yields an error wrapping
// models.ErrInvalidArgument. A store that cannot be reached yields an error wrapping
// models.ErrStoreUnavailable. A lookup that matches nothing returns an empty, non-nil slice.
func (ns *NearbyService) FindNearby(ctx context.Context, query models.NearbyQuery) ([]models.ProximityResult, error) {
	if err := query.Origin.Validate(); err != nil {
		ns.metrics.NearbyQueries.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if query.MaxDistanceMeters != nil && *query.MaxDistanceMeters < 0 {
		ns.metrics.NearbyQueries.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: maxDistanceMeters must not be negative", models.ErrInvalidArgument)
	}
	if query.Limit != nil && *query.Limit <= 0 {
		ns.metrics.NearbyQueries.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: limit must be positive", models.ErrInvalidArgument)
	}

	radius, limit := query.Normalize(ns.maxLimit)

	storeCtx := ctx
	if ns.queryTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, ns.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	specialists, err := ns.store.FindWithin(storeCtx, query.Origin, radius, limit)
	ns.metrics.NearbySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		ns.metrics.NearbyQueries.WithLabelValues("error").Inc()
		ns.log.ErrorContext(ctx, "Failed to query specialists", "radius", radius, "limit", limit, "error", err)
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, err
		}
		if storeCtx.Err() != nil {
			return nil, fmt.Errorf("%w: store query did not finish: %w", models.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("failed to find nearby specialists: %w", err)
	}

	maxKm := float64(radius) / 1000
	results := make([]models.ProximityResult, 0, len(specialists))
	for _, sp := range specialists {
		dist := geo.DistanceKm(query.Origin, sp.Location)
		if dist > maxKm {
			ns.log.DebugContext(ctx, "Dropping specialist outside radius", "id", sp.ID, "distance_km", dist)
			continue
		}
		results = append(results, models.ProximityResult{Specialist: sp, DistanceKm: dist})
	}

	slices.SortStableFunc(results, func(a, b models.ProximityResult) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})
	if len(results) > limit {
		results = results[:limit]
	}

	ns.metrics.NearbyQueries.WithLabelValues("success").Inc()
	ns.metrics.NearbyResults.Observe(float64(len(results)))

	return results, nil
}

// FindNearbyAddress resolves address through the geocoding provider and runs FindNearby from there.
// An address the provider cannot resolve is a caller error; a failing provider is retriable.
func (ns *NearbyService) FindNearbyAddress(
	ctx context.Context,
	address string,
	query models.NearbyQuery,
) ([]models.ProximityResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: address must not be empty", models.ErrInvalidArgument)
	}
	if ns.geocoder == nil {
		return nil, fmt.Errorf("%w: address lookup is disabled, send a coordinate", models.ErrInvalidArgument)
	}

	coords, err := ns.geocoder.Geocode(ctx, address)
	if err != nil {
		ns.log.WarnContext(ctx, "Failed to resolve address", "address", address, "error", err)
		switch {
		case errors.Is(err, geocoding.ErrNoResult),
			errors.Is(err, geocoding.ErrEmptyAddress),
			errors.Is(err, geocoding.ErrInvalidCoords):
			return nil, fmt.Errorf("%w: address %q could not be resolved", models.ErrInvalidArgument, address)
		default:
			return nil, fmt.Errorf("%w: %w", models.ErrGeocoderUnavailable, err)
		}
	}

	query.Origin = *coords
	return ns.FindNearby(ctx, query)
}
