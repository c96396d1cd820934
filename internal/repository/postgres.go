package repository

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/hermes/internal/models"
)

const findWithinQuery = `
		SELECT
			id, name, specialization, address,
			ST_Y(location::geometry), ST_X(location::geometry),
			rating, contact, availability
		FROM public.specialists
		WHERE
			location IS NOT NULL
			AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4;
	`

// FindWithin returns specialists located within radiusMeters of origin, nearest first.
// The GiST index on the location column bounds and orders the scan.
//
// Parameters:
// - ctx: The context for the operation, allowing for cancellation and timeout.
// - origin: The point to search around.
// - radiusMeters: The search radius in meters.
// - limit: The maximum number of specialists to retrieve.
//
// Returns:
// - A slice of models.Specialist ordered by proximity.
// - An error wrapping models.ErrStoreUnavailable if the query cannot be executed,
// or a plain error if a row cannot be read.
func (r *Repository) FindWithin(
	ctx context.Context,
	origin models.Coordinate,
	radiusMeters, limit int,
) ([]models.Specialist, error) {
	rows, err := r.db.Query(ctx, findWithinQuery, origin.Longitude, origin.Latitude, float64(radiusMeters), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query specialists within radius: %w", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	specialists := make([]models.Specialist, 0, limit)
	for rows.Next() {
		var sp models.Specialist
		if errScan := rows.Scan(
			&sp.ID,
			&sp.Name,
			&sp.Specialization,
			&sp.Address,
			&sp.Location.Latitude,
			&sp.Location.Longitude,
			&sp.Rating,
			&sp.Contact,
			&sp.Availability,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan specialist: %w", errScan)
		}
		specialists = append(specialists, sp)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read row: %w", models.ErrStoreUnavailable, err)
	}

	r.log.DebugContext(ctx, "Specialists found within radius",
		"count", len(specialists), "radius_m", radiusMeters, "limit", limit)

	return specialists, nil
}

// FetchUnlocatedSpecialists retrieves specialists that have an address but no location yet
// and fewer than maxAttempts failed geocoding attempts, oldest first.
func (r *Repository) FetchUnlocatedSpecialists(
	ctx context.Context,
	limit, maxAttempts int,
) ([]models.PendingSpecialist, error) {
	var pending []models.PendingSpecialist
	query := `
		SELECT id, address
		FROM public.specialists
		WHERE
			location IS NULL
			AND geocoding_attempts < $1
			AND address <> ''
		ORDER BY created_at ASC
		LIMIT $2;
	`

	rows, err := r.db.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query specialists without location: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sp models.PendingSpecialist
		if errScan := rows.Scan(&sp.ID, &sp.Address); errScan != nil {
			return nil, fmt.Errorf("failed to scan specialist without location: %w", errScan)
		}
		r.log.DebugContext(ctx, "A specialist without coordinates has been received.",
			"ID", sp.ID, "Address", sp.Address)
		pending = append(pending, sp)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return pending, nil
}

// UpdateSpecialistLocation stores the coordinates of a specialist and clears its geocoding error.
func (r *Repository) UpdateSpecialistLocation(ctx context.Context, id string, coords models.Coordinate) error {
	query := `
		UPDATE public.specialists
		SET
			location = ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			geocoding_error = NULL
		WHERE
			id = $3;
	`

	_, err := r.db.Exec(ctx, query, coords.Longitude, coords.Latitude, id)
	if err != nil {
		return fmt.Errorf("failed to update specialist location: %w", err)
	}

	return nil
}

// IncrementFailureCount increments the geocoding attempt count for a specialist
// and records the last error message.
func (r *Repository) IncrementFailureCount(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE public.specialists
		SET
			geocoding_attempts = geocoding_attempts + 1,
			geocoding_error = $1
		WHERE id = $2;
	`

	_, err := r.db.Exec(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update geocoding error and number of attempts: %w", err)
	}

	return nil
}
