package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the subset of *pgxpool.Pool used by the repository.
// pgxmock pools satisfy it as well.
type Database interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// SpecialistFinder is a geo-indexed store able to answer proximity queries.
// Results are ordered by proximity and bounded by limit.
type SpecialistFinder interface {
	FindWithin(ctx context.Context, origin models.Coordinate, radiusMeters, limit int) ([]models.Specialist, error)
}

// Interface is the full PostgreSQL repository used by the nearby lookup and the locator.
type Interface interface {
	SpecialistFinder
	FetchUnlocatedSpecialists(ctx context.Context, limit, maxAttempts int) ([]models.PendingSpecialist, error)
	UpdateSpecialistLocation(ctx context.Context, id string, coords models.Coordinate) error
	IncrementFailureCount(ctx context.Context, id string, errMsg string) error
}

type Repository struct {
	db  Database
	log *slog.Logger
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// NewDatabase opens a connection pool to PostgreSQL and verifies it with a ping.
func NewDatabase(ctx context.Context, host, port, user, password, name string) (*pgxpool.Pool, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     name,
		RawQuery: "sslmode=disable",
	}

	pool, err := pgxpool.New(ctx, dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
