package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/njoyaf/mboa-location/internal/types"
)

var _ Store = (*PostgresStore)(nil)

// DB is the slice of pgxpool.Pool the store needs. Narrowed so tests can
// substitute a pgxmock pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the durable home of a profile's location preference. It is
// best-effort by contract: callers must degrade to re-resolving when it is
// unavailable rather than failing the request.
type Store interface {
	// Read returns the stored city name, or types.ErrNoPreference if the
	// profile has never stored one.
	Read(ctx context.Context, profileID uuid.UUID) (string, error)

	// Write stores the city name for the profile, overwriting any prior
	// value. Last writer wins.
	Write(ctx context.Context, profileID uuid.UUID, city string) error

	// Clear removes the stored preference. Clearing an absent preference
	// is not an error.
	Clear(ctx context.Context, profileID uuid.UUID) error
}

type PostgresStore struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresStore(pgpool DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		logger: logger,
		pgpool: pgpool,
	}
}

func (s *PostgresStore) Read(ctx context.Context, profileID uuid.UUID) (string, error) {
	query := `
        SELECT city
        FROM location_preferences
        WHERE profile_id = $1
    `
	var city string
	if err := s.pgpool.QueryRow(ctx, query, profileID).Scan(&city); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrNoPreference
		}
		return "", fmt.Errorf("%w: reading preference: %w", types.ErrStorageUnavailable, err)
	}
	return city, nil
}

func (s *PostgresStore) Write(ctx context.Context, profileID uuid.UUID, city string) error {
	query := `
        INSERT INTO location_preferences (profile_id, city, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (profile_id)
        DO UPDATE SET city = EXCLUDED.city, updated_at = now()
    `
	if _, err := s.pgpool.Exec(ctx, query, profileID, city); err != nil {
		return fmt.Errorf("%w: writing preference: %w", types.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, profileID uuid.UUID) error {
	query := `
        DELETE FROM location_preferences
        WHERE profile_id = $1
    `
	if _, err := s.pgpool.Exec(ctx, query, profileID); err != nil {
		return fmt.Errorf("%w: clearing preference: %w", types.ErrStorageUnavailable, err)
	}
	return nil
}
