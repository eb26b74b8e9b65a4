// Package store is the PostgreSQL backend: property listings, session
// snapshots and calendar events.
package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	price         DOUBLE PRECISION NOT NULL,
	property_type TEXT NOT NULL DEFAULT '',
	bedrooms      INTEGER,
	bathrooms     INTEGER,
	city          TEXT NOT NULL DEFAULT '',
	area_sqm      DOUBLE PRECISION,
	image_url     TEXT NOT NULL DEFAULT '',
	amenities     TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_properties_city ON properties (lower(city));

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	turn_id    BIGINT NOT NULL,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS calendar_events (
	id             TEXT PRIMARY KEY,
	summary        TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	property_id    TEXT NOT NULL DEFAULT '',
	attendee_name  TEXT NOT NULL DEFAULT '',
	attendee_phone TEXT NOT NULL DEFAULT '',
	starts_at      TIMESTAMPTZ NOT NULL,
	ends_at        TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calendar_events_range ON calendar_events (starts_at, ends_at);
`

// dialect renders filter queries for PostgreSQL. Amenities are stored
// lower-cased.
var dialect = listing.Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	HasAmenity:  func(ph string) string { return ph + " = ANY(amenities)" },
}
