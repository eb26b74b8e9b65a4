package store

import (
	"context"
	"fmt"

	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

// QueryProperties returns listings matching f, ordered by f's sort. Rows
// without an id or image are skipped.
func (s *Store) QueryProperties(ctx context.Context, f listing.Filters) ([]listing.Property, error) {
	q := listing.Build(f, dialect)
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, price, property_type, bedrooms, bathrooms,
		       city, area_sqm, image_url, amenities
		FROM properties
		WHERE `+q.Where+`
		ORDER BY `+q.OrderBy,
		q.Args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var out []listing.Property
	for rows.Next() {
		var p listing.Property
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Price, &p.PropertyType, &p.Bedrooms, &p.Bathrooms,
			&p.City, &p.AreaSqm, &p.ImageURL, &p.Amenities,
		); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		if !p.Usable() {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return out, nil
}

// SeedProperties inserts or replaces listings by id.
func (s *Store) SeedProperties(ctx context.Context, props []listing.Property) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range props {
		amenities := listing.NormalizeAmenities(p.Amenities)
		if amenities == nil {
			amenities = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO properties (id, title, description, price, property_type, bedrooms, bathrooms,
			                        city, area_sqm, image_url, amenities)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				property_type = EXCLUDED.property_type,
				bedrooms = EXCLUDED.bedrooms,
				bathrooms = EXCLUDED.bathrooms,
				city = EXCLUDED.city,
				area_sqm = EXCLUDED.area_sqm,
				image_url = EXCLUDED.image_url,
				amenities = EXCLUDED.amenities`,
			p.ID, p.Title, p.Description, p.Price, p.PropertyType, p.Bedrooms, p.Bathrooms,
			p.City, p.AreaSqm, p.ImageURL, amenities,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert property %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(props), nil
}
