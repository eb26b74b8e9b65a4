package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

func (s *Store) QueryProperties(ctx context.Context, f listing.Filters) ([]listing.Property, error) {
	q := listing.Build(f, dialect)
	rows, err := s.db.QueryContext(ctx, `
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
		var (
			p         listing.Property
			amenities string
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Price, &p.PropertyType, &p.Bedrooms, &p.Bathrooms,
			&p.City, &p.AreaSqm, &p.ImageURL, &amenities,
		); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		if err := json.Unmarshal([]byte(amenities), &p.Amenities); err != nil {
			return nil, fmt.Errorf("decode amenities of %s: %w", p.ID, err)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range props {
		amenities := listing.NormalizeAmenities(p.Amenities)
		if amenities == nil {
			amenities = []string{}
		}
		raw, err := json.Marshal(amenities)
		if err != nil {
			return 0, fmt.Errorf("encode amenities of %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO properties (id, title, description, price, property_type, bedrooms, bathrooms,
			                                   city, area_sqm, image_url, amenities)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Description, p.Price, p.PropertyType, p.Bedrooms, p.Bathrooms,
			p.City, p.AreaSqm, p.ImageURL, string(raw),
		)
		if err != nil {
			return 0, fmt.Errorf("upsert property %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(props), nil
}
