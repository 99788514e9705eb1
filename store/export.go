// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const (
	streetMinRank = 26
	streetMaxRank = 27
)

// Street is a named road.
type Street struct {
	PlaceID     int64  `json:"place_id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
}

// Streets returns the named roads ordered by id.
func (r *Repository) Streets(ctx context.Context) ([]Street, error) {
	rows, err := sq.Select("place_id", "name", "country_code").
		From("placex").
		Where("rank_address BETWEEN ? AND ?", streetMinRank, streetMaxRank).
		Where("name IS NOT NULL").
		OrderBy("place_id").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streets []Street

	for rows.Next() {
		var (
			s       Street
			country sql.NullString
		)

		if err := rows.Scan(&s.PlaceID, &s.Name, &country); err != nil {
			return nil, err
		}

		s.CountryCode = country.String
		streets = append(streets, s)
	}

	return streets, rows.Err()
}

// MostFrequentPostcode returns the postcode used most by the children of a
// place. Ties go to the postcode seen first, by place id.
func (r *Repository) MostFrequentPostcode(ctx context.Context, parentID int64) (string, bool, error) {
	var postcode string

	err := sq.Select("postcode").
		From("placex").
		Where(sq.Eq{"parent_place_id": parentID}).
		Where("postcode IS NOT NULL AND postcode <> ''").
		GroupBy("postcode").
		OrderBy("count(*) DESC", "min(place_id)").
		Limit(1).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&postcode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return postcode, true, nil
}

// Stats counts the rows of the main tables.
type Stats struct {
	Places         int `json:"places"`
	SearchNames    int `json:"search_names"`
	Postcodes      int `json:"postcodes"`
	Interpolations int `json:"interpolations"`
	Words          int `json:"words"`
}

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	counts := []struct {
		table string
		dst   *int
	}{
		{"placex", &s.Places},
		{"search_name", &s.SearchNames},
		{"location_postcode", &s.Postcodes},
		{"location_property_osmline", &s.Interpolations},
		{"word", &s.Words},
	}

	for _, c := range counts {
		query := fmt.Sprintf("SELECT count(*) FROM %s", c.table)
		if err := r.db.QueryRowContext(ctx, query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	return s, nil
}
