// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/spatial"
)

// Place is a row of the place table. Places with name terms are searchable
// by name.
type Place struct {
	PlaceID       int64         `json:"place_id"`
	ParentPlaceID int64         `json:"parent_place_id,omitempty"`
	LinkedPlaceID int64         `json:"linked_place_id,omitempty"`
	Class         string        `json:"class"`
	Type          string        `json:"type"`
	Name          string        `json:"name,omitempty"`
	HouseNumber   string        `json:"housenumber,omitempty"`
	Postcode      string        `json:"postcode,omitempty"`
	CountryCode   string        `json:"country_code,omitempty"`
	SearchRank    int           `json:"rank_search"`
	AddressRank   int           `json:"rank_address"`
	Importance    float64       `json:"importance,omitempty"`
	Geometry      string        `json:"geometry,omitempty"` // WKT, the centroid when empty
	Centroid      spatial.Point `json:"centroid"`
	NameTerms     []int64       `json:"name_terms,omitempty"`
	AddressTerms  []int64       `json:"address_terms,omitempty"`
}

// Postcode is a postcode area, represented by its centre.
type Postcode struct {
	PlaceID       int64         `json:"place_id"`
	ParentPlaceID int64         `json:"parent_place_id,omitempty"`
	Postcode      string        `json:"postcode"`
	CountryCode   string        `json:"country_code,omitempty"`
	Point         spatial.Point `json:"point"`
}

// Interpolation is a range of house numbers along a road.
type Interpolation struct {
	PlaceID       int64         `json:"place_id"`
	ParentPlaceID int64         `json:"parent_place_id"`
	StartNumber   int           `json:"startnumber"`
	EndNumber     int           `json:"endnumber"`
	Parity        search.Parity `json:"interpolationtype"`
	Line          string        `json:"linegeo,omitempty"` // WKT
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}

	return &id
}

// listLiteral renders ids as a DuckDB list, to be cast from VARCHAR.
func listLiteral(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// bulkInsert runs query once per row inside a transaction.
func (r *Repository) bulkInsert(ctx context.Context, query string, n int, row func(i int) ([]any, error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return rollback(tx, err)
	}
	defer stmt.Close()

	for i := range n {
		args, err := row(i)
		if err == nil {
			_, err = stmt.ExecContext(ctx, args...)
		}

		if err != nil {
			return rollback(tx, err)
		}
	}

	return tx.Commit()
}

// SavePlaces inserts places, and the search entries of the named ones.
func (r *Repository) SavePlaces(ctx context.Context, places []Place) error {
	cells := make([]int64, len(places))

	for i, p := range places {
		if err := p.Centroid.Validate(); err != nil {
			return fmt.Errorf("place %d: %w", p.PlaceID, err)
		}

		cell, err := spatial.Cell(p.Centroid)
		if err != nil {
			return fmt.Errorf("place %d: %w", p.PlaceID, err)
		}

		cells[i] = cell
	}

	err := r.bulkInsert(ctx, `
		INSERT INTO placex(
			place_id,
			parent_place_id,
			linked_place_id,
			class,
			type,
			name,
			housenumber,
			postcode,
			country_code,
			rank_search,
			rank_address,
			importance,
			geometry,
			centroid,
			h3_cell
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE(ST_GeomFromText(?), ST_Point(?, ?)), ST_Point(?, ?), ?)
	`, len(places), func(i int) ([]any, error) {
		p := places[i]

		return []any{
			p.PlaceID,
			nullID(p.ParentPlaceID),
			nullID(p.LinkedPlaceID),
			p.Class,
			p.Type,
			nullString(p.Name),
			nullString(p.HouseNumber),
			nullString(p.Postcode),
			nullString(strings.ToLower(p.CountryCode)),
			p.SearchRank,
			p.AddressRank,
			p.Importance,
			nullString(p.Geometry),
			p.Centroid.Lng,
			p.Centroid.Lat,
			p.Centroid.Lng,
			p.Centroid.Lat,
			cells[i],
		}, nil
	})
	if err != nil {
		return fmt.Errorf("saving places: %w", err)
	}

	var (
		named      []Place
		namedCells []int64
	)

	for i, p := range places {
		if len(p.NameTerms) > 0 {
			named = append(named, p)
			namedCells = append(namedCells, cells[i])
		}
	}

	err = r.bulkInsert(ctx, `
		INSERT INTO search_name(
			place_id,
			importance,
			search_rank,
			address_rank,
			name_vector,
			nameaddress_vector,
			country_code,
			centroid,
			h3_cell
		)
		VALUES (?, ?, ?, ?, CAST(? AS BIGINT[]), CAST(? AS BIGINT[]), ?, ST_Point(?, ?), ?)
	`, len(named), func(i int) ([]any, error) {
		p := named[i]

		return []any{
			p.PlaceID,
			p.Importance,
			p.SearchRank,
			p.AddressRank,
			listLiteral(p.NameTerms),
			listLiteral(p.AddressTerms),
			nullString(strings.ToLower(p.CountryCode)),
			p.Centroid.Lng,
			p.Centroid.Lat,
			namedCells[i],
		}, nil
	})
	if err != nil {
		return fmt.Errorf("saving search names: %w", err)
	}

	return nil
}

// SavePostcodes inserts postcode areas.
func (r *Repository) SavePostcodes(ctx context.Context, postcodes []Postcode) error {
	return r.bulkInsert(ctx, `
		INSERT INTO location_postcode(place_id, parent_place_id, postcode, country_code, geometry)
		VALUES (?, ?, ?, ?, ST_Point(?, ?))
	`, len(postcodes), func(i int) ([]any, error) {
		p := postcodes[i]
		if err := p.Point.Validate(); err != nil {
			return nil, fmt.Errorf("postcode %d: %w", p.PlaceID, err)
		}

		return []any{
			p.PlaceID,
			nullID(p.ParentPlaceID),
			p.Postcode,
			nullString(strings.ToLower(p.CountryCode)),
			p.Point.Lng,
			p.Point.Lat,
		}, nil
	})
}

// SaveInterpolations inserts interpolation lines into the table holding the
// lines of the given source.
func (r *Repository) SaveInterpolations(ctx context.Context, table search.Table, lines []Interpolation) error {
	name, ok := interpolationTables[table]
	if !ok {
		return fmt.Errorf("no interpolation data for %s", table)
	}

	return r.bulkInsert(ctx, fmt.Sprintf(`
		INSERT INTO %s(place_id, parent_place_id, startnumber, endnumber, interpolationtype, linegeo)
		VALUES (?, ?, ?, ?, ?, ST_GeomFromText(?))
	`, name), len(lines), func(i int) ([]any, error) {
		l := lines[i]
		if l.StartNumber > l.EndNumber {
			return nil, fmt.Errorf("interpolation %d: start %d after end %d", l.PlaceID, l.StartNumber, l.EndNumber)
		}

		return []any{
			l.PlaceID,
			l.ParentPlaceID,
			l.StartNumber,
			l.EndNumber,
			string(l.Parity),
			nullString(l.Line),
		}, nil
	})
}
