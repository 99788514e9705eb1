// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jcodagnone/geosearch/search"
)

const (
	countrySearchRank = 4
	// postcodes further away than this do not qualify a named place
	postcodeRadius = 0.1
)

func (r *Repository) LargestCountry(ctx context.Context, c *search.Constraints, code string) (int64, bool, error) {
	b := sq.Select("place_id").
		From("placex").
		Where(sq.Eq{"country_code": code, "rank_search": countrySearchRank}).
		Where(insideViewboxSQL(c, "geometry")).
		Where(excludeSQL(c, "place_id")).
		OrderBy("ST_Area(geometry) DESC", "place_id").
		Limit(1)

	ids, err := r.queryIDs(ctx, b)
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}

	return ids[0], true, nil
}

// areaSQL restricts to the near point or, failing that, to the bounded
// viewbox.
func areaSQL(c *search.Constraints, nearColumn, boxColumn, cellColumn string) (sq.Sqlizer, error) {
	if c.HasNearPoint() {
		return withinSQL(c, nearColumn, cellColumn)
	}

	if c.IsViewboxBounded() {
		return sq.Expr(fmt.Sprintf("ST_Contains(?, %s)", boxColumn), boxSQL(*c.Viewbox())), nil
	}

	return nil, nil
}

func nearbyOrderSQL(c *search.Constraints, column string) sq.Sqlizer {
	if c.Viewbox() != nil {
		return viewboxCentreDistanceSQL(c, column)
	}

	if c.HasNearPoint() {
		return distanceSQL(c, column)
	}

	return nil
}

func (r *Repository) NearbyPlaces(ctx context.Context, c *search.Constraints, q search.NearbyQuery) ([]int64, error) {
	if q.UseClassTable {
		table, err := classTableName(q.Class, q.Type)
		if err != nil {
			return nil, err
		}

		area, err := areaSQL(c, "ct.centroid", "ct.centroid", "ct.h3_cell")
		if err != nil {
			return nil, err
		}

		b := sq.Select("ct.place_id").From(table + " ct")
		if countries := c.Countries(); len(countries) > 0 {
			b = b.Join("placex p ON p.place_id = ct.place_id").
				Where(sq.Eq{"p.country_code": countries})
		}

		b = orderBy(b.Where(area).Where(excludeSQL(c, "ct.place_id")), nearbyOrderSQL(c, "ct.centroid")).
			OrderBy("ct.place_id")

		return r.queryIDs(ctx, withLimit(b, q.Limit))
	}

	area, err := areaSQL(c, "geometry", "centroid", "")
	if err != nil {
		return nil, err
	}

	b := sq.Select("place_id").
		From("placex").
		Where(sq.Eq{"class": q.Class, "type": q.Type}).
		Where("linked_place_id IS NULL").
		Where(area).
		Where(countrySQL(c, "country_code", "")).
		Where(excludeSQL(c, "place_id"))
	b = orderBy(b, nearbyOrderSQL(c, "centroid")).OrderBy("place_id")

	return r.queryIDs(ctx, withLimit(b, q.Limit))
}

func (r *Repository) Postcodes(ctx context.Context, c *search.Constraints, q search.PostcodeQuery) ([]int64, error) {
	b := sq.Select("p.place_id").From("location_postcode p")

	if len(q.AddressTokens) > 0 {
		b = b.Join("search_name s ON s.place_id = p.parent_place_id").
			Where(sq.Expr("list_has_all(list_concat(s.nameaddress_vector, s.name_vector), ?)", idList(q.AddressTokens)))
	}

	b = b.Where(sq.Eq{"p.postcode": q.Postcode}).
		Where(countrySQL(c, "p.country_code", q.CountryCode)).
		Where(insideViewboxSQL(c, "p.geometry")).
		Where(excludeSQL(c, "p.place_id")).
		OrderBy("p.place_id")

	return r.queryIDs(ctx, withLimit(b, q.Limit))
}

// houseNumberPattern matches the house number between word boundaries.
func houseNumberPattern(number string) string {
	return `\b` + regexp.QuoteMeta(number) + `\b`
}

// houseNumberExistsSQL is true when a child of s carries the house number,
// or an interpolation line of s covers it.
func houseNumberExistsSQL(number string) sq.Sqlizer {
	children := sq.Expr(`EXISTS (
		SELECT 1 FROM placex h
		WHERE h.parent_place_id = s.place_id AND regexp_matches(h.housenumber, ?, 'i'))`,
		houseNumberPattern(number),
	)

	n, ok := search.ParseHouseNumber(number)
	if !ok {
		return children
	}

	return sq.Or{children, sq.Expr(`EXISTS (
		SELECT 1 FROM location_property_osmline o
		WHERE o.parent_place_id = s.place_id AND o.startnumber IS NOT NULL
			AND ? BETWEEN o.startnumber AND o.endnumber)`,
		n,
	)}
}

func rankFilterSQL(f *search.RankFilter) sq.Sqlizer {
	if f == nil {
		return nil
	}

	address := sq.Expr("s.address_rank BETWEEN ? AND ?", f.Min, f.Max)
	if !f.IncludeSearchRank {
		return address
	}

	return sq.Or{address, sq.Expr("s.search_rank BETWEEN ? AND ?", f.Min, f.Max)}
}

func importanceSQL(c *search.Constraints, streetImportance bool) sq.Sqlizer {
	base := "(CASE WHEN s.importance = 0 OR s.importance IS NULL THEN 0.75001 - s.search_rank / 40.0 ELSE s.importance END)"
	if streetImportance {
		base = "(3 - abs(26 - s.address_rank))"
	}

	return sq.Expr(base+" * ? DESC", viewboxImportanceSQL(c, "s.centroid"))
}

// namedPlacesQuery builds the lookup of the places whose names carry the
// tokens of q.
func namedPlacesQuery(c *search.Constraints, q search.NamedPlaceQuery) (sq.SelectBuilder, error) {
	b := sq.Select("s.place_id", "s.address_rank")

	terms := c.FullNameTerms()
	if len(terms) > 0 {
		b = b.Column(sq.Expr("len(list_intersect(?, s.nameaddress_vector)) AS exactmatch", idList(terms)))
	} else {
		b = b.Column("0 AS exactmatch")
	}

	b = b.From("search_name s")

	if len(q.NameTokens) > 0 {
		b = b.Where(sq.Expr("list_has_all(s.name_vector, ?)", idList(q.NameTokens)))
	}

	if len(q.AddressTokens) > 0 {
		if q.RareName {
			b = b.Where(sq.Expr("list_has_all(list_concat(s.nameaddress_vector, []::BIGINT[]), ?)", idList(q.AddressTokens)))
		} else {
			b = b.Where(sq.Expr("list_has_all(s.nameaddress_vector, ?)", idList(q.AddressTokens)))
		}
	}

	b = b.Where(countrySQL(c, "s.country_code", q.CountryCode)).
		Where(rankFilterSQL(q.Ranks))

	if q.HouseNumberOrder != "" {
		b = b.OrderByClause(sq.Expr("? DESC", houseNumberExistsSQL(q.HouseNumberOrder)))
	}

	switch {
	case c.HasNearPoint():
		within, err := withinSQL(c, "s.centroid", "s.h3_cell")
		if err != nil {
			return b, err
		}

		b = b.Where(within).OrderByClause(distanceSQL(c, "s.centroid"))
	case q.Postcode != "" && len(q.AddressTokens) == 0:
		b = b.Where(`EXISTS (
			SELECT 1 FROM location_postcode p
			WHERE p.postcode = ? AND ST_DWithin(s.centroid, p.geometry, ?))`,
			q.Postcode, postcodeRadius,
		)
	case q.Postcode != "":
		b = b.OrderByClause(`(
			SELECT min(ST_Distance(s.centroid, p.geometry)) FROM location_postcode p
			WHERE p.postcode = ?)`,
			q.Postcode,
		)
	}

	b = b.Where(insideViewboxSQL(c, "s.centroid")).
		Where(excludeSQL(c, "s.place_id")).
		OrderByClause(importanceSQL(c, q.StreetImportance))

	if len(terms) > 0 {
		b = b.OrderBy("exactmatch DESC")
	}

	return withLimit(b.OrderBy("s.place_id"), q.Limit), nil
}

func (r *Repository) NamedPlaces(
	ctx context.Context,
	c *search.Constraints,
	q search.NamedPlaceQuery,
) ([]search.NamedPlace, error) {
	b, err := namedPlacesQuery(c, q)
	if err != nil {
		return nil, err
	}

	rows, err := b.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []search.NamedPlace

	for rows.Next() {
		var p search.NamedPlace
		if err := rows.Scan(&p.PlaceID, &p.AddressRank, &p.ExactMatches); err != nil {
			return nil, err
		}

		places = append(places, p)
	}

	return places, rows.Err()
}

func (r *Repository) HouseNumbers(ctx context.Context, c *search.Constraints, q search.HouseNumberQuery) ([]int64, error) {
	var parents sq.Or
	if len(q.Roads) > 0 {
		parents = append(parents, sq.Eq{"parent_place_id": q.Roads})
	}

	if len(q.POIs) > 0 {
		parents = append(parents, sq.Eq{"place_id": q.POIs})
	}

	if len(parents) == 0 {
		return nil, nil
	}

	b := sq.Select("place_id").
		From("placex").
		Where("regexp_matches(housenumber, ?, 'i')", houseNumberPattern(q.HouseNumber)).
		Where(parents).
		Where(excludeSQL(c, "place_id")).
		OrderBy("place_id")

	return r.queryIDs(ctx, b)
}

var interpolationTables = map[search.Table]string{
	search.TableInterpolation: "location_property_osmline",
	search.TableCadastral:     "location_property_tiger",
}

func (r *Repository) Interpolations(
	ctx context.Context,
	c *search.Constraints,
	q search.InterpolationQuery,
) ([]int64, error) {
	table, ok := interpolationTables[q.Table]
	if !ok {
		return nil, fmt.Errorf("no interpolation data for %s", q.Table)
	}

	if len(q.Roads) == 0 {
		return nil, nil
	}

	b := sq.Select("place_id").
		Distinct().
		From(table).
		Where("startnumber IS NOT NULL").
		Where(sq.Eq{
			"parent_place_id":   q.Roads,
			"interpolationtype": []string{string(q.Parity), string(search.ParityAll)},
		}).
		Where("? BETWEEN startnumber AND endnumber", q.HouseNumber).
		Where(excludeSQL(c, "place_id")).
		OrderBy("place_id")

	return r.queryIDs(ctx, b)
}

func (r *Repository) FilterByClass(
	ctx context.Context,
	c *search.Constraints,
	ids []int64,
	class, typ string,
	limit int,
) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	b := sq.Select("place_id").
		From("placex").
		Where(sq.Eq{"place_id": ids, "class": class, "type": typ}).
		Where("linked_place_id IS NULL").
		Where(excludeSQL(c, "place_id")).
		OrderBy("rank_search", "place_id")

	return r.queryIDs(ctx, withLimit(b, limit))
}

func (r *Repository) MinSearchRank(ctx context.Context, ids []int64) (int, bool, error) {
	if len(ids) == 0 {
		return 0, false, nil
	}

	var rank sql.NullInt64

	err := sq.Select("min(rank_search)").
		From("placex").
		Where(sq.Eq{"place_id": ids}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&rank)
	if err != nil {
		return 0, false, err
	}

	return int(rank.Int64), rank.Valid, nil
}

func (r *Repository) BoundingPolygon(ctx context.Context, ids []int64, maxRank int) (string, bool, error) {
	if len(ids) == 0 {
		return "", false, nil
	}

	var wkt string

	err := sq.Select("ST_AsText(geometry)").
		From("placex").
		Where(sq.Eq{"place_id": ids}).
		Where(sq.Lt{"rank_search": maxRank}).
		Where("ST_GeometryType(geometry)::VARCHAR IN ('POLYGON', 'MULTIPOLYGON')").
		OrderBy("rank_search", "place_id").
		Limit(1).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&wkt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return wkt, true, nil
}

func (r *Repository) FilterBySearchRank(ctx context.Context, ids []int64, maxRank int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	b := sq.Select("place_id").
		From("placex").
		Where(sq.Eq{"place_id": ids}).
		Where(sq.Lt{"rank_search": maxRank}).
		OrderBy("place_id")

	return r.queryIDs(ctx, b)
}

// placesAroundQuery builds the lookup of the places of a class near the
// polygon or the parents of q.
func placesAroundQuery(c *search.Constraints, q search.AroundQuery) (sq.SelectBuilder, error) {
	// the candidates are always l, the reference places f
	inner := sq.Select("l.place_id")
	geometry := "l.geometry"

	if q.UseClassTable {
		table, err := classTableName(q.Class, q.Type)
		if err != nil {
			return inner, err
		}

		inner = inner.From(table + " l")
		geometry = "l.centroid"
	} else {
		inner = inner.From("placex l").
			Where(sq.Eq{"l.class": q.Class, "l.type": q.Type}).
			Where("l.linked_place_id IS NULL")
	}

	var order sq.Sqlizer

	if q.Polygon != "" {
		polygon := sq.Expr("ST_GeomFromText(?)", q.Polygon)
		inner = inner.Where(sq.Expr("ST_Contains(?, l.centroid)", polygon))
		order = sq.Expr("min(ST_Distance(ST_Centroid(?), l.centroid))", polygon)
	} else {
		inner = inner.Join(fmt.Sprintf("placex f ON ST_DWithin(%s, f.centroid, ?)", geometry), q.Radius).
			Where(sq.Eq{"f.place_id": q.Parents})
		order = sq.Expr(fmt.Sprintf("min(ST_Distance(%s, f.geometry))", geometry))
	}

	if c.HasNearPoint() {
		order = sq.Expr("min(?)", distanceSQL(c, geometry))
	}

	inner = inner.Column(sq.Expr("? AS order_term", order)).
		Where(excludeSQL(c, "l.place_id")).
		GroupBy("l.place_id")

	b := sq.Select("place_id").
		FromSelect(inner, "i").
		OrderBy("order_term", "place_id")

	return withLimit(b, q.Limit), nil
}

func (r *Repository) PlacesAround(ctx context.Context, c *search.Constraints, q search.AroundQuery) ([]int64, error) {
	if q.Polygon == "" && len(q.Parents) == 0 {
		return nil, nil
	}

	b, err := placesAroundQuery(c, q)
	if err != nil {
		return nil, err
	}

	return r.queryIDs(ctx, b)
}

func (r *Repository) PostcodeMismatches(ctx context.Context, ids []int64, postcode string) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	b := sq.Select("place_id").
		From("placex").
		Where(sq.Eq{"place_id": ids}).
		Where(sq.NotEq{"postcode": postcode}).
		OrderBy("place_id")

	return r.queryIDs(ctx, b)
}
