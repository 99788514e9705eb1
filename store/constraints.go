// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/spatial"
)

// The predicate builders return nil when they do not apply, which
// SelectBuilder.Where ignores. Use orderBy for ordering terms.

// idList is a list literal of bound ids. ids must not be empty.
func idList(ids []int64) sq.Sqlizer {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return sq.Expr("["+strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")+"]", args...)
}

// orderBy appends an ordering term unless it is nil.
func orderBy(b sq.SelectBuilder, term sq.Sqlizer) sq.SelectBuilder {
	if term == nil {
		return b
	}

	return b.OrderByClause(term)
}

// withLimit limits the rows when n is positive.
func withLimit(b sq.SelectBuilder, n int) sq.SelectBuilder {
	if n <= 0 {
		return b
	}

	return b.Limit(uint64(n))
}

func pointSQL(p spatial.Point) sq.Sqlizer {
	return sq.Expr("ST_Point(?, ?)", p.Lng, p.Lat)
}

func boxSQL(b spatial.Viewbox) sq.Sqlizer {
	return sq.Expr("ST_MakeEnvelope(?, ?, ?, ?)", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// withinSQL keeps geometries within the near radius. When cellColumn is set
// and the radius is small, the h3 cells of the area are checked first.
func withinSQL(c *search.Constraints, column, cellColumn string) (sq.Sqlizer, error) {
	p := c.NearPoint()
	within := sq.Expr(fmt.Sprintf("ST_DWithin(%s, ?, ?)", column), pointSQL(p), c.NearRadius())

	if cellColumn == "" {
		return within, nil
	}

	cells, ok, err := spatial.CellsWithin(p, c.NearRadius())
	if err != nil {
		return nil, err
	}

	if !ok {
		return within, nil
	}

	return sq.And{sq.Eq{cellColumn: cells}, within}, nil
}

func distanceSQL(c *search.Constraints, column string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("ST_Distance(%s, ?)", column), pointSQL(c.NearPoint()))
}

// viewboxCentreDistanceSQL orders by the distance to the centre of the
// viewbox.
func viewboxCentreDistanceSQL(c *search.Constraints, column string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("ST_Distance(%s, ?)", column), pointSQL(c.Viewbox().Centre()))
}

// insideViewboxSQL keeps geometries intersecting the viewbox when it is
// bounded.
func insideViewboxSQL(c *search.Constraints, column string) sq.Sqlizer {
	if !c.IsViewboxBounded() {
		return nil
	}

	return sq.Expr(fmt.Sprintf("ST_Intersects(?, %s)", column), boxSQL(*c.Viewbox()))
}

// viewboxImportanceSQL weights by position: 1 inside the viewbox, 0.5
// inside the enlarged viewbox, 0.25 elsewhere.
func viewboxImportanceSQL(c *search.Constraints, column string) sq.Sqlizer {
	if c.Viewbox() == nil {
		return sq.Expr("1")
	}

	return sq.Expr(
		fmt.Sprintf("CASE WHEN ST_Contains(?, %s) THEN 1 WHEN ST_Contains(?, %s) THEN 0.5 ELSE 0.25 END", column, column),
		boxSQL(*c.Viewbox()), boxSQL(*c.LargeViewbox()),
	)
}

// countrySQL restricts to a country, or to the countries of the constraints
// when code is empty.
func countrySQL(c *search.Constraints, column, code string) sq.Sqlizer {
	if code != "" {
		return sq.Eq{column: code}
	}

	if countries := c.Countries(); len(countries) > 0 {
		return sq.Eq{column: countries}
	}

	return nil
}

func excludeSQL(c *search.Constraints, column string) sq.Sqlizer {
	excluded := c.ExcludedPlaces()
	if len(excluded) == 0 {
		return nil
	}

	return sq.NotEq{column: excluded}
}
