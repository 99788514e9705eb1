// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// address rank of countries
	countryRank = 4
	// house number searches only consider parents in this address rank range
	houseNumberParentMinRank = 16
	houseNumberParentMaxRank = 30
	// parents up to this rank are roads that may own house numbers
	roadMaxRank = 27
	// roads from this rank on lose one rank when the house number is missing,
	// lower ranks lose two
	streetPenaltyRank = 26
	// parents from this rank on are dropped when the house number is missing
	poiDropRank = 28
	// parents from this rank on are POIs that may carry the house number
	poiMinRank = 30
	// named place lookups fetch at least this many rows when the result is
	// filtered further by house number or class
	widenedLimit = 40
	// class searches around places coarser than this look inside a polygon
	polygonSearchRank = 9
	// reference places are taken up to this many search ranks above the
	// coarsest one
	parentRankSlack = 5
	// radius in degrees around reference places
	classTableRadius = 0.05
	placeRadius      = 0.01
	// Lookup gives up after this many rank groups or interpretations
	maxGroups  = 5
	maxQueries = 30
)

var numericHouseNumberRe = regexp.MustCompile(`^[0-9]+$`)

// Engine runs interpretations against a Store.
type Engine struct {
	store     Store
	workers   int
	cadastral bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets how many interpretations of a rank group run at once.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCadastralFallback enables the cadastral interpolation source as the
// last resort for house numbers.
func WithCadastralFallback(enabled bool) EngineOption {
	return func(e *Engine) {
		e.cadastral = enabled
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	e := &Engine{store: store, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Execute runs a single interpretation and returns its results in the order
// they were found. Results start at the rank of the interpretation and are
// penalised by the house number and postcode checks.
func (e *Engine) Execute(ctx context.Context, d Description, window RankWindow, limit int) ([]Result, error) {
	rs, err := e.execute(ctx, d, window, limit)
	if err != nil {
		return nil, err
	}

	return rs.list(), nil
}

func (e *Engine) execute(ctx context.Context, d Description, window RankWindow, limit int) (*resultSet, error) {
	if !d.IsValid() {
		return nil, &Error{
			Kind:    ErrorKindInvalidInterpretation,
			Message: fmt.Sprintf("invalid interpretation {%s}", d),
		}
	}

	c := d.Constraints()
	rs := newResultSet()

	var err error

	switch {
	case d.HasCountry() && !d.HasName(false) && !d.HasOperator() && d.Class() == "" && !c.HasNearPoint():
		if window.Includes(countryRank) {
			rs, err = e.queryCountry(ctx, d)
		}
	case !d.HasName(false) && len(d.addressTokens) == 0:
		if c.IsBounded() {
			rs, err = e.queryNearby(ctx, d, limit)
		}
	case d.IsOperator(OperatorPostcode):
		rs, err = e.queryPostcode(ctx, d, limit)
	case d.HasName(false) || len(d.addressTokens) > 0:
		rs, err = e.queryNamedPlace(ctx, d, window, limit)
	default:
		return nil, &Error{
			Kind:    ErrorKindNoViableStrategy,
			Message: fmt.Sprintf("no strategy for interpretation {%s}", d),
		}
	}

	if err != nil {
		return nil, err
	}

	if d.HasPostcode() && rs.len() > 0 {
		if err := e.penalizePostcodeMismatches(ctx, d, rs); err != nil {
			return nil, err
		}
	}

	return rs, nil
}

func (e *Engine) queryCountry(ctx context.Context, d Description) (*resultSet, error) {
	rs := newResultSet()

	id, found, err := e.store.LargestCountry(ctx, d.constraints, d.countryCode)
	if err != nil {
		return nil, storeError("country lookup", err)
	}

	if found {
		rs.add(NewResult(id, TablePlace, d.rank))
	}

	return rs, nil
}

func (e *Engine) queryNearby(ctx context.Context, d Description, limit int) (*resultSet, error) {
	rs := newResultSet()
	if d.class == "" {
		return rs, nil
	}

	hasTable, err := e.store.HasClassTable(ctx, d.class, d.typ)
	if err != nil {
		return nil, storeError("class table check", err)
	}

	q := NearbyQuery{Class: d.class, Type: d.typ, UseClassTable: hasTable, Limit: limit}

	ids, err := e.store.NearbyPlaces(ctx, d.constraints, q)
	if err != nil {
		return nil, storeError("nearby lookup", err)
	}

	if len(ids) == 0 && hasTable {
		q.UseClassTable = false

		if ids, err = e.store.NearbyPlaces(ctx, d.constraints, q); err != nil {
			return nil, storeError("nearby lookup", err)
		}
	}

	for _, id := range ids {
		rs.add(NewResult(id, TablePlace, d.rank))
	}

	return rs, nil
}

func (e *Engine) queryPostcode(ctx context.Context, d Description, limit int) (*resultSet, error) {
	ids, err := e.store.Postcodes(ctx, d.constraints, PostcodeQuery{
		Postcode:      d.postcodeName,
		AddressTokens: d.addressTokens,
		CountryCode:   d.countryCode,
		Limit:         limit,
	})
	if err != nil {
		return nil, storeError("postcode lookup", err)
	}

	rs := newResultSet()
	for _, id := range ids {
		rs.add(NewResult(id, TablePostcode, d.rank))
	}

	return rs, nil
}

func (e *Engine) queryNamedPlace(ctx context.Context, d Description, window RankWindow, limit int) (*resultSet, error) {
	q := NamedPlaceQuery{
		NameTokens:       d.nameTokens,
		AddressTokens:    d.addressTokens,
		RareName:         d.rareName,
		CountryCode:      d.countryCode,
		StreetImportance: d.HasHouseNumber(),
		Postcode:         d.postcode,
		Limit:            limit,
	}

	// ordering by house number checks every row, only worth it when the
	// result is narrowed down by something else
	if d.HasHouseNumber() && (d.rareName || len(d.addressTokens) > 0 || d.HasPostcode()) {
		q.HouseNumberOrder = d.houseNumber
	}

	switch {
	case d.HasHouseNumber():
		q.Ranks = &RankFilter{RankWindow: RankWindow{Min: houseNumberParentMinRank, Max: houseNumberParentMaxRank}}
	case (d.class == "" || d.IsOperator(OperatorName)) && window.Min > 0:
		q.Ranks = &RankFilter{RankWindow: window, IncludeSearchRank: true}
	}

	if (d.HasHouseNumber() || d.class != "") && q.Limit < widenedLimit {
		q.Limit = widenedLimit
	}

	rows, err := e.store.NamedPlaces(ctx, d.constraints, q)
	if err != nil {
		return nil, storeError("named place lookup", err)
	}

	rs := newResultSet()

	for _, row := range rows {
		r := NewResult(row.PlaceID, TablePlace, d.rank)
		r.AddressRank = row.AddressRank
		r.ExactMatches = row.ExactMatches
		rs.add(r)
	}

	if d.HasHouseNumber() && rs.len() > 0 {
		if rs, err = e.refineHouseNumber(ctx, d, rs); err != nil {
			return nil, err
		}
	}

	if d.class != "" && rs.len() > 0 {
		if rs, err = e.refineClass(ctx, d, rs, limit); err != nil {
			return nil, err
		}
	}

	return rs, nil
}

// refineHouseNumber replaces the parents by the places carrying the house
// number. Roads are kept with a penalty, parents of POI rank are dropped.
func (e *Engine) refineHouseNumber(ctx context.Context, d Description, parents *resultSet) (*resultSet, error) {
	roads := parents.placeIDs(func(r Result) bool { return r.AddressRank <= roadMaxRank })
	pois := parents.placeIDs(func(r Result) bool { return r.AddressRank >= poiMinRank })

	out := newResultSet()

	if len(roads) > 0 || len(pois) > 0 {
		ids, err := e.store.HouseNumbers(ctx, d.constraints, HouseNumberQuery{
			HouseNumber: d.houseNumber,
			Roads:       roads,
			POIs:        pois,
		})
		if err != nil {
			return nil, storeError("house number lookup", err)
		}

		for _, id := range ids {
			out.add(NewResult(id, TablePlace, d.rank))
		}

		number, numeric := ParseHouseNumber(d.houseNumber)

		if out.len() == 0 && numeric && len(roads) > 0 {
			if err := e.addInterpolations(ctx, d, out, TableInterpolation, roads, number); err != nil {
				return nil, err
			}
		}

		if out.len() == 0 && numeric && len(roads) > 0 && e.cadastral {
			if err := e.addInterpolations(ctx, d, out, TableCadastral, roads, number); err != nil {
				return nil, err
			}
		}
	}

	for _, p := range parents.list() {
		if p.AddressRank >= poiDropRank {
			continue
		}

		if p.AddressRank >= streetPenaltyRank {
			p.ResultRank++
		} else {
			p.ResultRank += 2
		}

		out.add(p)
	}

	return out, nil
}

func (e *Engine) addInterpolations(
	ctx context.Context,
	d Description,
	out *resultSet,
	table Table,
	roads []int64,
	number int,
) error {
	ids, err := e.store.Interpolations(ctx, d.constraints, InterpolationQuery{
		Table:       table,
		Roads:       roads,
		HouseNumber: number,
		Parity:      ParityOf(number),
	})
	if err != nil {
		return storeError(table.String()+" lookup", err)
	}

	for _, id := range ids {
		r := NewResult(id, table, d.rank)
		n := number
		r.HouseNumber = &n
		out.add(r)
	}

	return nil
}

// ParseHouseNumber returns the value of a purely numeric house number.
func ParseHouseNumber(s string) (int, bool) {
	if !numericHouseNumberRe.MatchString(s) {
		return 0, false
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}

	return n, true
}

// refineClass replaces the candidates by places of the requested class and
// type: the candidates themselves for name searches, places around them for
// near searches and both for type searches.
func (e *Engine) refineClass(ctx context.Context, d Description, parents *resultSet, limit int) (*resultSet, error) {
	out := newResultSet()

	ids := parents.placeIDs(nil)
	if len(ids) == 0 {
		return out, nil
	}

	if d.IsOperator(OperatorType) || d.IsOperator(OperatorName) {
		found, err := e.store.FilterByClass(ctx, d.constraints, ids, d.class, d.typ, limit)
		if err != nil {
			return nil, storeError("class filter", err)
		}

		for _, id := range found {
			out.add(NewResult(id, TablePlace, d.rank))
		}
	}

	if d.IsOperator(OperatorType) || d.IsOperator(OperatorNear) {
		found, err := e.placesAround(ctx, d, ids, limit)
		if err != nil {
			return nil, err
		}

		for _, id := range found {
			out.add(NewResult(id, TablePlace, d.rank))
		}
	}

	return out, nil
}

func (e *Engine) placesAround(ctx context.Context, d Description, parents []int64, limit int) ([]int64, error) {
	c := d.constraints

	hasTable, err := e.store.HasClassTable(ctx, d.class, d.typ)
	if err != nil {
		return nil, storeError("class table check", err)
	}

	minRank, ok, err := e.store.MinSearchRank(ctx, parents)
	if err != nil {
		return nil, storeError("search rank lookup", err)
	}

	if !ok {
		return nil, nil
	}

	q := AroundQuery{Class: d.class, Type: d.typ, UseClassTable: hasTable, Limit: limit}

	// radius searches around states and countries are meaningless
	if minRank < polygonSearchRank && hasTable {
		polygon, found, err := e.store.BoundingPolygon(ctx, parents, minRank+parentRankSlack)
		if err != nil {
			return nil, storeError("polygon lookup", err)
		}

		if found {
			q.Polygon = polygon
		}
	}

	if q.Polygon == "" {
		if q.Parents, err = e.store.FilterBySearchRank(ctx, parents, minRank+parentRankSlack); err != nil {
			return nil, storeError("search rank filter", err)
		}

		if len(q.Parents) == 0 {
			return nil, nil
		}
	}

	switch {
	case hasTable:
		q.Radius = classTableRadius
	case c.HasNearPoint():
		q.Radius = c.NearRadius()
	default:
		q.Radius = placeRadius
	}

	ids, err := e.store.PlacesAround(ctx, c, q)
	if err != nil {
		return nil, storeError("places around lookup", err)
	}

	return ids, nil
}

// penalizePostcodeMismatches demotes places whose postcode differs from
// the requested one.
func (e *Engine) penalizePostcodeMismatches(ctx context.Context, d Description, rs *resultSet) error {
	ids := rs.placeIDs(nil)
	if len(ids) == 0 {
		return nil
	}

	mismatches, err := e.store.PostcodeMismatches(ctx, ids, d.postcode)
	if err != nil {
		return storeError("postcode check", err)
	}

	for _, id := range mismatches {
		rs.penalize(TablePlace, id, 1)
	}

	return nil
}

// Lookup runs groups of interpretations, best group first, and returns the
// merged results ordered by result rank, exact matches and discovery order.
//
// The interpretations of a group run concurrently. Once the results of the
// leading interpretations of a group reach limit, the rest of the group is
// cancelled and ignored, which keeps the outcome independent of scheduling.
// Failing interpretations are logged and skipped. Lookup stops at the first
// group that produced results.
func (e *Engine) Lookup(ctx context.Context, groups [][]Description, window RankWindow, limit int) ([]Result, error) {
	all := newResultSet()
	queries := 0

	for i, group := range groups {
		if i >= maxGroups || queries >= maxQueries {
			break
		}

		if len(group) > maxQueries-queries {
			group = group[:maxQueries-queries]
		}

		queries += len(group)

		rs, err := e.lookupGroup(ctx, group, window, limit)
		if err != nil {
			return nil, err
		}

		all.merge(rs)

		if all.len() > 0 {
			break
		}
	}

	return all.ranked(limit), nil
}

func (e *Engine) lookupGroup(ctx context.Context, group []Description, window RankWindow, limit int) (*resultSet, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(cctx)
	g.SetLimit(e.workers)

	var mu sync.Mutex

	done := make([]bool, len(group))
	results := make([]*resultSet, len(group))
	merged := newResultSet()
	next := 0
	satisfied := false

	for i, d := range group {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			rs, err := e.execute(gctx, d, window, limit)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, context.Canceled) {
					return nil
				}

				if !IsInvalidInterpretation(err) {
					log.Printf("Skipping interpretation {%s} - %v", d, err)
				}
			}

			mu.Lock()
			defer mu.Unlock()

			done[i] = true
			results[i] = rs

			for !satisfied && next < len(group) && done[next] {
				if results[next] != nil {
					merged.merge(results[next])
				}

				next++

				if limit > 0 && merged.len() >= limit {
					satisfied = true

					cancel()
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return merged, nil
}
