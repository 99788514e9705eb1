// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "context"

// Parity selects interpolation lines by the parity of their numbers.
type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
	ParityAll  Parity = "all"
)

// ParityOf returns the parity of n.
func ParityOf(n int) Parity {
	if n%2 == 0 {
		return ParityEven
	}

	return ParityOdd
}

// RankWindow is an inclusive range of address ranks.
type RankWindow struct {
	Min int
	Max int
}

// DefaultRankWindow accepts every rank.
var DefaultRankWindow = RankWindow{Min: 0, Max: 30}

func (w RankWindow) Includes(rank int) bool {
	return rank >= w.Min && rank <= w.Max
}

// RankFilter restricts the address rank of named places. With
// IncludeSearchRank a match on the search rank is accepted too.
type RankFilter struct {
	RankWindow
	IncludeSearchRank bool
}

// NearbyQuery looks for places of a class/type inside the bounded area of
// the request.
type NearbyQuery struct {
	Class         string
	Type          string
	UseClassTable bool
	Limit         int
}

// PostcodeQuery looks up postcode areas.
type PostcodeQuery struct {
	Postcode string
	// all must appear in the name or address terms of the parent place
	AddressTokens []int64
	// overrides the country list of the constraints when set
	CountryCode string
	Limit       int
}

// NamedPlaceQuery looks up places by their name and address terms.
type NamedPlaceQuery struct {
	NameTokens    []int64
	AddressTokens []int64
	// do not use the address index, the name is selective enough
	RareName bool
	// overrides the country list of the constraints when set
	CountryCode string
	Ranks       *RankFilter
	// places with a child carrying this house number come first
	HouseNumberOrder string
	// rank by closeness to street level instead of importance
	StreetImportance bool
	// without a near point, places close to this postcode are preferred or,
	// with no address tokens, required
	Postcode string
	Limit    int
}

// NamedPlace is a row found by a named place lookup.
type NamedPlace struct {
	PlaceID      int64
	AddressRank  int
	ExactMatches int
}

// HouseNumberQuery looks for a house number among the children of roads
// and on the POIs themselves.
type HouseNumberQuery struct {
	HouseNumber string
	Roads       []int64
	POIs        []int64
}

// InterpolationQuery looks for interpolation lines of the roads that cover
// a house number.
type InterpolationQuery struct {
	Table       Table
	Roads       []int64
	HouseNumber int
	Parity      Parity
}

// AroundQuery looks for places of a class/type close to reference places
// or inside a polygon.
type AroundQuery struct {
	Class string
	Type  string
	// reference places, unused when Polygon is set
	Parents []int64
	// WKT geometry
	Polygon       string
	Radius        float64
	UseClassTable bool
	Limit         int
}

// Store is the read side of the geospatial database used by the engine.
// Every method applies the exclusion list of the constraints.
type Store interface {
	// LargestCountry returns the largest top level area of the country.
	LargestCountry(ctx context.Context, c *Constraints, countryCode string) (int64, bool, error)

	// HasClassTable reports whether a per class/type table exists.
	HasClassTable(ctx context.Context, class, typ string) (bool, error)

	// NearbyPlaces looks for a class/type inside the bounded area.
	NearbyPlaces(ctx context.Context, c *Constraints, q NearbyQuery) ([]int64, error)

	// Postcodes looks up postcode areas.
	Postcodes(ctx context.Context, c *Constraints, q PostcodeQuery) ([]int64, error)

	// NamedPlaces looks up places by name and address.
	NamedPlaces(ctx context.Context, c *Constraints, q NamedPlaceQuery) ([]NamedPlace, error)

	// HouseNumbers returns places whose house number matches.
	HouseNumbers(ctx context.Context, c *Constraints, q HouseNumberQuery) ([]int64, error)

	// Interpolations returns interpolation lines covering the house number.
	Interpolations(ctx context.Context, c *Constraints, q InterpolationQuery) ([]int64, error)

	// FilterByClass keeps the places having the class/type themselves.
	FilterByClass(ctx context.Context, c *Constraints, ids []int64, class, typ string, limit int) ([]int64, error)

	// MinSearchRank returns the smallest search rank among the places.
	MinSearchRank(ctx context.Context, ids []int64) (int, bool, error)

	// BoundingPolygon returns the polygon of the coarsest place with a
	// search rank below maxRank, as WKT.
	BoundingPolygon(ctx context.Context, ids []int64, maxRank int) (string, bool, error)

	// FilterBySearchRank keeps the places with a search rank below maxRank.
	FilterBySearchRank(ctx context.Context, ids []int64, maxRank int) ([]int64, error)

	// PlacesAround looks for a class/type around places or in a polygon.
	PlacesAround(ctx context.Context, c *Constraints, q AroundQuery) ([]int64, error)

	// PostcodeMismatches returns the places whose postcode differs.
	PostcodeMismatches(ctx context.Context, ids []int64, postcode string) ([]int64, error)
}
