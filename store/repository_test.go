// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/spatial"
	"github.com/jcodagnone/geosearch/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, *Repository) {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	repo, err := New(db)
	if err != nil {
		t.Fatalf("Failed to load spatial: %v", err)
	}

	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db, repo
}

// Montevideo: a country, a city, two streets with houses, pubs, postcodes
// and interpolation lines. One pub lies in Buenos Aires.
func seedFixture(t *testing.T, repo *Repository) {
	t.Helper()

	ctx := context.Background()

	places := []Place{
		{
			PlaceID: 1, Class: "boundary", Type: "administrative", Name: "Uruguay", CountryCode: "UY",
			SearchRank: 4, AddressRank: 4, Importance: 0.9,
			Geometry:  "POLYGON((-58.3 -35, -53 -35, -53 -30, -58.3 -30, -58.3 -35))",
			Centroid:  spatial.Point{Lat: -32.5, Lng: -55.65},
			NameTerms: []int64{50},
		},
		{
			PlaceID: 10, ParentPlaceID: 1, Class: "place", Type: "city", Name: "Montevideo", CountryCode: "uy",
			SearchRank: 16, AddressRank: 16, Importance: 0.6,
			Geometry:     "POLYGON((-56.45 -34.95, -56.0 -34.95, -56.0 -34.7, -56.45 -34.7, -56.45 -34.95))",
			Centroid:     spatial.Point{Lat: -34.9, Lng: -56.19},
			NameTerms:    []int64{2},
			AddressTerms: []int64{50},
		},
		{
			PlaceID: 100, ParentPlaceID: 10, Class: "highway", Type: "primary", Name: "Avenida 18 de Julio", CountryCode: "uy",
			SearchRank: 26, AddressRank: 26,
			Geometry:     "LINESTRING(-56.2 -34.906, -56.17 -34.903)",
			Centroid:     spatial.Point{Lat: -34.905, Lng: -56.185},
			NameTerms:    []int64{1},
			AddressTerms: []int64{2, 50},
		},
		{
			PlaceID: 101, ParentPlaceID: 10, Class: "highway", Type: "secondary", Name: "Bulevar Artigas", CountryCode: "uy",
			SearchRank: 26, AddressRank: 26,
			Geometry:     "LINESTRING(-56.17 -34.88, -56.16 -34.9)",
			Centroid:     spatial.Point{Lat: -34.89, Lng: -56.165},
			NameTerms:    []int64{3},
			AddressTerms: []int64{2, 50},
		},
		house(200, 100, "1234", "11200", -56.186, -34.905),
		house(201, 100, "1240", "11200", -56.187, -34.905),
		house(202, 100, "1300", "11300", -56.18, -34.904),
		house(203, 101, "12A", "11400", -56.166, -34.891),
		house(204, 101, "7", "11500", -56.167, -34.889),
		{
			PlaceID: 300, ParentPlaceID: 100, Class: "amenity", Type: "pub", Name: "Bar Tabaré", CountryCode: "uy",
			HouseNumber: "1230", Postcode: "11200",
			SearchRank: 30, AddressRank: 30,
			Centroid:     spatial.Point{Lat: -34.906, Lng: -56.184},
			NameTerms:    []int64{4},
			AddressTerms: []int64{1, 2, 50},
		},
		{
			PlaceID: 301, ParentPlaceID: 100, Class: "amenity", Type: "pub", Name: "La Ronda", CountryCode: "uy",
			Postcode:   "11300",
			SearchRank: 30, AddressRank: 30,
			Centroid:     spatial.Point{Lat: -34.907, Lng: -56.19},
			NameTerms:    []int64{5},
			AddressTerms: []int64{1, 2, 50},
		},
		{
			PlaceID: 302, Class: "amenity", Type: "pub", Name: "El Federal", CountryCode: "ar",
			SearchRank: 30, AddressRank: 30,
			Centroid:  spatial.Point{Lat: -34.6, Lng: -58.38},
			NameTerms: []int64{6},
		},
	}

	require.NoError(t, repo.SavePlaces(ctx, places))

	require.NoError(t, repo.SavePostcodes(ctx, []Postcode{
		{PlaceID: 500, ParentPlaceID: 100, Postcode: "11200", CountryCode: "uy", Point: spatial.Point{Lat: -34.905, Lng: -56.185}},
		{PlaceID: 501, ParentPlaceID: 101, Postcode: "11300", CountryCode: "uy", Point: spatial.Point{Lat: -34.89, Lng: -56.165}},
	}))

	require.NoError(t, repo.SaveInterpolations(ctx, search.TableInterpolation, []Interpolation{
		{PlaceID: 400, ParentPlaceID: 100, StartNumber: 10, EndNumber: 20, Parity: search.ParityEven},
	}))

	require.NoError(t, repo.SaveInterpolations(ctx, search.TableCadastral, []Interpolation{
		{PlaceID: 401, ParentPlaceID: 100, StartNumber: 11, EndNumber: 21, Parity: search.ParityOdd},
	}))
}

func house(id, parent int64, number, postcode string, lng, lat float64) Place {
	return Place{
		PlaceID: id, ParentPlaceID: parent, Class: "place", Type: "house", CountryCode: "uy",
		HouseNumber: number, Postcode: postcode,
		SearchRank: 30, AddressRank: 30,
		Centroid: spatial.Point{Lat: lat, Lng: lng},
	}
}

func TestCreateSchema(t *testing.T) {
	db, _ := setupTestDB(t)

	for _, table := range []string{
		"placex", "search_name", "location_postcode",
		"location_property_osmline", "location_property_tiger", "word",
	} {
		var n int

		err := db.QueryRow("SELECT count(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestSavePlaces(t *testing.T) {
	db, repo := setupTestDB(t)
	seedFixture(t, repo)

	var (
		cell    int64
		country string
		wkt     string
	)

	err := db.QueryRow(`SELECT h3_cell, country_code, ST_AsText(geometry) FROM placex WHERE place_id = 200`).
		Scan(&cell, &country, &wkt)
	require.NoError(t, err)

	want, err := spatial.Cell(spatial.Point{Lat: -34.905, Lng: -56.186})
	require.NoError(t, err)
	assert.Equal(t, want, cell)
	assert.Equal(t, "uy", country)
	assert.True(t, strings.HasPrefix(wkt, "POINT"), wkt)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM search_name`).Scan(&n))
	assert.Equal(t, 7, n)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Places: 12, SearchNames: 7, Postcodes: 2, Interpolations: 1}, stats)
}

func TestSavePlacesRejectsInvalidCentroid(t *testing.T) {
	_, repo := setupTestDB(t)

	err := repo.SavePlaces(context.Background(), []Place{
		{PlaceID: 1, Class: "place", Type: "city", Centroid: spatial.Point{Lat: 95, Lng: 0}},
	})
	assert.Error(t, err)
}

func TestSaveInterpolationsRejectsReversedRange(t *testing.T) {
	_, repo := setupTestDB(t)

	err := repo.SaveInterpolations(context.Background(), search.TableInterpolation, []Interpolation{
		{PlaceID: 1, ParentPlaceID: 2, StartNumber: 20, EndNumber: 10, Parity: search.ParityAll},
	})
	assert.Error(t, err)

	err = repo.SaveInterpolations(context.Background(), search.TablePostcode, nil)
	assert.Error(t, err)
}

func TestWords(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveWords(ctx, []tokenizer.Word{
		{ID: 1, Token: " montevideo", Word: "montevideo", SearchNameCount: 12},
		{ID: 2, Token: "montevideo", SearchNameCount: 40},
		{ID: 3, Token: " pub", Word: "pub", Class: "amenity", Type: "pub", Operator: "near"},
		{ID: 4, Token: " uruguay", CountryCode: "uy"},
	}))

	words, err := repo.LookupWords(ctx, []string{" montevideo", "montevideo", " pub", " nowhere"})
	require.NoError(t, err)
	require.Len(t, words, 3)

	assert.Equal(t, tokenizer.Word{ID: 1, Token: " montevideo", Word: "montevideo", SearchNameCount: 12}, words[0])
	assert.Equal(t, "amenity", words[2].Class)
	assert.Equal(t, "near", words[2].Operator)

	words, err = repo.LookupWords(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestClassTables(t *testing.T) {
	db, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	ok, err := repo.HasClassTable(ctx, "amenity", "pub")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.CreateClassTypeTable(ctx, "amenity", "pub"))
	require.NoError(t, repo.CreateClassTypeTable(ctx, "amenity", "pub"))

	ok, err = repo.HasClassTable(ctx, "amenity", "pub")
	require.NoError(t, err)
	assert.True(t, ok)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM place_classtype_amenity_pub`).Scan(&n))
	assert.Equal(t, 3, n)

	ok, err = repo.HasClassTable(ctx, "amenity", "pub'--")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, repo.CreateClassTypeTable(ctx, "amenity", "pub'--"))
}

func TestRollbackKeepsError(t *testing.T) {
	db, _ := setupTestDB(t)

	errInsert := errors.New("insert failed")

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.Equal(t, errInsert, rollback(tx, errInsert))

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	err = rollback(tx, errInsert)
	require.ErrorIs(t, err, errInsert)
	assert.ErrorIs(t, err, sql.ErrTxDone)
}

func TestCreateClassTypeTableKeepsCause(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := New(db)
	require.NoError(t, err)

	// no schema, so the copy from placex fails
	err = repo.CreateClassTypeTable(context.Background(), "amenity", "pub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placex")
}

func TestLargestCountry(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	id, ok, err := repo.LargestCountry(ctx, nil, "uy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok, err = repo.LargestCountry(ctx, search.NewConstraints(search.WithExcludedPlaces(1)), "uy")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = repo.LargestCountry(ctx, nil, "br")
	require.NoError(t, err)
	assert.False(t, ok)

	// only a bounded viewbox restricts the country
	santiago, err := spatial.NewViewbox(-71, -34, -70, -33)
	require.NoError(t, err)

	id, ok, err = repo.LargestCountry(ctx, search.NewConstraints(search.WithViewbox(santiago, false)), "uy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok, err = repo.LargestCountry(ctx, search.NewConstraints(search.WithViewbox(santiago, true)), "uy")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamedPlaces(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()
	montevideo, err := spatial.NewViewbox(-56.45, -34.95, -56.0, -34.7)
	require.NoError(t, err)

	tests := []struct {
		name string
		c    *search.Constraints
		q    search.NamedPlaceQuery
		want []search.NamedPlace
	}{
		{
			name: "name",
			q:    search.NamedPlaceQuery{NameTokens: []int64{1}, Limit: 10},
			want: []search.NamedPlace{{PlaceID: 100, AddressRank: 26}},
		},
		{
			name: "name and address",
			q:    search.NamedPlaceQuery{NameTokens: []int64{4}, AddressTokens: []int64{1, 2}, Limit: 10},
			want: []search.NamedPlace{{PlaceID: 300, AddressRank: 30}},
		},
		{
			name: "rare name",
			q:    search.NamedPlaceQuery{NameTokens: []int64{4}, AddressTokens: []int64{1}, RareName: true, Limit: 10},
			want: []search.NamedPlace{{PlaceID: 300, AddressRank: 30}},
		},
		{
			name: "address mismatch",
			q:    search.NamedPlaceQuery{NameTokens: []int64{4}, AddressTokens: []int64{3}, Limit: 10},
		},
		{
			name: "exact matches",
			c:    search.NewConstraints(search.WithFullNameTerms(2, 50, 99)),
			q:    search.NamedPlaceQuery{NameTokens: []int64{1}, Limit: 10},
			want: []search.NamedPlace{{PlaceID: 100, AddressRank: 26, ExactMatches: 2}},
		},
		{
			name: "country of the interpretation",
			c:    search.NewConstraints(search.WithCountries("ar")),
			q:    search.NamedPlaceQuery{NameTokens: []int64{6}, CountryCode: "uy", Limit: 10},
		},
		{
			name: "countries of the request",
			c:    search.NewConstraints(search.WithCountries("ar")),
			q:    search.NamedPlaceQuery{NameTokens: []int64{6}, Limit: 10},
			want: []search.NamedPlace{{PlaceID: 302, AddressRank: 30}},
		},
		{
			name: "rank window",
			q: search.NamedPlaceQuery{
				NameTokens: []int64{1},
				Ranks:      &search.RankFilter{RankWindow: search.RankWindow{Min: 4, Max: 16}},
				Limit:      10,
			},
		},
		{
			name: "near point",
			c:    search.NewConstraints(search.WithNearPoint(spatial.Point{Lat: -34.905, Lng: -56.185}, 0.05)),
			q:    search.NamedPlaceQuery{NameTokens: []int64{6}, Limit: 10},
		},
		{
			name: "bounded viewbox",
			c:    search.NewConstraints(search.WithViewbox(montevideo, true)),
			q:    search.NamedPlaceQuery{NameTokens: []int64{6}, Limit: 10},
		},
		{
			name: "excluded",
			c:    search.NewConstraints(search.WithExcludedPlaces(100)),
			q:    search.NamedPlaceQuery{NameTokens: []int64{1}, Limit: 10},
		},
		{
			name: "postcode nearby",
			q:    search.NamedPlaceQuery{NameTokens: []int64{1}, Postcode: "11300", Limit: 10},
			want: []search.NamedPlace{{PlaceID: 100, AddressRank: 26}},
		},
		{
			name: "postcode far away",
			q:    search.NamedPlaceQuery{NameTokens: []int64{6}, Postcode: "11300", Limit: 10},
		},
		{
			name: "house number order",
			q: search.NamedPlaceQuery{
				AddressTokens:    []int64{2},
				HouseNumberOrder: "7",
				StreetImportance: true,
				Limit:            10,
				Ranks:            &search.RankFilter{RankWindow: search.RankWindow{Min: 16, Max: 30}},
			},
			want: []search.NamedPlace{
				{PlaceID: 101, AddressRank: 26},
				{PlaceID: 100, AddressRank: 26},
				{PlaceID: 300, AddressRank: 30},
				{PlaceID: 301, AddressRank: 30},
			},
		},
		{
			name: "interpolated house number order",
			q: search.NamedPlaceQuery{
				AddressTokens:    []int64{2},
				HouseNumberOrder: "16",
				StreetImportance: true,
				Limit:            2,
				Ranks:            &search.RankFilter{RankWindow: search.RankWindow{Min: 16, Max: 30}},
			},
			want: []search.NamedPlace{
				{PlaceID: 100, AddressRank: 26},
				{PlaceID: 101, AddressRank: 26},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.NamedPlaces(ctx, tt.c, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHouseNumbers(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	tests := []struct {
		name string
		q    search.HouseNumberQuery
		want []int64
	}{
		{"child of road", search.HouseNumberQuery{HouseNumber: "1234", Roads: []int64{100}}, []int64{200}},
		{"no partial digits", search.HouseNumberQuery{HouseNumber: "12", Roads: []int64{100}}, nil},
		{"case insensitive", search.HouseNumberQuery{HouseNumber: "12a", Roads: []int64{101}}, []int64{203}},
		{"poi itself", search.HouseNumberQuery{HouseNumber: "1230", POIs: []int64{300}}, []int64{300}},
		{"other road", search.HouseNumberQuery{HouseNumber: "1234", Roads: []int64{101}}, nil},
		{"no parents", search.HouseNumberQuery{HouseNumber: "1234"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HouseNumbers(ctx, nil, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpolations(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	query := func(table search.Table, n int) []int64 {
		ids, err := repo.Interpolations(ctx, nil, search.InterpolationQuery{
			Table:       table,
			Roads:       []int64{100},
			HouseNumber: n,
			Parity:      search.ParityOf(n),
		})
		require.NoError(t, err)

		return ids
	}

	assert.Equal(t, []int64{400}, query(search.TableInterpolation, 14))
	assert.Empty(t, query(search.TableInterpolation, 15))
	assert.Empty(t, query(search.TableInterpolation, 22))
	assert.Equal(t, []int64{401}, query(search.TableCadastral, 15))

	_, err := repo.Interpolations(ctx, nil, search.InterpolationQuery{Table: search.TablePlace, Roads: []int64{100}})
	assert.Error(t, err)
}

func TestPostcodes(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	tests := []struct {
		name string
		q    search.PostcodeQuery
		want []int64
	}{
		{"postcode", search.PostcodeQuery{Postcode: "11200", Limit: 10}, []int64{500}},
		{"parent name", search.PostcodeQuery{Postcode: "11200", AddressTokens: []int64{1}, Limit: 10}, []int64{500}},
		{"parent address", search.PostcodeQuery{Postcode: "11200", AddressTokens: []int64{2, 50}, Limit: 10}, []int64{500}},
		{"other parent", search.PostcodeQuery{Postcode: "11200", AddressTokens: []int64{3}, Limit: 10}, nil},
		{"country", search.PostcodeQuery{Postcode: "11200", CountryCode: "ar", Limit: 10}, nil},
		{"unknown", search.PostcodeQuery{Postcode: "99999", Limit: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Postcodes(ctx, nil, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNearbyPlaces(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()
	require.NoError(t, repo.CreateClassTypeTable(ctx, "amenity", "pub"))

	montevideo, err := spatial.NewViewbox(-56.3, -34.95, -56.0, -34.7)
	require.NoError(t, err)

	near := search.NewConstraints(search.WithNearPoint(spatial.Point{Lat: -34.905, Lng: -56.185}, 0.05))
	bounded := search.NewConstraints(search.WithViewbox(montevideo, true))
	argentina := search.NewConstraints(
		search.WithNearPoint(spatial.Point{Lat: -34.905, Lng: -56.185}, 0.05),
		search.WithCountries("ar"),
	)

	for _, table := range []bool{true, false} {
		q := search.NearbyQuery{Class: "amenity", Type: "pub", UseClassTable: table, Limit: 10}

		got, err := repo.NearbyPlaces(ctx, near, q)
		require.NoError(t, err)
		assert.Equal(t, []int64{300, 301}, got, "near, class table %t", table)

		got, err = repo.NearbyPlaces(ctx, bounded, q)
		require.NoError(t, err)
		assert.Equal(t, []int64{300, 301}, got, "viewbox, class table %t", table)

		got, err = repo.NearbyPlaces(ctx, argentina, q)
		require.NoError(t, err)
		assert.Empty(t, got, "country, class table %t", table)

		q.Limit = 1
		got, err = repo.NearbyPlaces(ctx, near, q)
		require.NoError(t, err)
		assert.Equal(t, []int64{300}, got, "limit, class table %t", table)
	}
}

func TestRefinementLookups(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	ids, err := repo.FilterByClass(ctx, nil, []int64{100, 301, 300}, "amenity", "pub", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 301}, ids)

	rank, ok, err := repo.MinSearchRank(ctx, []int64{1, 100})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, rank)

	_, ok, err = repo.MinSearchRank(ctx, []int64{999})
	require.NoError(t, err)
	assert.False(t, ok)

	polygon, ok, err := repo.BoundingPolygon(ctx, []int64{1, 100}, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(polygon, "POLYGON"), polygon)

	_, ok, err = repo.BoundingPolygon(ctx, []int64{100}, 30)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = repo.FilterBySearchRank(ctx, []int64{1, 10, 100}, 17)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 10}, ids)

	ids, err = repo.PostcodeMismatches(ctx, []int64{100, 200, 202, 301}, "11300")
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, ids)
}

func TestPlacesAround(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()
	require.NoError(t, repo.CreateClassTypeTable(ctx, "amenity", "pub"))

	polygon, ok, err := repo.BoundingPolygon(ctx, []int64{1}, 9)
	require.NoError(t, err)
	require.True(t, ok)

	tests := []struct {
		name string
		c    *search.Constraints
		q    search.AroundQuery
		want []int64
	}{
		{
			name: "around road with class table",
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Parents: []int64{100}, Radius: 0.05, UseClassTable: true, Limit: 10},
			want: []int64{300, 301},
		},
		{
			name: "around road",
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Parents: []int64{100}, Radius: 0.01, Limit: 10},
			want: []int64{300, 301},
		},
		{
			name: "too far",
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Parents: []int64{101}, Radius: 0.01, Limit: 10},
		},
		{
			name: "inside polygon",
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Polygon: polygon, UseClassTable: true, Limit: 10},
			want: []int64{300, 301},
		},
		{
			name: "ordered by near point",
			c:    search.NewConstraints(search.WithNearPoint(spatial.Point{Lat: -34.907, Lng: -56.191}, 0.1)),
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Parents: []int64{100}, Radius: 0.05, UseClassTable: true, Limit: 10},
			want: []int64{301, 300},
		},
		{
			name: "excluded",
			c:    search.NewConstraints(search.WithExcludedPlaces(300)),
			q:    search.AroundQuery{Class: "amenity", Type: "pub", Parents: []int64{100}, Radius: 0.05, UseClassTable: true, Limit: 10},
			want: []int64{301},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.PlacesAround(ctx, tt.c, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMostFrequentPostcode(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()

	postcode, ok, err := repo.MostFrequentPostcode(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "11200", postcode)

	// one each, the first child wins
	postcode, ok, err = repo.MostFrequentPostcode(ctx, 101)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "11400", postcode)

	_, ok, err = repo.MostFrequentPostcode(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	streets, err := repo.Streets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Street{
		{PlaceID: 100, Name: "Avenida 18 de Julio", CountryCode: "uy"},
		{PlaceID: 101, Name: "Bulevar Artigas", CountryCode: "uy"},
	}, streets)
}
