// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/spatial"
	"github.com/stretchr/testify/require"
)

func resultKeys(results []search.Result) []string {
	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = fmt.Sprintf("%s:%d@%d", r.Table, r.PlaceID, r.ResultRank)
		if r.HouseNumber != nil {
			keys[i] += fmt.Sprintf("#%d", *r.HouseNumber)
		}
	}

	return keys
}

func TestEngineOverRepository(t *testing.T) {
	_, repo := setupTestDB(t)
	seedFixture(t, repo)

	ctx := context.Background()
	require.NoError(t, repo.CreateClassTypeTable(ctx, "amenity", "pub"))

	street := search.NewDescription(nil).AddNameToken(1, false).AddAddressToken(2, true)
	near := search.NewConstraints(search.WithNearPoint(spatial.Point{Lat: -34.905, Lng: -56.185}, 0.05))

	tests := []struct {
		name      string
		d         search.Description
		cadastral bool
		want      []string
	}{
		{
			name: "house number",
			d:    street.SetHouseNumber("1234"),
			want: []string{"place:200@0", "place:100@1"},
		},
		{
			name: "interpolated house number",
			d:    street.SetHouseNumber("14"),
			want: []string{"interpolation:400@0#14", "place:100@1"},
		},
		{
			name: "parity mismatch",
			d:    street.SetHouseNumber("15"),
			want: []string{"place:100@1"},
		},
		{
			name:      "cadastral fallback",
			d:         street.SetHouseNumber("15"),
			cadastral: true,
			want:      []string{"cadastral:401@0#15", "place:100@1"},
		},
		{
			name: "postcode mismatch",
			d:    street.SetHouseNumber("1234").SetPostcode("11300"),
			want: []string{"place:200@1", "place:100@1"},
		},
		{
			name: "country",
			d:    search.NewDescription(nil).SetCountry("uy"),
			want: []string{"place:1@0"},
		},
		{
			name: "postcode",
			d:    search.NewDescription(nil).SetPostcodeAsName(999, "11200"),
			want: []string{"postcode:500@0"},
		},
		{
			name: "pubs nearby",
			d:    search.NewDescription(near).SetPoiSearch(search.OperatorNear, "amenity", "pub"),
			want: []string{"place:300@0", "place:301@0"},
		},
		{
			name: "pubs near a street",
			d:    street.SetPoiSearch(search.OperatorNear, "amenity", "pub"),
			want: []string{"place:300@0", "place:301@0"},
		},
		{
			name: "pubs in a country",
			d:    search.NewDescription(nil).AddNameToken(50, true).SetPoiSearch(search.OperatorNear, "amenity", "pub"),
			want: []string{"place:300@0", "place:301@0"},
		},
		{
			name: "pub by name",
			d:    search.NewDescription(nil).AddNameToken(4, true).SetPoiSearch(search.OperatorName, "amenity", "pub"),
			want: []string{"place:300@0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := search.NewEngine(repo, search.WithCadastralFallback(tt.cadastral))
			require.NoError(t, err)

			got, err := engine.Execute(ctx, tt.d, search.DefaultRankWindow, 10)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, resultKeys(got)); diff != "" {
				t.Errorf("results mismatch (-expected +got):\n%s", diff)
			}

			again, err := engine.Execute(ctx, tt.d, search.DefaultRankWindow, 10)
			require.NoError(t, err)

			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("second run differs (-first +second):\n%s", diff)
			}
		})
	}
}
