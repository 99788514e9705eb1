// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type fakePlace struct {
	id          int64
	parent      int64
	class       string
	typ         string
	searchRank  int
	houseNumber string
	postcode    string
	polygon     string
}

type fakeInterpolation struct {
	id     int64
	parent int64
	start  int
	end    int
	parity Parity
}

// fakeStore is an in memory Store. Named place lookups are keyed by the
// first name token of the query.
type fakeStore struct {
	mu sync.Mutex

	countries      map[string]int64
	classTables    map[string]bool
	nearby         map[bool][]int64
	postcodes      map[string][]int64
	named          map[int64][]NamedPlace
	places         map[int64]fakePlace
	interpolations map[Table][]fakeInterpolation
	around         []int64
	failNames      map[int64]error

	calls         []string
	namedQueries  []NamedPlaceQuery
	aroundQueries []AroundQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		countries:      map[string]int64{},
		classTables:    map[string]bool{},
		nearby:         map[bool][]int64{},
		postcodes:      map[string][]int64{},
		named:          map[int64][]NamedPlace{},
		places:         map[int64]fakePlace{},
		interpolations: map[Table][]fakeInterpolation{},
		failNames:      map[int64]error{},
	}
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
}

func (s *fakeStore) called(call string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Contains(s.calls, call)
}

// namedLookups counts the named place lookups whose first name token is
// token.
func (s *fakeStore) namedLookups(token int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, q := range s.namedQueries {
		if len(q.NameTokens) > 0 && q.NameTokens[0] == token {
			n++
		}
	}

	return n
}

func without(c *Constraints, ids []int64) []int64 {
	var out []int64

	for _, id := range ids {
		if !c.IsExcluded(id) {
			out = append(out, id)
		}
	}

	return out
}

func limited(ids []int64, limit int) []int64 {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}

	return ids
}

func (s *fakeStore) LargestCountry(_ context.Context, _ *Constraints, code string) (int64, bool, error) {
	s.record("LargestCountry")

	id, ok := s.countries[code]

	return id, ok, nil
}

func (s *fakeStore) HasClassTable(_ context.Context, class, typ string) (bool, error) {
	s.record("HasClassTable")

	return s.classTables[class+"_"+typ], nil
}

func (s *fakeStore) NearbyPlaces(_ context.Context, c *Constraints, q NearbyQuery) ([]int64, error) {
	s.record(fmt.Sprintf("NearbyPlaces(table=%t)", q.UseClassTable))

	return limited(without(c, s.nearby[q.UseClassTable]), q.Limit), nil
}

func (s *fakeStore) Postcodes(_ context.Context, c *Constraints, q PostcodeQuery) ([]int64, error) {
	s.record("Postcodes")

	return limited(without(c, s.postcodes[q.Postcode]), q.Limit), nil
}

func (s *fakeStore) NamedPlaces(_ context.Context, c *Constraints, q NamedPlaceQuery) ([]NamedPlace, error) {
	s.record("NamedPlaces")

	s.mu.Lock()
	s.namedQueries = append(s.namedQueries, q)
	s.mu.Unlock()

	if len(q.NameTokens) == 0 {
		return nil, nil
	}

	if err := s.failNames[q.NameTokens[0]]; err != nil {
		return nil, err
	}

	var out []NamedPlace

	for _, row := range s.named[q.NameTokens[0]] {
		if !c.IsExcluded(row.PlaceID) {
			out = append(out, row)
		}
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

func (s *fakeStore) HouseNumbers(_ context.Context, c *Constraints, q HouseNumberQuery) ([]int64, error) {
	s.record("HouseNumbers")

	var out []int64

	for _, id := range sortedKeys(s.places) {
		p := s.places[id]
		if p.houseNumber != q.HouseNumber {
			continue
		}

		if slices.Contains(q.Roads, p.parent) || slices.Contains(q.POIs, p.id) {
			out = append(out, p.id)
		}
	}

	return without(c, out), nil
}

func (s *fakeStore) Interpolations(_ context.Context, c *Constraints, q InterpolationQuery) ([]int64, error) {
	s.record("Interpolations(" + q.Table.String() + ")")

	var out []int64

	for _, line := range s.interpolations[q.Table] {
		if !slices.Contains(q.Roads, line.parent) {
			continue
		}

		if line.parity != q.Parity && line.parity != ParityAll {
			continue
		}

		if q.HouseNumber >= line.start && q.HouseNumber <= line.end {
			out = append(out, line.id)
		}
	}

	return without(c, out), nil
}

func (s *fakeStore) FilterByClass(_ context.Context, c *Constraints, ids []int64, class, typ string, limit int) ([]int64, error) {
	s.record("FilterByClass")

	var out []int64

	for _, id := range ids {
		if p, ok := s.places[id]; ok && p.class == class && p.typ == typ {
			out = append(out, id)
		}
	}

	return limited(without(c, out), limit), nil
}

func (s *fakeStore) MinSearchRank(_ context.Context, ids []int64) (int, bool, error) {
	s.record("MinSearchRank")

	found := false
	minRank := 0

	for _, id := range ids {
		if p, ok := s.places[id]; ok && (!found || p.searchRank < minRank) {
			minRank = p.searchRank
			found = true
		}
	}

	return minRank, found, nil
}

func (s *fakeStore) BoundingPolygon(_ context.Context, ids []int64, maxRank int) (string, bool, error) {
	s.record("BoundingPolygon")

	for _, id := range ids {
		if p, ok := s.places[id]; ok && p.searchRank < maxRank && p.polygon != "" {
			return p.polygon, true, nil
		}
	}

	return "", false, nil
}

func (s *fakeStore) FilterBySearchRank(_ context.Context, ids []int64, maxRank int) ([]int64, error) {
	s.record("FilterBySearchRank")

	var out []int64

	for _, id := range ids {
		if p, ok := s.places[id]; ok && p.searchRank < maxRank {
			out = append(out, id)
		}
	}

	return out, nil
}

func (s *fakeStore) PlacesAround(_ context.Context, c *Constraints, q AroundQuery) ([]int64, error) {
	s.record("PlacesAround")

	s.mu.Lock()
	s.aroundQueries = append(s.aroundQueries, q)
	s.mu.Unlock()

	return limited(without(c, s.around), q.Limit), nil
}

func (s *fakeStore) PostcodeMismatches(_ context.Context, ids []int64, postcode string) ([]int64, error) {
	s.record("PostcodeMismatches")

	var out []int64

	for _, id := range ids {
		if p, ok := s.places[id]; ok && p.postcode != postcode {
			out = append(out, id)
		}
	}

	return out, nil
}

func sortedKeys(m map[int64]fakePlace) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
