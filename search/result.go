// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"cmp"
	"fmt"
	"slices"
)

// DefaultAddressRank is the address rank of results that do not report one.
const DefaultAddressRank = 30

// Table identifies where a result was found.
type Table int

const (
	TablePlace Table = iota
	TablePostcode
	TableInterpolation
	TableCadastral
)

var tableNames = map[Table]string{
	TablePlace:         "place",
	TablePostcode:      "postcode",
	TableInterpolation: "interpolation",
	TableCadastral:     "cadastral",
}

func (t Table) String() string {
	if s, ok := tableNames[t]; ok {
		return s
	}

	return fmt.Sprintf("table(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Table) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Result is a place matched by an interpretation.
type Result struct {
	PlaceID      int64 `json:"place_id"`
	Table        Table `json:"table"`
	AddressRank  int   `json:"address_rank"`
	ResultRank   int   `json:"result_rank"`
	ExactMatches int   `json:"exact_matches"`
	HouseNumber  *int  `json:"house_number,omitempty"`
}

// NewResult returns a result with the default address rank.
func NewResult(id int64, table Table, rank int) Result {
	return Result{
		PlaceID:     id,
		Table:       table,
		AddressRank: DefaultAddressRank,
		ResultRank:  rank,
	}
}

type resultKey struct {
	table Table
	id    int64
}

func (r Result) key() resultKey {
	return resultKey{table: r.Table, id: r.PlaceID}
}

// resultSet keeps results unique per (table, place id) in discovery order.
type resultSet struct {
	order []resultKey
	items map[resultKey]Result
}

func newResultSet() *resultSet {
	return &resultSet{items: map[resultKey]Result{}}
}

// add inserts r. A result already present keeps its position and the lower
// of both result ranks.
func (s *resultSet) add(r Result) {
	k := r.key()

	prev, ok := s.items[k]
	if !ok {
		s.order = append(s.order, k)
		s.items[k] = r

		return
	}

	if r.ResultRank < prev.ResultRank {
		s.items[k] = r
	}
}

func (s *resultSet) merge(other *resultSet) {
	for _, r := range other.list() {
		s.add(r)
	}
}

func (s *resultSet) len() int {
	return len(s.order)
}

func (s *resultSet) list() []Result {
	out := make([]Result, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}

	return out
}

// placeIDs returns the ids of primary table results accepted by keep.
func (s *resultSet) placeIDs(keep func(Result) bool) []int64 {
	var ids []int64

	for _, k := range s.order {
		r := s.items[k]
		if k.table == TablePlace && (keep == nil || keep(r)) {
			ids = append(ids, r.PlaceID)
		}
	}

	return ids
}

func (s *resultSet) penalize(table Table, id int64, delta int) {
	k := resultKey{table: table, id: id}
	if r, ok := s.items[k]; ok {
		r.ResultRank += delta
		s.items[k] = r
	}
}

// ranked orders results by result rank, then exact matches, then discovery
// order, and cuts the list at limit.
func (s *resultSet) ranked(limit int) []Result {
	out := s.list()

	slices.SortStableFunc(out, func(a, b Result) int {
		if c := cmp.Compare(a.ResultRank, b.ResultRank); c != 0 {
			return c
		}

		return cmp.Compare(b.ExactMatches, a.ExactMatches)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}
