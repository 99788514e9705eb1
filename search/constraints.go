// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"slices"
	"strings"

	"github.com/jcodagnone/geosearch/spatial"
)

// DefaultNearRadius is the radius, in degrees, used around a near point
// when the request does not give one.
const DefaultNearRadius = 0.1

// Constraints holds the request wide restrictions shared by every
// interpretation of a query. It is immutable once built and all methods
// accept a nil receiver, which behaves as an unconstrained request.
type Constraints struct {
	viewbox       *spatial.Viewbox
	largeViewbox  *spatial.Viewbox
	bounded       bool
	near          *spatial.Point
	nearRadius    float64
	countries     []string
	excluded      []int64
	fullNameTerms []int64
}

// ConstraintOption configures Constraints.
type ConstraintOption func(*Constraints)

// WithViewbox restricts (bounded) or biases (not bounded) results to a box.
func WithViewbox(box spatial.Viewbox, bounded bool) ConstraintOption {
	return func(c *Constraints) {
		large := box.Scale(2)
		c.viewbox = &box
		c.largeViewbox = &large
		c.bounded = bounded
	}
}

// WithNearPoint restricts results to radiusDeg around p. A non positive
// radius selects DefaultNearRadius.
func WithNearPoint(p spatial.Point, radiusDeg float64) ConstraintOption {
	return func(c *Constraints) {
		if radiusDeg <= 0 {
			radiusDeg = DefaultNearRadius
		}

		c.near = &p
		c.nearRadius = radiusDeg
	}
}

// WithCountries restricts results to the given ISO country codes.
func WithCountries(codes ...string) ConstraintOption {
	return func(c *Constraints) {
		for _, code := range codes {
			code = strings.ToLower(strings.TrimSpace(code))
			if code != "" && !slices.Contains(c.countries, code) {
				c.countries = append(c.countries, code)
			}
		}
	}
}

// WithExcludedPlaces drops the given place ids from every lookup.
func WithExcludedPlaces(ids ...int64) ConstraintOption {
	return func(c *Constraints) {
		c.excluded = sortedIDs(append(slices.Clone(c.excluded), ids...))
	}
}

// WithFullNameTerms sets the full word address terms used to count exact
// matches.
func WithFullNameTerms(ids ...int64) ConstraintOption {
	return func(c *Constraints) {
		c.fullNameTerms = sortedIDs(append(slices.Clone(c.fullNameTerms), ids...))
	}
}

// NewConstraints builds the constraints of a request.
func NewConstraints(opts ...ConstraintOption) *Constraints {
	c := &Constraints{}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HasNearPoint reports whether a near point was given.
func (c *Constraints) HasNearPoint() bool {
	return c != nil && c.near != nil
}

// NearPoint returns the near point, the zero point when there is none.
func (c *Constraints) NearPoint() spatial.Point {
	if !c.HasNearPoint() {
		return spatial.Point{}
	}

	return *c.near
}

// NearRadius returns the search radius around the near point in degrees.
func (c *Constraints) NearRadius() float64 {
	if !c.HasNearPoint() {
		return DefaultNearRadius
	}

	return c.nearRadius
}

// Viewbox returns the requested viewbox or nil.
func (c *Constraints) Viewbox() *spatial.Viewbox {
	if c == nil {
		return nil
	}

	return c.viewbox
}

// LargeViewbox returns the viewbox scaled by two around its centre, or nil.
func (c *Constraints) LargeViewbox() *spatial.Viewbox {
	if c == nil {
		return nil
	}

	return c.largeViewbox
}

// IsViewboxBounded reports whether results must lie inside the viewbox.
func (c *Constraints) IsViewboxBounded() bool {
	return c != nil && c.viewbox != nil && c.bounded
}

// IsBounded reports whether the request is restricted to an area.
func (c *Constraints) IsBounded() bool {
	return c.HasNearPoint() || c.IsViewboxBounded()
}

// Countries returns the allowed country codes, empty means any.
func (c *Constraints) Countries() []string {
	if c == nil {
		return nil
	}

	return slices.Clone(c.countries)
}

// IsCountryApplicable reports whether results in the country are allowed.
func (c *Constraints) IsCountryApplicable(code string) bool {
	if c == nil || len(c.countries) == 0 {
		return true
	}

	return slices.Contains(c.countries, strings.ToLower(code))
}

// ExcludedPlaces returns the sorted place ids that must not be returned.
func (c *Constraints) ExcludedPlaces() []int64 {
	if c == nil {
		return nil
	}

	return slices.Clone(c.excluded)
}

// IsExcluded reports whether the place id is excluded.
func (c *Constraints) IsExcluded(id int64) bool {
	if c == nil {
		return false
	}

	_, found := slices.BinarySearch(c.excluded, id)

	return found
}

// FullNameTerms returns the sorted full word address terms.
func (c *Constraints) FullNameTerms() []int64 {
	if c == nil {
		return nil
	}

	return slices.Clone(c.fullNameTerms)
}
