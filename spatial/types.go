// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		p.Lat, p.Lng = 0, 0

		return nil
	}

	switch v := value.(type) {
	case []byte:
		return p.scanText(string(v))
	case string:
		return p.scanText(v)
	case map[string]interface{}:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.Lng = x
		p.Lat = y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}

// The format from DuckDB is "POINT (lng lat)"
func (p *Point) scanText(s string) error {
	_, err := fmt.Sscanf(s, "POINT (%f %f)", &p.Lng, &p.Lat)

	return err
}

// Validate checks that the coordinates are within the WGS84 range.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", p.Lat)
	}

	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", p.Lng)
	}

	return nil
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Viewbox is a lng/lat aligned rectangle.
type Viewbox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// NewViewbox builds a viewbox from two opposite corners given in any order.
func NewViewbox(lng1, lat1, lng2, lat2 float64) (Viewbox, error) {
	box := Viewbox{
		MinLng: math.Min(lng1, lng2),
		MinLat: math.Min(lat1, lat2),
		MaxLng: math.Max(lng1, lng2),
		MaxLat: math.Max(lat1, lat2),
	}

	if box.MinLng == box.MaxLng || box.MinLat == box.MaxLat {
		return Viewbox{}, errors.New("viewbox must not be degenerate")
	}

	for _, p := range []Point{{Lat: box.MinLat, Lng: box.MinLng}, {Lat: box.MaxLat, Lng: box.MaxLng}} {
		if err := p.Validate(); err != nil {
			return Viewbox{}, fmt.Errorf("invalid viewbox corner: %w", err)
		}
	}

	return box, nil
}

// ParseViewbox parses the "<x1>,<y1>,<x2>,<y2>" notation.
func ParseViewbox(s string) (Viewbox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Viewbox{}, fmt.Errorf("viewbox %q: expected 4 comma separated coordinates", s)
	}

	var coords [4]float64

	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Viewbox{}, fmt.Errorf("viewbox %q: %w", s, err)
		}

		coords[i] = f
	}

	return NewViewbox(coords[0], coords[1], coords[2], coords[3])
}

// Centre returns the centre point of the box.
func (b Viewbox) Centre() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// Scale returns a box with the same centre and each side multiplied by factor.
func (b Viewbox) Scale(factor float64) Viewbox {
	c := b.Centre()
	halfW := (b.MaxLng - b.MinLng) * factor / 2
	halfH := (b.MaxLat - b.MinLat) * factor / 2

	return Viewbox{
		MinLng: c.Lng - halfW,
		MinLat: c.Lat - halfH,
		MaxLng: c.Lng + halfW,
		MaxLat: c.Lat + halfH,
	}
}

// Contains reports whether the point lies inside or on the border of the box.
func (b Viewbox) Contains(p Point) bool {
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// String returns the WKT polygon of the box.
func (b Viewbox) String() string {
	return fmt.Sprintf("POLYGON((%f %f, %f %f, %f %f, %f %f, %f %f))",
		b.MinLng, b.MinLat,
		b.MaxLng, b.MinLat,
		b.MaxLng, b.MaxLat,
		b.MinLng, b.MaxLat,
		b.MinLng, b.MinLat,
	)
}
