// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

// CellResolution is the h3 resolution stored for every place centroid.
const CellResolution = 7

const (
	// lower bound of the distance between neighbouring res 7 cell centres
	minCellSpacing = 1200.0
	// a degree of latitude, the longest a planar degree gets
	metersPerDegree = 111320.0
	// beyond this ring size the prefilter stops being selective
	maxGridRing = 12
)

// Cell returns the h3 cell containing the point at CellResolution.
func Cell(p Point) (int64, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), CellResolution)
	if err != nil {
		return 0, fmt.Errorf("converting %s to h3 cell: %w", p, err)
	}

	return int64(cell), nil
}

// CellsWithin returns a set of cells covering every point that is at most
// radiusDeg planar degrees away from p. ok is false when the radius is too
// large for a cell list to be useful, in which case no cells are returned.
func CellsWithin(p Point, radiusDeg float64) (cells []int64, ok bool, err error) {
	k := int(math.Ceil(radiusDeg*metersPerDegree/minCellSpacing)) + 1
	if k > maxGridRing {
		return nil, false, nil
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), CellResolution)
	if err != nil {
		return nil, false, fmt.Errorf("converting %s to h3 cell: %w", p, err)
	}

	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, false, fmt.Errorf("computing grid disk around %s: %w", p, err)
	}

	cells = make([]int64, 0, len(disk))
	for _, c := range disk {
		cells = append(cells, int64(c))
	}

	return cells, true, nil
}
