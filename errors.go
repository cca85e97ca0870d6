/*
Copyright © 2021 the xstool authors.
This file is part of xstool.

xstool is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xstool is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xstool.  If not, see <http://www.gnu.org/licenses/>.
*/

package xstool

import (
	"fmt"

	"github.com/ctessum/geom"
)

// DegenerateInputError is returned when input geometry has too few distinct
// points or zero length.
type DegenerateInputError struct {
	What   string // the geometry that was degenerate
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("xstool: degenerate %s: %s", e.What, e.Reason)
}

// InvalidWidthError is returned when a non-positive transect width is requested.
type InvalidWidthError struct {
	Width float64
}

func (e *InvalidWidthError) Error() string {
	return fmt.Sprintf("xstool: cross-section width must be > 0 but is %g", e.Width)
}

// InvalidCountError is returned when a point count is too small to build a
// cross-section, or larger than Max when Max is set.
type InvalidCountError struct {
	Name  string
	Count int
	Max   int
}

func (e *InvalidCountError) Error() string {
	if e.Max > 0 && e.Count > e.Max {
		return fmt.Sprintf("xstool: %s must be at most %d but is %d", e.Name, e.Max, e.Count)
	}
	return fmt.Sprintf("xstool: %s must be at least 2 but is %d", e.Name, e.Count)
}

// LookupFailedError is returned when a centerline lookup service finds no
// channel for a location or identifier.
type LookupFailedError struct {
	Query string
	Err   error
}

func (e *LookupFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xstool: lookup of %s failed: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("xstool: lookup of %s returned no match", e.Query)
}

func (e *LookupFailedError) Unwrap() error { return e.Err }

// CoverageMissingError is returned when no elevation data exists at the
// requested resolution and extent.
type CoverageMissingError struct {
	Resolution Resolution
	Bounds     *geom.Bounds
}

func (e *CoverageMissingError) Error() string {
	if e.Bounds == nil {
		return fmt.Sprintf("xstool: no elevation coverage at %v", e.Resolution)
	}
	return fmt.Sprintf("xstool: no elevation coverage at %v within (%g, %g)-(%g, %g)",
		e.Resolution, e.Bounds.Min.X, e.Bounds.Min.Y, e.Bounds.Max.X, e.Bounds.Max.Y)
}

// OutOfBoundsError is returned when a point falls outside the interpolation
// domain of a raster.
type OutOfBoundsError struct {
	Point geom.Point
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("xstool: point (%g, %g) is outside of the elevation raster", e.Point.X, e.Point.Y)
}
