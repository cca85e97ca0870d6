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

// Package xstool builds topographic cross-sections across river channels.
//
// A cross-section is built in a planar (projected) spatial reference in one
// of two ways. In point mode a smoothing curve is fitted through a stream
// centerline, the curve sample nearest a reference point is located, and a
// line of points is laid out perpendicular to the local tangent. In endpoint
// mode the points are sampled directly along the segment between two
// user-chosen endpoints. In both cases the resulting Transect is joined to
// an elevation raster to produce a Profile of elevation versus distance.
//
// The network services that provide centerlines and elevation rasters live
// in the nldi and dem sub-packages; this package only depends on the
// CenterlineSource and ElevationSource interfaces.
package xstool

import (
	"context"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Version gives the version number.
const Version = "0.2.0"

// CenterlineSource is a stream-network lookup service that maps a
// location to a channel and returns the channel's centerline.
type CenterlineSource interface {
	// Centerline returns the identifier and centerline geometry of the
	// channel nearest to the longitude-latitude point p. The geometry is
	// in longitude-latitude coordinates.
	Centerline(ctx context.Context, p geom.Point) (id string, line geom.LineString, err error)
}

// Odd returns n if n is odd and n+1 otherwise, so that a set of
// n samples always has a unique center sample.
func Odd(n int) int {
	if n%2 == 0 {
		return n + 1
	}
	return n
}

// ResampleCount returns the number of resampled points to use for a fitted
// centerline of the given length: 10 for lines shorter than 10 units and
// one point every 3 units otherwise, rounded up to an odd number.
func ResampleCount(length float64) int {
	nx := 10
	if length >= 10 {
		nx = int(length / 3)
	}
	return Odd(nx)
}

// lineLength returns the length of the polyline through pts.
func lineLength(pts []geom.Point) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	return l
}

// Project transforms the longitude-latitude line l into the spatial
// reference sr.
func Project(l geom.LineString, sr *proj.SR) (geom.LineString, error) {
	return transformPoints(l, LongLat(), sr)
}

// transformPoints transforms each point individually from src to dst.
func transformPoints(pts []geom.Point, src, dst *proj.SR) ([]geom.Point, error) {
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, err
	}
	o := make([]geom.Point, len(pts))
	for i, p := range pts {
		g, err := p.Transform(t)
		if err != nil {
			return nil, err
		}
		o[i] = g.(geom.Point)
	}
	return o, nil
}
