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
	"math"

	"github.com/ctessum/geom"
)

// Transect is an ordered line of cross-section sample points in a
// planar spatial reference.
type Transect struct {
	Points []geom.Point
}

// Len returns the number of points in the transect.
func (t *Transect) Len() int { return len(t.Points) }

// Center returns the middle point of the transect.
func (t *Transect) Center() geom.Point { return t.Points[(len(t.Points)-1)/2] }

// LineString returns the transect points as a line.
func (t *Transect) LineString() geom.LineString { return geom.LineString(t.Points) }

// Bounds returns the extent of the transect.
func (t *Transect) Bounds() *geom.Bounds { return t.LineString().Bounds() }

// NearestIndex returns the index of the point in pts closest to p. Ties go
// to the earliest point. It returns -1 if pts is empty.
func NearestIndex(p geom.Point, pts []geom.Point) int {
	index := -1
	minDist := math.Inf(1)
	for i, q := range pts {
		if d := math.Hypot(p.X-q.X, p.Y-q.Y); d < minDist {
			minDist = d
			index = i
		}
	}
	return index
}

// BuildTransect builds a cross-section of width centered on the point of
// curve nearest to ref and perpendicular to the curve's tangent there.
// ny is rounded up to an odd number. For a tangent angle φ the points
// run from the right of the direction of travel to the left, so for a
// curve traced in the downstream direction the first point is on river
// right.
func BuildTransect(ref geom.Point, curve *FittedCurve, width float64, ny int) (*Transect, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, &InvalidWidthError{Width: width}
	}
	if ny < 2 {
		return nil, &InvalidCountError{Name: "number of cross-section points", Count: ny}
	}
	if curve.Len() < 1 || len(curve.Phi) != len(curve.Points) {
		return nil, &DegenerateInputError{What: "fitted curve", Reason: "no resampled points"}
	}
	ny = Odd(ny)
	index := NearestIndex(ref, curve.Points)
	c := curve.Points[index]
	sin, cos := math.Sincos(curve.Phi[index])
	delta := width / float64(ny-1)
	nm := (ny + 1) / 2

	t := &Transect{Points: make([]geom.Point, ny)}
	for j := 0; j < ny; j++ {
		off := delta * float64(nm-j-1)
		t.Points[j] = geom.Point{X: c.X + off*sin, Y: c.Y - off*cos}
	}
	return t, nil
}

// SamplePath samples ny points (rounded up to an odd number) along the
// straight segment from start to end at spacing length/(ny-1), so that
// both endpoints are included; a spacing of length/ny would stop one step
// short of end. Sampling stops when either the segment length or the point
// budget is exhausted, so the result may be shorter than ny if rounding
// leaves the last step beyond the end of the segment.
func SamplePath(start, end geom.Point, ny int) (*Transect, error) {
	if ny < 2 {
		return nil, &InvalidCountError{Name: "number of cross-section points", Count: ny}
	}
	length := math.Hypot(end.X-start.X, end.Y-start.Y)
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return nil, &DegenerateInputError{What: "cross-section path", Reason: "start and end points must be distinct and finite"}
	}
	ny = Odd(ny)
	spacing := length / float64(ny-1)
	ux, uy := (end.X-start.X)/length, (end.Y-start.Y)/length
	// Allow for accumulated rounding in the final step.
	limit := length + spacing*1e-9

	t := &Transect{Points: make([]geom.Point, 0, ny)}
	for i, d := 0, 0.; d <= limit && i < ny; i, d = i+1, float64(i+1)*spacing {
		t.Points = append(t.Points, geom.Point{X: start.X + d*ux, Y: start.Y + d*uy})
	}
	t.Points[len(t.Points)-1] = end
	return t, nil
}
