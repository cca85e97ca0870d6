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
	"math"
	"sort"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

// DefaultTension is the spline tension used when none is specified.
const DefaultTension = 10.0

// CurveFitter fits a curve through a centerline and resamples it at
// nx points spaced uniformly in arc length.
type CurveFitter interface {
	Fit(centerline geom.LineString, nx int) (*FittedCurve, error)
}

// FittedCurve is a centerline that has been fitted and resampled.
// Points has an odd number of elements and Phi[i] is the tangent angle
// at Points[i] in radians, counter-clockwise from the +X axis.
type FittedCurve struct {
	Points []geom.Point
	Phi    []float64
}

// Len returns the number of resampled points.
func (c *FittedCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// LineString returns the resampled points as a line.
func (c *FittedCurve) LineString() geom.LineString {
	return geom.LineString(c.Points)
}

// TensionSpline fits a parametric tension spline through the centerline
// vertices, parametrized by cumulative chord length. A Tension of zero gives
// a natural cubic spline; as Tension increases the curve approaches the
// polyline through the vertices. Tension is scaled internally by the
// number of intervals divided by the centerline length, so it does not
// depend on the units of the coordinates.
type TensionSpline struct {
	Tension float64
}

// Fit implements CurveFitter.
func (ts TensionSpline) Fit(centerline geom.LineString, nx int) (*FittedCurve, error) {
	if ts.Tension < 0 || math.IsNaN(ts.Tension) || math.IsInf(ts.Tension, 0) {
		return nil, fmt.Errorf("xstool: spline tension must be finite and >= 0 but is %g", ts.Tension)
	}
	if nx < 2 {
		return nil, &InvalidCountError{Name: "number of resampled centerline points", Count: nx}
	}
	pts, err := distinctVertices(centerline)
	if err != nil {
		return nil, err
	}
	sp, err := newSpline2D(pts, ts.Tension)
	if err != nil {
		return nil, err
	}
	return sp.resample(Odd(nx)), nil
}

// LinearFit resamples the centerline polyline itself without smoothing.
// It is the limit of TensionSpline as the tension grows without bound.
type LinearFit struct{}

// Fit implements CurveFitter.
func (LinearFit) Fit(centerline geom.LineString, nx int) (*FittedCurve, error) {
	if nx < 2 {
		return nil, &InvalidCountError{Name: "number of resampled centerline points", Count: nx}
	}
	pts, err := distinctVertices(centerline)
	if err != nil {
		return nil, err
	}
	nx = Odd(nx)
	s := chordLengths(pts)
	total := s[len(s)-1]
	c := &FittedCurve{Points: make([]geom.Point, nx), Phi: make([]float64, nx)}
	for k := 0; k < nx; k++ {
		a := total * float64(k) / float64(nx-1)
		i := interval(s, a)
		t := (a - s[i]) / (s[i+1] - s[i])
		p0, p1 := pts[i], pts[i+1]
		c.Points[k] = geom.Point{X: p0.X + t*(p1.X-p0.X), Y: p0.Y + t*(p1.Y-p0.Y)}
		c.Phi[k] = math.Atan2(p1.Y-p0.Y, p1.X-p0.X)
	}
	c.Points[0], c.Points[nx-1] = pts[0], pts[len(pts)-1]
	unwrap(c.Phi)
	return c, nil
}

// distinctVertices returns the centerline with consecutive duplicate
// vertices removed, which would otherwise make the spline system singular.
func distinctVertices(l geom.LineString) ([]geom.Point, error) {
	for _, p := range l {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, &DegenerateInputError{What: "centerline", Reason: "contains non-finite coordinates"}
		}
	}
	total := lineLength(l)
	if len(l) < 2 || total == 0 {
		return nil, &DegenerateInputError{What: "centerline", Reason: "fewer than 2 distinct vertices or zero length"}
	}
	tol := total * 1e-12
	o := []geom.Point{l[0]}
	for _, p := range l[1:] {
		q := o[len(o)-1]
		if math.Hypot(p.X-q.X, p.Y-q.Y) > tol {
			o = append(o, p)
		}
	}
	if len(o) < 2 {
		return nil, &DegenerateInputError{What: "centerline", Reason: "fewer than 2 distinct vertices"}
	}
	return o, nil
}

// chordLengths returns the cumulative chord length at each vertex.
func chordLengths(pts []geom.Point) []float64 {
	d := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		d[i] = math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	return floats.CumSum(d, d)
}

// interval returns the index i of the knot interval [s[i], s[i+1]]
// containing v, clamped to the valid range.
func interval(s []float64, v float64) int {
	i := sort.SearchFloat64s(s, v) - 1
	if i < 0 {
		i = 0
	}
	if i > len(s)-2 {
		i = len(s) - 2
	}
	return i
}

// unwrap removes jumps larger than π between successive angles.
func unwrap(phi []float64) {
	for i := 1; i < len(phi); i++ {
		for phi[i]-phi[i-1] > math.Pi {
			phi[i] -= 2 * math.Pi
		}
		for phi[i]-phi[i-1] < -math.Pi {
			phi[i] += 2 * math.Pi
		}
	}
}
