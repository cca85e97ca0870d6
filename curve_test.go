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
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ctessum/geom"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func distance(a, b geom.Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// quarterCircle returns n vertices on a counter-clockwise quarter circle of
// radius r centered on the origin.
func quarterCircle(r float64, n int) geom.LineString {
	l := make(geom.LineString, n)
	for i := range l {
		a := math.Pi / 2 * float64(i) / float64(n-1)
		l[i] = geom.Point{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return l
}

// meander returns an irregularly spaced sinuous channel.
func meander() geom.LineString {
	return geom.LineString{
		{X: 0, Y: 0}, {X: 12, Y: 30}, {X: 30, Y: 40}, {X: 50, Y: 20},
		{X: 60, Y: -10}, {X: 80, Y: -25}, {X: 100, Y: -5}, {X: 130, Y: 20},
	}
}

func TestFitEndpoints(t *testing.T) {
	l := meander()
	fitters := []CurveFitter{
		TensionSpline{Tension: 0},
		TensionSpline{Tension: 1},
		TensionSpline{Tension: DefaultTension},
		TensionSpline{Tension: 1000},
		LinearFit{},
	}
	for _, f := range fitters {
		t.Run(fmt.Sprintf("%#v", f), func(t *testing.T) {
			c, err := f.Fit(l, 51)
			if err != nil {
				t.Fatal(err)
			}
			if c.Len() != 51 || len(c.Phi) != 51 {
				t.Fatalf("have %d points and %d angles, want 51", c.Len(), len(c.Phi))
			}
			if d := distance(c.Points[0], l[0]); d > 1e-9 {
				t.Errorf("first point %v is %g from %v", c.Points[0], d, l[0])
			}
			if d := distance(c.Points[c.Len()-1], l[len(l)-1]); d > 1e-9 {
				t.Errorf("last point %v is %g from %v", c.Points[c.Len()-1], d, l[len(l)-1])
			}
			for i := 1; i < len(c.Phi); i++ {
				if math.Abs(c.Phi[i]-c.Phi[i-1]) > math.Pi/2 {
					t.Errorf("tangent jumps from %g to %g at %d", c.Phi[i-1], c.Phi[i], i)
				}
			}
		})
	}
}

func TestFitOddCount(t *testing.T) {
	l := geom.LineString{{X: 0, Y: 0}, {X: 100, Y: 0}}
	for _, nx := range []int{2, 3, 10, 11, 32, 33} {
		c, err := TensionSpline{Tension: DefaultTension}.Fit(l, nx)
		if err != nil {
			t.Fatal(err)
		}
		if want := Odd(nx); c.Len() != want {
			t.Errorf("nx=%d: have %d points, want %d", nx, c.Len(), want)
		}
	}
}

func TestFitStraightLine(t *testing.T) {
	l := geom.LineString{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 100, Y: 0}}
	for _, tension := range []float64{0, DefaultTension} {
		c, err := TensionSpline{Tension: tension}.Fit(l, 21)
		if err != nil {
			t.Fatal(err)
		}
		for i, p := range c.Points {
			if want := 5 * float64(i); math.Abs(p.X-want) > 1e-8 || math.Abs(p.Y) > 1e-10 {
				t.Errorf("tension %g point %d: have %v, want (%g, 0)", tension, i, p, want)
			}
			if math.Abs(c.Phi[i]) > 1e-10 {
				t.Errorf("tension %g point %d: angle %g should be 0", tension, i, c.Phi[i])
			}
		}
	}
}

func TestFitArcLength(t *testing.T) {
	const r = 100.
	c, err := TensionSpline{Tension: 0}.Fit(quarterCircle(r, 20), 51)
	if err != nil {
		t.Fatal(err)
	}
	want := distance(c.Points[0], c.Points[1])
	for i := 2; i < c.Len(); i++ {
		if have := distance(c.Points[i-1], c.Points[i]); different(have, want, 1e-3) {
			t.Errorf("segment %d: have length %g, want %g", i, have, want)
		}
	}
	// The middle sample of the symmetric arc lies on the diagonal with its
	// tangent perpendicular to it.
	mid := c.Points[25]
	if math.Abs(mid.X-mid.Y) > 1e-6 {
		t.Errorf("middle point %v is not on the diagonal", mid)
	}
	if different(math.Hypot(mid.X, mid.Y), r, 1e-3) {
		t.Errorf("middle point %v is not on the circle", mid)
	}
	if different(c.Phi[25], 3*math.Pi/4, 1e-6) {
		t.Errorf("middle tangent: have %g, want %g", c.Phi[25], 3*math.Pi/4)
	}
	if different(c.Phi[0], math.Pi/2, 0.05) || different(c.Phi[50], math.Pi, 0.05) {
		t.Errorf("end tangents: have %g and %g, want about %g and %g",
			c.Phi[0], c.Phi[50], math.Pi/2, math.Pi)
	}
}

func TestFitTension(t *testing.T) {
	// A right-angle bend. The relaxed spline overshoots the corner and
	// the taut spline stays close to the polyline.
	l := geom.LineString{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}}
	overshoot := func(f CurveFitter) float64 {
		c, err := f.Fit(l, 101)
		if err != nil {
			t.Fatal(err)
		}
		var o float64
		for _, p := range c.Points {
			o = math.Max(o, p.X-50)
		}
		return o
	}
	if o := overshoot(TensionSpline{Tension: 0}); o < 3 {
		t.Errorf("natural spline overshoot %g should be > 3", o)
	}
	if o := overshoot(TensionSpline{Tension: 100}); o > 0.5 {
		t.Errorf("taut spline overshoot %g should be < 0.5", o)
	}
	if o := overshoot(LinearFit{}); o > 1e-9 {
		t.Errorf("linear overshoot %g should be 0", o)
	}
}

func TestFitReversedDirection(t *testing.T) {
	l := geom.LineString{{X: 100, Y: 0}, {X: 0, Y: 0}}
	c, err := TensionSpline{Tension: DefaultTension}.Fit(l, 11)
	if err != nil {
		t.Fatal(err)
	}
	for i, phi := range c.Phi {
		if different(phi, math.Pi, 1e-12) {
			t.Errorf("point %d: angle %g should be π", i, phi)
		}
	}
}

func TestFitDegenerate(t *testing.T) {
	tests := []struct {
		name string
		l    geom.LineString
	}{
		{name: "empty"},
		{name: "single", l: geom.LineString{{X: 1, Y: 1}}},
		{name: "duplicate", l: geom.LineString{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
		{name: "nan", l: geom.LineString{{X: 1, Y: 1}, {X: math.NaN(), Y: 2}}},
	}
	for _, test := range tests {
		for _, f := range []CurveFitter{TensionSpline{Tension: DefaultTension}, LinearFit{}} {
			t.Run(test.name, func(t *testing.T) {
				_, err := f.Fit(test.l, 11)
				var de *DegenerateInputError
				if !errors.As(err, &de) {
					t.Errorf("have error %v, want DegenerateInputError", err)
				}
			})
		}
	}
}

func TestFitDuplicateVertices(t *testing.T) {
	l := geom.LineString{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 10}, {X: 20, Y: 0}}
	c, err := TensionSpline{Tension: DefaultTension}.Fit(l, 21)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range c.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(c.Phi[i]) {
			t.Fatalf("point %d is NaN", i)
		}
	}
}

func TestFitInvalid(t *testing.T) {
	l := geom.LineString{{X: 0, Y: 0}, {X: 100, Y: 0}}
	_, err := TensionSpline{Tension: DefaultTension}.Fit(l, 1)
	var ce *InvalidCountError
	if !errors.As(err, &ce) {
		t.Errorf("have error %v, want InvalidCountError", err)
	}
	if _, err := (TensionSpline{Tension: -1}).Fit(l, 11); err == nil {
		t.Error("negative tension should fail")
	}
}

func TestResampleCount(t *testing.T) {
	tests := []struct {
		length float64
		want   int
	}{
		{length: 0, want: 11},
		{length: 9.9, want: 11},
		{length: 10, want: 3},
		{length: 100, want: 33},
		{length: 1000, want: 333},
		{length: 1500, want: 501},
	}
	for _, test := range tests {
		if have := ResampleCount(test.length); have != test.want {
			t.Errorf("length %g: have %d, want %d", test.length, have, test.want)
		}
	}
}
