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


package xsutil

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/xstool"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// fakeCenterlines returns a straight north-flowing stream along the
// -103.8° meridian for points west of 0° and fails otherwise.
type fakeCenterlines struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCenterlines) Centerline(ctx context.Context, p geom.Point) (string, geom.LineString, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if p.X > 0 {
		return "", nil, &xstool.LookupFailedError{Query: "COMID"}
	}
	return "2889214", geom.LineString{{X: -103.8, Y: 40.26}, {X: -103.8, Y: 40.27}, {X: -103.8, Y: 40.28}}, nil
}

// x0 is near the web mercator x coordinate of -103.8°.
const x0 = -11554000.

// planeSource returns grids with 5 m cells and elevation 100 + 0.5(x-x0).
type planeSource struct {
	mu  sync.Mutex
	res []xstool.Resolution
}

func (s *planeSource) Elevation(ctx context.Context, b *geom.Bounds, res xstool.Resolution, sr *proj.SR) (*xstool.Grid, error) {
	s.mu.Lock()
	s.res = append(s.res, res)
	s.mu.Unlock()
	const cell = 5.
	cols := int(math.Ceil((b.Max.X-b.Min.X)/cell)) + 1
	rows := int(math.Ceil((b.Max.Y-b.Min.Y)/cell)) + 1
	g := xstool.NewGrid(geom.Point{X: b.Min.X - cell/2, Y: b.Max.Y + cell/2}, cell, cell, rows, cols, -9999)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := g.CellCenter(i, j)
			g.Data.Set(i, j, 100+0.5*(p.X-x0))
		}
	}
	return g, nil
}

func testPipeline() (*Pipeline, *fakeCenterlines, *planeSource) {
	c, e := new(fakeCenterlines), new(planeSource)
	return &Pipeline{Centerlines: c, Elevation: e, Resolution: xstool.Res10m}, c, e
}

func TestXSAtPoint(t *testing.T) {
	p, _, _ := testPipeline()
	r, err := p.XSAtPoint(context.Background(), geom.Point{X: -103.8001, Y: 40.27}, 100, 10, xstool.LongLat())
	if err != nil {
		t.Fatal(err)
	}
	if r.COMID != "2889214" {
		t.Errorf("comid: have %s, want 2889214", r.COMID)
	}
	prof := r.Profile
	if prof.Len() != 11 {
		t.Fatalf("have %d points, want 11", prof.Len())
	}
	last := prof.Points[prof.Len()-1]
	if different(last.Distance, 100, 1e-9) {
		t.Errorf("width: have %g, want 100", last.Distance)
	}
	for i, pt := range prof.Points {
		if math.Abs(pt.Y-40.27) > 1e-3 || math.Abs(pt.X+103.8) > 1e-3 {
			t.Errorf("point %d at %v is not near the reference point", i, pt.Point)
		}
		// The stream flows north so the transect runs from east to west.
		want := prof.Points[0].Elevation - 0.5*pt.Distance
		if math.Abs(pt.Elevation-want) > 1e-6 {
			t.Errorf("point %d: elevation %g, want %g", i, pt.Elevation, want)
		}
	}
	if !(prof.Points[0].X > last.X) {
		t.Errorf("first point %v should be east of last point %v", prof.Points[0].Point, last.Point)
	}
	if r.Transect.Len() != 11 || r.Curve.Len() < 2 {
		t.Errorf("have %d transect and %d curve points", r.Transect.Len(), r.Curve.Len())
	}
	fc, err := r.FeatureCollection()
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("have %d debug features, want 2", len(fc.Features))
	}
}

func TestXSAtPointErrors(t *testing.T) {
	p, c, _ := testPipeline()
	ctx := context.Background()

	var we *xstool.InvalidWidthError
	if _, err := p.XSAtPoint(ctx, geom.Point{X: -103.8, Y: 40.27}, 0, 11, xstool.LongLat()); !errors.As(err, &we) {
		t.Errorf("width 0: have error %v, want InvalidWidthError", err)
	}
	var ce *xstool.InvalidCountError
	if _, err := p.XSAtPoint(ctx, geom.Point{X: -103.8, Y: 40.27}, 100, 1, xstool.LongLat()); !errors.As(err, &ce) {
		t.Errorf("numpts 1: have error %v, want InvalidCountError", err)
	}
	if _, err := p.XSAtPoint(ctx, geom.Point{X: -103.8, Y: 40.27}, 100, MaxPoints+1, xstool.LongLat()); !errors.As(err, &ce) {
		t.Errorf("numpts %d: have error %v, want InvalidCountError", MaxPoints+1, err)
	}
	if _, err := p.XSAtEndpoints(ctx, geom.Point{X: -103.801, Y: 40.27}, geom.Point{X: -103.8, Y: 40.27}, 1000000000, xstool.LongLat(), xstool.LongLat()); !errors.As(err, &ce) {
		t.Errorf("numpts 1e9: have error %v, want InvalidCountError", err)
	}
	if c.calls != 0 {
		t.Errorf("invalid requests made %d centerline calls", c.calls)
	}
	var le *xstool.LookupFailedError
	if _, err := p.XSAtPoint(ctx, geom.Point{X: 10, Y: 40}, 100, 11, xstool.LongLat()); !errors.As(err, &le) {
		t.Errorf("have error %v, want LookupFailedError", err)
	}
}

func TestXSAtEndpoints(t *testing.T) {
	p, _, e := testPipeline()
	start, end := geom.Point{X: -103.801, Y: 40.27}, geom.Point{X: -103.800, Y: 40.27}
	prof, err := p.XSAtEndpoints(context.Background(), start, end, 11, xstool.LongLat(), xstool.LongLat())
	if err != nil {
		t.Fatal(err)
	}
	if prof.Len() != 11 {
		t.Fatalf("have %d points, want 11", prof.Len())
	}
	first, last := prof.Points[0], prof.Points[prof.Len()-1]
	if math.Abs(first.X-start.X) > 1e-9 || math.Abs(first.Y-start.Y) > 1e-9 {
		t.Errorf("first point: have %v, want %v", first.Point, start)
	}
	if math.Abs(last.X-end.X) > 1e-9 || math.Abs(last.Y-end.Y) > 1e-9 {
		t.Errorf("last point: have %v, want %v", last.Point, end)
	}
	// 0.001° of longitude on the web mercator sphere.
	length := 6378137 * math.Pi / 180 * 0.001
	if different(last.Distance, length, 1e-6) {
		t.Errorf("length: have %g, want %g", last.Distance, length)
	}
	for i, pt := range prof.Points {
		if i > 0 && !(pt.Distance > prof.Points[i-1].Distance) {
			t.Errorf("distance does not increase at point %d", i)
		}
		want := first.Elevation + 0.5*pt.Distance
		if math.Abs(pt.Elevation-want) > 1e-6 {
			t.Errorf("point %d: elevation %g, want %g", i, pt.Elevation, want)
		}
	}
	if len(e.res) != 1 || e.res[0] != xstool.Res10m {
		t.Errorf("elevation requests: %v", e.res)
	}

	var de *xstool.DegenerateInputError
	if _, err := p.XSAtEndpoints(context.Background(), start, start, 11, xstool.LongLat(), xstool.LongLat()); !errors.As(err, &de) {
		t.Errorf("have error %v, want DegenerateInputError", err)
	}
}
