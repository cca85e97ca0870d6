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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// planeSource is an ElevationSource returning planar terrain.
type planeSource struct {
	bounds *geom.Bounds // the most recently requested bounds
	empty  bool
	none   bool // return no grid and no error
}

func (s *planeSource) Elevation(ctx context.Context, b *geom.Bounds, res Resolution, sr *proj.SR) (*Grid, error) {
	s.bounds = b.Copy()
	if s.none {
		return nil, nil
	}
	g := planeGrid(b, res.Meters())
	if s.empty {
		g = NewGrid(g.Origin, g.DX, g.DY, 2, 2, g.NoData)
	}
	g.Resolution = res
	return g, nil
}

// mercatorTransect returns a transect built in web mercator coordinates
// across a channel near longitude -103.8, latitude 40.27.
func mercatorTransect(t *testing.T) *Transect {
	pts, err := Project(geom.LineString{{X: -103.802, Y: 40.268}, {X: -103.800, Y: 40.2687}}, WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	c, err := TensionSpline{Tension: DefaultTension}.Fit(pts, ResampleCount(lineLength(pts)))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := BuildTransect(c.Points[c.Len()/2], c, 500, 101)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestAssemble(t *testing.T) {
	tr := mercatorTransect(t)
	src := new(planeSource)
	p, err := Assemble(context.Background(), tr, src, Res10m, WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != tr.Len() {
		t.Fatalf("have %d points, want %d", p.Len(), tr.Len())
	}
	if p.Points[0].Distance != 0 {
		t.Errorf("first distance %g should be 0", p.Points[0].Distance)
	}
	for i, pp := range p.Points {
		if pp.Point != tr.Points[i] {
			t.Errorf("point %d moved from %v to %v", i, tr.Points[i], pp.Point)
		}
		if want := plane(pp.Point); different(pp.Elevation, want, 1e-9) {
			t.Errorf("point %d: elevation %g, want %g", i, pp.Elevation, want)
		}
		if i > 0 && pp.Distance < p.Points[i-1].Distance {
			t.Errorf("distance decreases at %d: %g < %g", i, pp.Distance, p.Points[i-1].Distance)
		}
	}
	if last := p.Points[p.Len()-1].Distance; different(last, 500, 1e-9) {
		t.Errorf("last distance %g should be the transect width", last)
	}

	b := tr.Bounds()
	if src.bounds.Min.X != b.Min.X-DefaultPadding || src.bounds.Max.Y != b.Max.Y+DefaultPadding {
		t.Errorf("requested bounds %v are not %v padded by %g", src.bounds, b, DefaultPadding)
	}
}

func TestAssembleOptions(t *testing.T) {
	tr := mercatorTransect(t)
	src := new(planeSource)
	p, err := Assemble(context.Background(), tr, src, Res30m, WebMercator(), Padding(250), WithInterpolation(Nearest))
	if err != nil {
		t.Fatal(err)
	}
	b := tr.Bounds()
	if src.bounds.Min.Y != b.Min.Y-250 {
		t.Errorf("requested bounds %v are not %v padded by 250", src.bounds, b)
	}
	// The nearest cell center is at most half a cell away in each direction.
	for i, pp := range p.Points {
		if math.Abs(pp.Elevation-plane(pp.Point)) > (2+3)*15+1e-3 {
			t.Errorf("point %d: elevation %g too far from %g", i, pp.Elevation, plane(pp.Point))
		}
	}
}

func TestAssembleErrors(t *testing.T) {
	tr := mercatorTransect(t)

	_, err := Assemble(context.Background(), tr, &planeSource{empty: true}, Res10m, WebMercator())
	var ce *CoverageMissingError
	if !errors.As(err, &ce) {
		t.Errorf("have error %v, want CoverageMissingError", err)
	}
	_, err = Assemble(context.Background(), tr, &planeSource{none: true}, Res10m, WebMercator())
	if !errors.As(err, &ce) {
		t.Errorf("no grid: have error %v, want CoverageMissingError", err)
	}

	// Without padding the outermost points are outside the cell centers.
	_, err = Assemble(context.Background(), tr, new(planeSource), Res30m, WebMercator(), Padding(0))
	var oe *OutOfBoundsError
	if !errors.As(err, &oe) {
		t.Errorf("have error %v, want OutOfBoundsError", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := new(planeSource)
	if _, err = Assemble(ctx, tr, src, Res10m, WebMercator()); !errors.Is(err, context.Canceled) {
		t.Errorf("have error %v, want context.Canceled", err)
	}
	if src.bounds != nil {
		t.Error("elevation should not be requested after cancellation")
	}

	var de *DegenerateInputError
	if _, err = Assemble(context.Background(), &Transect{}, src, Res10m, WebMercator()); !errors.As(err, &de) {
		t.Errorf("have error %v, want DegenerateInputError", err)
	}
}

func TestProfileReproject(t *testing.T) {
	p, err := Assemble(context.Background(), mercatorTransect(t), new(planeSource), Res10m, WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	ll, err := p.Reproject(LongLat())
	if err != nil {
		t.Fatal(err)
	}
	for i, pp := range ll.Points {
		if pp.X < -103.81 || pp.X > -103.79 || pp.Y < 40.26 || pp.Y > 40.28 {
			t.Errorf("point %d: %v is not near the channel", i, pp.Point)
		}
		if pp.Elevation != p.Points[i].Elevation || pp.Distance != p.Points[i].Distance {
			t.Errorf("point %d: attributes changed", i)
		}
	}
	back, err := ll.Reproject(WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	for i, pp := range back.Points {
		if d := distance(pp.Point, p.Points[i].Point); d > 0.01 {
			t.Errorf("point %d: round trip moved %g m", i, d)
		}
	}
	if p.SR == ll.SR {
		t.Error("the original profile should not be modified")
	}
}

func TestProfileGeoJSON(t *testing.T) {
	p := &Profile{Points: []ProfilePoint{
		{Point: geom.Point{X: -103.8, Y: 40.2}, Elevation: 1300.5, Distance: 0},
		{Point: geom.Point{X: -103.7, Y: 40.2}, Elevation: 1301, Distance: 10},
	}}
	var b bytes.Buffer
	if err := p.EncodeGeoJSON(&b); err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string
		Features []struct {
			Type       string
			Properties map[string]float64
			Geometry   struct {
				Type        string
				Coordinates []float64
			}
		}
	}
	if err := json.Unmarshal(b.Bytes(), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected output %s", b.String())
	}
	f := fc.Features[1]
	if f.Geometry.Type != "Point" || f.Geometry.Coordinates[0] != -103.7 || f.Properties["elevation"] != 1301 || f.Properties["distance"] != 10 {
		t.Errorf("unexpected feature %+v", f)
	}
}

func TestProfilePlot(t *testing.T) {
	p, err := Assemble(context.Background(), mercatorTransect(t), new(planeSource), Res10m, WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := p.Plot(&b, "test", "png"); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG image")
	}
	if err := new(Profile).Plot(&b, "", "png"); err == nil {
		t.Error("plotting an empty profile should fail")
	}
}
