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
	"io"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
	"github.com/spatialmodel/xstool/dem"
)

// Pipeline builds cross-sections from a centerline service and an
// elevation service. Its fields are read-only once it is in use, so a
// Pipeline may be shared by concurrent requests.
type Pipeline struct {
	Centerlines xstool.CenterlineSource
	Elevation   xstool.ElevationSource

	// Fitter fits centerlines. If nil a tension spline with
	// xstool.DefaultTension is used.
	Fitter xstool.CurveFitter

	// SR is the planar spatial reference cross-sections are built in.
	// If nil web mercator is used.
	SR *proj.SR

	Resolution    xstool.Resolution
	Interpolation xstool.Interpolation

	// Padding is added around transects when requesting elevation. If it
	// is zero xstool.DefaultPadding is used.
	Padding float64

	Log logrus.FieldLogger
}

// PointResult is a cross-section built from a point near a stream.
type PointResult struct {
	// COMID identifies the stream segment the cross-section crosses.
	COMID string

	// Curve and Transect are in the planar spatial reference of the pipeline.
	Curve    *xstool.FittedCurve
	Transect *xstool.Transect

	// Profile is in the requested output spatial reference.
	Profile *xstool.Profile
}

// FeatureCollection returns the fitted centerline and the transect of r as
// LineString features named "centerline" and "transect".
func (r *PointResult) FeatureCollection() (*xstool.FeatureCollection, error) {
	fc := &xstool.FeatureCollection{Type: "FeatureCollection"}
	for _, f := range []struct {
		name string
		l    geom.LineString
	}{
		{name: "centerline", l: r.Curve.LineString()},
		{name: "transect", l: r.Transect.LineString()},
	} {
		g, err := geojson.ToGeoJSON(f.l)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &xstool.Feature{
			ID:         f.name,
			Type:       "Feature",
			Properties: map[string]interface{}{"name": f.name, "comid": r.COMID},
			Geometry:   g,
		})
	}
	return fc, nil
}

var discard = &logrus.Logger{Out: io.Discard, Formatter: new(logrus.TextFormatter), Hooks: make(logrus.LevelHooks)}

func (p *Pipeline) log() logrus.FieldLogger {
	if p.Log == nil {
		return discard
	}
	return p.Log
}

func (p *Pipeline) sr() *proj.SR {
	if p.SR == nil {
		return xstool.WebMercator()
	}
	return p.SR
}

func (p *Pipeline) fitter() xstool.CurveFitter {
	if p.Fitter == nil {
		return xstool.TensionSpline{Tension: xstool.DefaultTension}
	}
	return p.Fitter
}

func (p *Pipeline) assembleOptions() []xstool.AssembleOption {
	opts := []xstool.AssembleOption{xstool.WithInterpolation(p.Interpolation)}
	if p.Padding != 0 {
		opts = append(opts, xstool.Padding(p.Padding))
	}
	return opts
}

// MaxPoints is the largest number of cross-section points a pipeline will
// build.
const MaxPoints = dem.MaxImageSize

// checkCounts rejects invalid requests before any service is contacted.
func checkCounts(width float64, numpts int, widthNeeded bool) error {
	if widthNeeded && (!(width > 0) || math.IsInf(width, 0)) {
		return &xstool.InvalidWidthError{Width: width}
	}
	if numpts < 2 || numpts > MaxPoints {
		return &xstool.InvalidCountError{Name: "number of points", Count: numpts, Max: MaxPoints}
	}
	return nil
}

// XSAtPoint builds a cross-section of the given width and number of points
// across the stream nearest to the longitude-latitude point pt. The
// resulting profile is returned in spatial reference out.
func (p *Pipeline) XSAtPoint(ctx context.Context, pt geom.Point, width float64, numpts int, out *proj.SR) (*PointResult, error) {
	if err := checkCounts(width, numpts, true); err != nil {
		return nil, err
	}
	log := p.log().WithFields(logrus.Fields{"lon": pt.X, "lat": pt.Y, "width": width, "numpts": numpts})
	comid, line, err := p.Centerlines.Centerline(ctx, pt)
	if err != nil {
		return nil, err
	}
	sr := p.sr()
	planar, err := xstool.Project(line, sr)
	if err != nil {
		return nil, err
	}
	ref, err := xstool.Project(geom.LineString{pt}, sr)
	if err != nil {
		return nil, err
	}
	nx := xstool.ResampleCount(geom.LineString(planar).Length())
	curve, err := p.fitter().Fit(planar, nx)
	if err != nil {
		return nil, err
	}
	t, err := xstool.BuildTransect(ref[0], curve, width, numpts)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"comid": comid, "nx": curve.Len()}).Info("built transect")
	prof, err := xstool.Assemble(ctx, t, p.Elevation, p.Resolution, sr, p.assembleOptions()...)
	if err != nil {
		return nil, err
	}
	if prof, err = prof.Reproject(out); err != nil {
		return nil, err
	}
	return &PointResult{COMID: comid, Curve: curve, Transect: t, Profile: prof}, nil
}

// XSAtEndpoints builds a cross-section of numpts points between start and
// end, which are in spatial reference in. Viewed from downstream, start
// should be on the left bank. The resulting profile is returned in spatial
// reference out.
func (p *Pipeline) XSAtEndpoints(ctx context.Context, start, end geom.Point, numpts int, in, out *proj.SR) (*xstool.Profile, error) {
	if err := checkCounts(0, numpts, false); err != nil {
		return nil, err
	}
	tr, err := in.NewTransform(p.sr())
	if err != nil {
		return nil, err
	}
	var pts [2]geom.Point
	for i, q := range []geom.Point{start, end} {
		g, err := q.Transform(tr)
		if err != nil {
			return nil, err
		}
		pts[i] = g.(geom.Point)
	}
	t, err := xstool.SamplePath(pts[0], pts[1], numpts)
	if err != nil {
		return nil, err
	}
	p.log().WithFields(logrus.Fields{"numpts": t.Len()}).Info("sampled path")
	prof, err := xstool.Assemble(ctx, t, p.Elevation, p.Resolution, p.sr(), p.assembleOptions()...)
	if err != nil {
		return nil, err
	}
	return prof.Reproject(out)
}
