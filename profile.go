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
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// DefaultPadding is the margin added around a transect's extent when
// requesting elevation data, in the units of the working spatial reference.
// It exceeds the coarsest supported resolution so that every transect point
// lies inside the hull of the returned cell centers.
const DefaultPadding = 100.

// ProfilePoint is one sample of an elevation profile.
type ProfilePoint struct {
	geom.Point

	// Elevation is the terrain elevation at the point.
	Elevation float64

	// Distance is the straight-line distance from the first point of the
	// profile, measured in the spatial reference the profile was assembled in.
	Distance float64
}

// Profile is a cross-section: transect points paired with elevations and
// distances.
type Profile struct {
	// SR is the spatial reference of the point coordinates.
	SR *proj.SR

	Points []ProfilePoint
}

// Len returns the number of points in the profile.
func (p *Profile) Len() int { return len(p.Points) }

// LineString returns the profile locations as a line.
func (p *Profile) LineString() geom.LineString {
	l := make(geom.LineString, len(p.Points))
	for i, pp := range p.Points {
		l[i] = pp.Point
	}
	return l
}

// Reproject returns a copy of p with its coordinates transformed to dst.
// Elevations and distances are unchanged.
func (p *Profile) Reproject(dst *proj.SR) (*Profile, error) {
	pts := make([]geom.Point, len(p.Points))
	for i, pp := range p.Points {
		pts[i] = pp.Point
	}
	pts, err := transformPoints(pts, p.SR, dst)
	if err != nil {
		return nil, fmt.Errorf("xstool: reprojecting profile: %w", err)
	}
	o := &Profile{SR: dst, Points: make([]ProfilePoint, len(p.Points))}
	for i, pp := range p.Points {
		o.Points[i] = ProfilePoint{Point: pts[i], Elevation: pp.Elevation, Distance: pp.Distance}
	}
	return o, nil
}

type assembleConfig struct {
	padding       float64
	interpolation Interpolation
}

// AssembleOption configures Assemble.
type AssembleOption func(*assembleConfig)

// Padding sets the margin added around the transect extent when requesting
// elevation data. The default is DefaultPadding.
func Padding(p float64) AssembleOption {
	return func(c *assembleConfig) { c.padding = p }
}

// WithInterpolation sets how the elevation raster is sampled. The default
// is Bilinear.
func WithInterpolation(m Interpolation) AssembleOption {
	return func(c *assembleConfig) { c.interpolation = m }
}

// Assemble joins transect t, which is in spatial reference sr, to elevation
// data from src at resolution res.
//
// The distance of each point is its straight-line distance from the first
// transect point rather than the distance traveled along the transect. The
// two agree for the straight transects built by BuildTransect and
// SamplePath.
func Assemble(ctx context.Context, t *Transect, src ElevationSource, res Resolution, sr *proj.SR, opts ...AssembleOption) (*Profile, error) {
	cfg := assembleConfig{padding: DefaultPadding, interpolation: Bilinear}
	for _, o := range opts {
		o(&cfg)
	}
	if t == nil || t.Len() == 0 {
		return nil, &DegenerateInputError{What: "transect", Reason: "no points"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := t.Bounds()
	b.Min.X -= cfg.padding
	b.Min.Y -= cfg.padding
	b.Max.X += cfg.padding
	b.Max.Y += cfg.padding

	g, err := src.Elevation(ctx, b, res, sr)
	if err != nil {
		return nil, err
	}
	if g == nil || g.Empty() {
		return nil, &CoverageMissingError{Resolution: res, Bounds: b}
	}

	p := &Profile{SR: sr, Points: make([]ProfilePoint, t.Len())}
	p0 := t.Points[0]
	for i, pt := range t.Points {
		z, err := g.Interpolate(pt, cfg.interpolation)
		if err != nil {
			return nil, err
		}
		p.Points[i] = ProfilePoint{
			Point:     pt,
			Elevation: z,
			Distance:  math.Hypot(pt.X-p0.X, pt.Y-p0.Y),
		}
	}
	return p, nil
}
