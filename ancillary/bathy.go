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

// Package ancillary holds tools that support cross-section work but are
// not part of building a cross-section: extending a measured bathymetric
// survey onto the banks using a DEM, and looking up the datum of a USGS
// stream gage.
package ancillary

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/xstool"
	"github.com/tealeg/xlsx"
)

// SurveyPoint is one measurement of a bathymetric survey.
type SurveyPoint struct {
	// X and Y are the location in the survey's spatial reference,
	// usually longitude and latitude.
	X, Y      float64
	Elevation float64
}

// Survey is a measured cross-section, for example from an ADCP.
type Survey struct {
	SR     *proj.SR
	Points []SurveyPoint
}

// Columns names the columns of a survey table holding the location and
// elevation of each point.
type Columns struct {
	X, Y, Elevation string
}

// LoadBathymetry reads a survey table from a CSV or Microsoft Excel (.xlsx)
// file. The first row of the table holds the column names. When reading a
// spreadsheet the first sheet is used.
func LoadBathymetry(path string, cols Columns, sr *proj.SR) (*Survey, error) {
	path = os.ExpandEnv(path)
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("ancillary: opening xlsx file: %v", err)
		}
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("ancillary: %s has no sheets", path)
		}
		for _, row := range f.Sheets[0].Rows {
			r := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				r[i] = c.Value
			}
			rows = append(rows, r)
		}
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ancillary: %v", err)
		}
		defer f.Close()
		rows, err = readCSV(f)
		if err != nil {
			return nil, fmt.Errorf("ancillary: reading %s: %v", path, err)
		}
	}
	s, err := surveyFromTable(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("ancillary: %s: %v", path, err)
	}
	s.SR = sr
	return s, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

// surveyFromTable converts the rows of a table with a header row into a
// survey. Rows with an empty location or elevation are skipped.
func surveyFromTable(rows [][]string, cols Columns) (*Survey, error) {
	if len(rows) < 1 {
		return nil, fmt.Errorf("empty table")
	}
	idx := make(map[string]int)
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	var ci [3]int
	for i, name := range []string{cols.X, cols.Y, cols.Elevation} {
		j, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("no column named %q", name)
		}
		ci[i] = j
	}
	s := new(Survey)
	for n, row := range rows[1:] {
		var v [3]float64
		skip := false
		for i, j := range ci {
			if j >= len(row) || strings.TrimSpace(row[j]) == "" {
				skip = true
				break
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %v", n+2, err)
			}
			v[i] = f
		}
		if skip {
			continue
		}
		s.Points = append(s.Points, SurveyPoint{X: v[0], Y: v[1], Elevation: v[2]})
	}
	if len(s.Points) < 2 {
		return nil, &xstool.DegenerateInputError{What: "survey", Reason: fmt.Sprintf("%d points", len(s.Points))}
	}
	return s, nil
}

// Extend extends a survey by dist on both ends with elevations from src at
// resolution res, returning a profile in the planar spatial reference sr.
// The survey points are ordered along the line between the two survey
// points farthest apart, the extensions continue that line, and points on
// the extensions are spaced one cell of res apart. Distances are measured
// from the first point of the extended profile.
func Extend(ctx context.Context, s *Survey, dist float64, src xstool.ElevationSource, res xstool.Resolution, sr *proj.SR) (*xstool.Profile, error) {
	if len(s.Points) < 2 {
		return nil, &xstool.DegenerateInputError{What: "survey", Reason: fmt.Sprintf("%d points", len(s.Points))}
	}
	if !(dist >= 0) || math.IsInf(dist, 0) {
		return nil, &xstool.InvalidWidthError{Width: dist}
	}
	t, err := s.SR.NewTransform(sr)
	if err != nil {
		return nil, fmt.Errorf("ancillary: %v", err)
	}
	pts := make([]xstool.ProfilePoint, len(s.Points))
	for i, sp := range s.Points {
		x, y, err := t(sp.X, sp.Y)
		if err != nil {
			return nil, fmt.Errorf("ancillary: %v", err)
		}
		pts[i] = xstool.ProfilePoint{Point: geom.Point{X: x, Y: y}, Elevation: sp.Elevation}
	}

	a, b := farthest(pts)
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil, &xstool.DegenerateInputError{What: "survey", Reason: "all points coincide"}
	}
	ux, uy := dx/l, dy/l
	along := func(p geom.Point) float64 { return (p.X-a.X)*ux + (p.Y-a.Y)*uy }
	sort.SliceStable(pts, func(i, j int) bool { return along(pts[i].Point) < along(pts[j].Point) })

	step := res.Meters()
	n := int(math.Floor(dist / step))
	first, last := pts[0].Point, pts[len(pts)-1].Point
	var before, after []geom.Point
	for k := n; k >= 1; k-- {
		d := float64(k) * step
		before = append(before, geom.Point{X: first.X - d*ux, Y: first.Y - d*uy})
	}
	for k := 1; k <= n; k++ {
		d := float64(k) * step
		after = append(after, geom.Point{X: last.X + d*ux, Y: last.Y + d*uy})
	}

	o := &xstool.Profile{SR: sr}
	if n > 0 {
		ext := append(append([]geom.Point{}, before...), after...)
		box := geom.NewBounds()
		for _, p := range ext {
			box.Extend(p.Bounds())
		}
		pad := xstool.DefaultPadding
		box.Min.X, box.Min.Y = box.Min.X-pad, box.Min.Y-pad
		box.Max.X, box.Max.Y = box.Max.X+pad, box.Max.Y+pad
		g, err := src.Elevation(ctx, box, res, sr)
		if err != nil {
			return nil, err
		}
		sample := func(ps []geom.Point) error {
			for _, p := range ps {
				z, err := g.Bilinear(p)
				if err != nil {
					return err
				}
				o.Points = append(o.Points, xstool.ProfilePoint{Point: p, Elevation: z})
			}
			return nil
		}
		if err := sample(before); err != nil {
			return nil, err
		}
		o.Points = append(o.Points, pts...)
		if err := sample(after); err != nil {
			return nil, err
		}
	} else {
		o.Points = pts
	}
	p0 := o.Points[0].Point
	for i := range o.Points {
		o.Points[i].Distance = math.Hypot(o.Points[i].X-p0.X, o.Points[i].Y-p0.Y)
	}
	return o, nil
}

// farthest returns the two points of pts that are farthest apart, in their
// original order.
func farthest(pts []xstool.ProfilePoint) (a, b geom.Point) {
	best := -1.
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			d := math.Hypot(pts[j].X-pts[i].X, pts[j].Y-pts[i].Y)
			if d > best {
				best, a, b = d, pts[i].Point, pts[j].Point
			}
		}
	}
	return a, b
}
