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

package dem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/xstool"
)

// ReadASCIIGrid reads an ESRI ASCII grid. Both the corner (xllcorner) and
// center (xllcenter) forms of the header are accepted. If the header has
// no NODATA_value, -9999 is used.
func ReadASCIIGrid(r io.Reader) (*xstool.Grid, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	s.Split(bufio.ScanWords)

	hdr := map[string]float64{"nodata_value": -9999}
	var first string
	for s.Scan() {
		key := strings.ToLower(s.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !s.Scan() {
			break
		}
		v, err := strconv.ParseFloat(s.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("dem: ascii grid: header %s: %v", key, err)
		}
		hdr[key] = v
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("dem: ascii grid: %v", err)
	}
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := hdr[k]; !ok {
			return nil, fmt.Errorf("dem: ascii grid: missing header %s", k)
		}
	}
	cols, rows, cell := int(hdr["ncols"]), int(hdr["nrows"]), hdr["cellsize"]
	if cols < 1 || rows < 1 || !(cell > 0) {
		return nil, fmt.Errorf("dem: ascii grid: invalid size %dx%d with cell size %g", cols, rows, cell)
	}
	var x0, y0 float64
	if x, ok := hdr["xllcorner"]; ok {
		x0 = x
	} else if x, ok := hdr["xllcenter"]; ok {
		x0 = x - cell/2
	} else {
		return nil, fmt.Errorf("dem: ascii grid: missing header xllcorner")
	}
	if y, ok := hdr["yllcorner"]; ok {
		y0 = y
	} else if y, ok := hdr["yllcenter"]; ok {
		y0 = y - cell/2
	} else {
		return nil, fmt.Errorf("dem: ascii grid: missing header yllcorner")
	}

	g := xstool.NewGrid(geom.Point{X: x0, Y: y0 + float64(rows)*cell}, cell, cell, rows, cols, hdr["nodata_value"])
	for k := 0; k < rows*cols; k++ {
		var tok string
		if k == 0 && first != "" {
			tok = first
		} else if s.Scan() {
			tok = s.Text()
		} else {
			return nil, fmt.Errorf("dem: ascii grid: have %d values, want %d", k, rows*cols)
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("dem: ascii grid: value %d: %v", k, err)
		}
		g.Data.Set(k/cols, k%cols, v)
	}
	return g, nil
}

// Local is an ElevationSource backed by an elevation grid held in memory,
// for example one read by ReadASCIIGrid.
type Local struct {
	Grid *xstool.Grid

	// SR is the spatial reference of Grid.
	SR *proj.SR
}

// OpenASCIIGrid reads the ESRI ASCII grid file at path, whose coordinates
// are in sr.
func OpenASCIIGrid(path string, sr *proj.SR) (*Local, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dem: %v", err)
	}
	defer f.Close()
	g, err := ReadASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%v (%s)", err, path)
	}
	return &Local{Grid: g, SR: sr}, nil
}

// Elevation implements xstool.ElevationSource. If sr differs from the
// spatial reference of the grid, the grid is resampled onto cells of size
// res covering b. The nominal resolution of the stored grid is not checked.
func (l *Local) Elevation(ctx context.Context, b *geom.Bounds, res xstool.Resolution, sr *proj.SR) (*xstool.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := sr.NewTransform(l.SR)
	if err != nil {
		return nil, fmt.Errorf("dem: %v", err)
	}
	var g *xstool.Grid
	if identity(t, b) {
		g = l.clip(b)
	} else {
		g, err = l.resample(t, b, res)
		if err != nil {
			return nil, err
		}
	}
	if g == nil || g.Empty() {
		return nil, &xstool.CoverageMissingError{Resolution: res, Bounds: b}
	}
	g.Resolution = res
	return g, nil
}

// identity reports whether t leaves the corners of b unchanged.
func identity(t proj.Transformer, b *geom.Bounds) bool {
	for _, p := range []geom.Point{b.Min, b.Max} {
		x, y, err := t(p.X, p.Y)
		if err != nil || math.Abs(x-p.X) > 1e-6*math.Max(1, math.Abs(p.X)) || math.Abs(y-p.Y) > 1e-6*math.Max(1, math.Abs(p.Y)) {
			return false
		}
	}
	return true
}

// clip returns the part of the grid that covers b, plus one cell on each
// side, or nil if the two do not overlap.
func (l *Local) clip(b *geom.Bounds) *xstool.Grid {
	src := l.Grid
	rows, cols := src.Dims()
	c0 := clamp(int(math.Floor((b.Min.X-src.Origin.X)/src.DX))-1, 0, cols)
	c1 := clamp(int(math.Ceil((b.Max.X-src.Origin.X)/src.DX))+1, 0, cols)
	r0 := clamp(int(math.Floor((src.Origin.Y-b.Max.Y)/src.DY))-1, 0, rows)
	r1 := clamp(int(math.Ceil((src.Origin.Y-b.Min.Y)/src.DY))+1, 0, rows)
	if c1-c0 < 1 || r1-r0 < 1 {
		return nil
	}
	origin := geom.Point{X: src.Origin.X + float64(c0)*src.DX, Y: src.Origin.Y - float64(r0)*src.DY}
	g := xstool.NewGrid(origin, src.DX, src.DY, r1-r0, c1-c0, src.NoData)
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			g.Data.Set(i-r0, j-c0, src.Data.At(i, j))
		}
	}
	return g
}

// resample samples the grid at the centers of res-sized cells covering b,
// where t transforms from the spatial reference of b to that of the grid.
func (l *Local) resample(t proj.Transformer, b *geom.Bounds, res xstool.Resolution) (*xstool.Grid, error) {
	cell := res.Meters()
	cols := int(math.Ceil((b.Max.X-b.Min.X)/cell)) + 1
	rows := int(math.Ceil((b.Max.Y-b.Min.Y)/cell)) + 1
	if cols*rows > MaxImageSize*MaxImageSize {
		return nil, fmt.Errorf("dem: resampled grid of %dx%d cells is too large", cols, rows)
	}
	g := xstool.NewGrid(geom.Point{X: b.Min.X - cell/2, Y: b.Max.Y + cell/2}, cell, cell, rows, cols, l.Grid.NoData)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			c := g.CellCenter(i, j)
			x, y, err := t(c.X, c.Y)
			if err != nil {
				return nil, fmt.Errorf("dem: %v", err)
			}
			v, err := l.Grid.Bilinear(geom.Point{X: x, Y: y})
			if err != nil {
				continue
			}
			g.Data.Set(i, j, v)
		}
	}
	return g, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
