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
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"gonum.org/v1/gonum/mat"
)

// Resolution is the nominal cell size of an elevation raster in meters.
type Resolution int

// The resolutions at which elevation data can be requested.
const (
	Res1m  Resolution = 1
	Res3m  Resolution = 3
	Res5m  Resolution = 5
	Res10m Resolution = 10
	Res30m Resolution = 30
	Res60m Resolution = 60
)

// Resolutions lists the supported resolutions from finest to coarsest.
var Resolutions = []Resolution{Res1m, Res3m, Res5m, Res10m, Res30m, Res60m}

func (r Resolution) String() string { return strconv.Itoa(int(r)) + "m" }

// Meters returns the cell size in meters.
func (r Resolution) Meters() float64 { return float64(r) }

// ParseResolution parses a resolution such as "10m" or "10".
func ParseResolution(s string) (Resolution, error) {
	v := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "m")
	n, err := strconv.Atoi(v)
	if err == nil {
		for _, r := range Resolutions {
			if int(r) == n {
				return r, nil
			}
		}
	}
	return 0, fmt.Errorf("xstool: invalid resolution %q; valid options are %v", s, Resolutions)
}

// ElevationSource retrieves elevation rasters.
type ElevationSource interface {
	// Elevation returns an elevation grid covering bounds, which is in the
	// spatial reference sr. The returned grid is in sr too. If no data is
	// available at resolution res a *CoverageMissingError is returned.
	Elevation(ctx context.Context, bounds *geom.Bounds, res Resolution, sr *proj.SR) (*Grid, error)
}

// Interpolation selects how a Grid is sampled between cell centers.
type Interpolation int

const (
	// Bilinear interpolates between the four surrounding cell centers.
	Bilinear Interpolation = iota
	// Nearest uses the value of the cell containing the point.
	Nearest
)

// ParseInterpolation parses "bilinear" or "nearest".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "bilinear", "":
		return Bilinear, nil
	case "nearest":
		return Nearest, nil
	}
	return 0, fmt.Errorf("xstool: invalid interpolation method %q", s)
}

// Grid is a north-up elevation raster. Row 0 of Data is the northernmost
// row and column 0 the westernmost column.
type Grid struct {
	// Origin is the upper left (north west) corner of the upper left cell.
	Origin geom.Point

	// DX and DY are the cell width and height, both positive.
	DX, DY float64

	Data *mat.Dense

	// NoData marks missing cells. NaN cells are always treated as missing.
	NoData float64

	// Resolution is the nominal resolution the grid was requested at.
	Resolution Resolution
}

// NewGrid returns a grid of the given size with all cells set to nodata.
func NewGrid(origin geom.Point, dx, dy float64, rows, cols int, nodata float64) *Grid {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = nodata
	}
	return &Grid{
		Origin: origin,
		DX:     dx,
		DY:     dy,
		Data:   mat.NewDense(rows, cols, data),
		NoData: nodata,
	}
}

// Dims returns the number of rows and columns in the grid.
func (g *Grid) Dims() (rows, cols int) { return g.Data.Dims() }

// Bounds returns the extent of the grid cells.
func (g *Grid) Bounds() *geom.Bounds {
	rows, cols := g.Dims()
	return &geom.Bounds{
		Min: geom.Point{X: g.Origin.X, Y: g.Origin.Y - float64(rows)*g.DY},
		Max: geom.Point{X: g.Origin.X + float64(cols)*g.DX, Y: g.Origin.Y},
	}
}

// CellCenter returns the location of the center of cell (row, col).
func (g *Grid) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: g.Origin.X + (float64(col)+0.5)*g.DX,
		Y: g.Origin.Y - (float64(row)+0.5)*g.DY,
	}
}

func (g *Grid) missing(v float64) bool { return math.IsNaN(v) || v == g.NoData }

// Empty returns whether every cell of the grid is missing.
func (g *Grid) Empty() bool {
	rows, cols := g.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !g.missing(g.Data.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// Interpolate samples the grid at p using method m.
func (g *Grid) Interpolate(p geom.Point, m Interpolation) (float64, error) {
	if m == Nearest {
		return g.Nearest(p)
	}
	return g.Bilinear(p)
}

// Bilinear returns the bilinearly interpolated value at p. Values are
// located at cell centers, so p must lie within the hull of the cell
// centers. Neighbours that carry zero weight may be missing.
func (g *Grid) Bilinear(p geom.Point) (float64, error) {
	rows, cols := g.Dims()
	fx := (p.X-g.Origin.X)/g.DX - 0.5
	fy := (g.Origin.Y-p.Y)/g.DY - 0.5
	if !(fx >= 0 && fx <= float64(cols-1) && fy >= 0 && fy <= float64(rows-1)) {
		return math.NaN(), &OutOfBoundsError{Point: p}
	}
	c0, r0 := int(fx), int(fy)
	c1, r1 := c0+1, r0+1
	if c1 > cols-1 {
		c1 = cols - 1
	}
	if r1 > rows-1 {
		r1 = rows - 1
	}
	tx, ty := fx-float64(c0), fy-float64(r0)

	corners := [4]struct {
		r, c int
		w    float64
	}{
		{r0, c0, (1 - tx) * (1 - ty)},
		{r0, c1, tx * (1 - ty)},
		{r1, c0, (1 - tx) * ty},
		{r1, c1, tx * ty},
	}
	var v float64
	for _, k := range corners {
		if k.w == 0 {
			continue
		}
		z := g.Data.At(k.r, k.c)
		if g.missing(z) {
			return math.NaN(), g.coverageError(p)
		}
		v += k.w * z
	}
	return v, nil
}

// Nearest returns the value of the cell containing p.
func (g *Grid) Nearest(p geom.Point) (float64, error) {
	rows, cols := g.Dims()
	fx := (p.X - g.Origin.X) / g.DX
	fy := (g.Origin.Y - p.Y) / g.DY
	if !(fx >= 0 && fx <= float64(cols) && fy >= 0 && fy <= float64(rows)) {
		return math.NaN(), &OutOfBoundsError{Point: p}
	}
	c, r := int(fx), int(fy)
	if c == cols {
		c--
	}
	if r == rows {
		r--
	}
	z := g.Data.At(r, c)
	if g.missing(z) {
		return math.NaN(), g.coverageError(p)
	}
	return z, nil
}

func (g *Grid) coverageError(p geom.Point) error {
	return &CoverageMissingError{Resolution: g.Resolution, Bounds: p.Bounds()}
}
