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
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot draws elevation against distance for the profile and writes it to
// w in the given image format ("png", "svg", "pdf", "eps", "jpg" or "tif").
func (p *Profile) Plot(w io.Writer, title, format string) error {
	if p.Len() == 0 {
		return fmt.Errorf("xstool: cannot plot an empty profile")
	}
	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "Distance (m)"
	pl.Y.Label.Text = "Elevation (m)"
	xy := make(plotter.XYs, p.Len())
	for i, pp := range p.Points {
		xy[i].X = pp.Distance
		xy[i].Y = pp.Elevation
	}
	if err := plotutil.AddLinePoints(pl, xy); err != nil {
		return fmt.Errorf("xstool: plotting profile: %w", err)
	}
	wt, err := pl.WriterTo(6*vg.Inch, 3*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("xstool: plotting profile: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
