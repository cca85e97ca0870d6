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

// Package dem provides elevation rasters for cross-section profiles from
// the USGS 3D Elevation Program (3DEP) and from local grid files.
package dem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
)

// DefaultImageServer is the 3DEP elevation image service.
const DefaultImageServer = "https://elevation.nationalmap.gov/arcgis/rest/services/3DEPElevation/ImageServer"

// MaxImageSize is the largest number of rows or columns that can be
// requested from the image service at once.
const MaxImageSize = 4000

// f32NoData is the value the image service uses for missing cells when the
// image carries no nodata tag.
const f32NoData = -math.MaxFloat32

// metersPerDegree approximates the length of a degree of latitude.
const metersPerDegree = 111320.

// ThreeDEP retrieves elevation from a 3DEP ArcGIS ImageServer using the
// exportImage operation. The zero value uses DefaultImageServer.
type ThreeDEP struct {
	// URL is the ImageServer endpoint.
	URL string

	HTTPClient *http.Client

	// Log receives diagnostic messages. It may be nil.
	Log logrus.FieldLogger
}

// srCodes are the EPSG codes of the spatial references the image service is
// queried in, in order of preference.
var srCodes = []int{3857, 4326, 4269, 5070}

// wkid returns the EPSG code of sr among srCodes by checking that the
// transformation of the corners of b to each candidate is an identity.
func wkid(sr *proj.SR, b *geom.Bounds) (int, error) {
	for _, code := range srCodes {
		cand, err := xstool.ParseSR(fmt.Sprintf("epsg:%d", code))
		if err != nil {
			return 0, err
		}
		t, err := sr.NewTransform(cand)
		if err != nil {
			continue
		}
		if identity(t, b) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("dem: spatial reference is not one of EPSG %v supported by the image service", srCodes)
}

func (s *ThreeDEP) log() logrus.FieldLogger {
	if s.Log == nil {
		return discard
	}
	return s.Log
}

// Elevation implements xstool.ElevationSource. The extent of the returned
// grid is b expanded to a whole number of cells.
func (s *ThreeDEP) Elevation(ctx context.Context, b *geom.Bounds, res xstool.Resolution, sr *proj.SR) (*xstool.Grid, error) {
	code, err := wkid(sr, b)
	if err != nil {
		return nil, err
	}
	cell := res.Meters()
	if code == 4326 || code == 4269 {
		cell /= metersPerDegree
	}
	cols := int(math.Ceil((b.Max.X - b.Min.X) / cell))
	rows := int(math.Ceil((b.Max.Y - b.Min.Y) / cell))
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("dem: requested extent is smaller than two %v cells", res)
	}
	if cols > MaxImageSize || rows > MaxImageSize {
		return nil, fmt.Errorf("dem: requested image of %dx%d cells is larger than %d; use a coarser resolution", cols, rows, MaxImageSize)
	}
	ext := &geom.Bounds{
		Min: geom.Point{X: b.Min.X, Y: b.Max.Y - float64(rows)*cell},
		Max: geom.Point{X: b.Min.X + float64(cols)*cell, Y: b.Max.Y},
	}

	v := url.Values{}
	v.Set("bbox", joinFloats(ext.Min.X, ext.Min.Y, ext.Max.X, ext.Max.Y))
	v.Set("bboxSR", fmt.Sprint(code))
	v.Set("imageSR", fmt.Sprint(code))
	v.Set("size", fmt.Sprintf("%d,%d", cols, rows))
	v.Set("format", "tiff")
	v.Set("pixelType", "F32")
	v.Set("noDataInterpretation", "esriNoDataMatchAny")
	v.Set("interpolation", "RSP_BilinearInterpolation")
	v.Set("compression", "LZ77")
	v.Set("f", "image")
	base := s.URL
	if base == "" {
		base = DefaultImageServer
	}
	u := strings.TrimSuffix(base, "/") + "/exportImage?" + v.Encode()

	log := s.log().WithFields(logrus.Fields{"resolution": res, "cols": cols, "rows": rows, "wkid": code})
	log.Debug("requesting elevation")
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	r, err := decodeTIFF(body)
	if err != nil {
		return nil, err
	}
	g := gridFromRaster(r, ext, cell)
	g.Resolution = res
	if g.Empty() {
		return nil, &xstool.CoverageMissingError{Resolution: res, Bounds: b}
	}
	log.Debug("received elevation")
	return g, nil
}

// joinFloats formats v as a comma-separated list without exponents.
func joinFloats(v ...float64) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(s, ",")
}

// gridFromRaster converts r to a grid, using the GeoTIFF georeferencing if
// present and otherwise assuming the image covers ext with square cells.
func gridFromRaster(r *raster, ext *geom.Bounds, cell float64) *xstool.Grid {
	origin := geom.Point{X: ext.Min.X, Y: ext.Max.Y}
	dx, dy := cell, cell
	if r.hasGeo {
		origin = geom.Point{X: r.originX, Y: r.originY}
		dx, dy = r.scaleX, r.scaleY
	}
	nodata := f32NoData
	if r.hasNoData {
		nodata = r.noData
	}
	g := xstool.NewGrid(origin, dx, dy, r.height, r.width, nodata)
	for i := 0; i < r.height; i++ {
		g.Data.SetRow(i, r.data[i*r.width:(i+1)*r.width])
	}
	return g
}

// serviceError is the body of an ArcGIS REST error response.
type serviceError struct {
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

func (s *ThreeDEP) get(ctx context.Context, u string) ([]byte, error) {
	return get(ctx, s.HTTPClient, u)
}

// get retrieves u, translating ArcGIS JSON error bodies into errors.
func get(ctx context.Context, hc *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dem: %v", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("dem: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dem: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var se serviceError
		if err := json.Unmarshal(body, &se); err == nil && se.Error != nil {
			return nil, fmt.Errorf("dem: service error %d: %s %s", se.Error.Code, se.Error.Message, strings.Join(se.Error.Details, " "))
		}
	}
	return body, nil
}

// StatusError is returned when a service responds with an HTTP error.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dem: request %s returned status %s", e.URL, e.Status)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
