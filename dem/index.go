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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
)

// DefaultIndexServer is the 3DEP elevation index map service.
const DefaultIndexServer = "https://index.nationalmap.gov/arcgis/rest/services/3DEPElevationIndex/MapServer"

// indexLayers maps each resolution to its layer in the index service.
var indexLayers = map[xstool.Resolution]int{
	xstool.Res1m:  18,
	xstool.Res3m:  19,
	xstool.Res5m:  20,
	xstool.Res10m: 21,
	xstool.Res30m: 22,
	xstool.Res60m: 23,
}

// Index reports which 3DEP resolutions have coverage in an area.
// The zero value uses DefaultIndexServer.
type Index struct {
	URL        string
	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

// Available returns the resolutions, finest first, at which 3DEP elevation
// data intersects the longitude-latitude bounds b.
func (x *Index) Available(ctx context.Context, b *geom.Bounds) ([]xstool.Resolution, error) {
	var o []xstool.Resolution
	for _, res := range xstool.Resolutions {
		ok, err := x.Has(ctx, b, res)
		if err != nil {
			return nil, err
		}
		if ok {
			o = append(o, res)
		}
	}
	return o, nil
}

// Has reports whether 3DEP elevation data at resolution res intersects the
// longitude-latitude bounds b.
func (x *Index) Has(ctx context.Context, b *geom.Bounds, res xstool.Resolution) (bool, error) {
	layer, ok := indexLayers[res]
	if !ok {
		return false, fmt.Errorf("dem: no index layer for resolution %v", res)
	}
	v := url.Values{}
	v.Set("geometry", joinFloats(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y))
	v.Set("geometryType", "esriGeometryEnvelope")
	v.Set("inSR", "EPSG:4326")
	v.Set("spatialRel", "esriSpatialRelIntersects")
	v.Set("returnGeometry", "false")
	v.Set("outSR", "EPSG:4326")
	v.Set("f", "geojson")
	base := x.URL
	if base == "" {
		base = DefaultIndexServer
	}
	u := fmt.Sprintf("%s/%d/query?%s", strings.TrimSuffix(base, "/"), layer, v.Encode())
	body, err := get(ctx, x.HTTPClient, u)
	if err != nil {
		return false, err
	}
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		return false, fmt.Errorf("dem: decoding index response: %v", err)
	}
	log := x.Log
	if log == nil {
		log = discard
	}
	log.WithFields(logrus.Fields{"resolution": res, "features": len(fc.Features)}).Debug("queried elevation index")
	return len(fc.Features) > 0, nil
}
