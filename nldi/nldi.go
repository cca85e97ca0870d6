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

// Package nldi is a client for the Network Linked Data Index (NLDI), which
// locates the NHDPlus stream segment (identified by its COMID) nearest to a
// location and returns the segment's flowline geometry.
package nldi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
	"github.com/spf13/cast"
)

// DefaultURL is the location of the public NLDI linked-data service.
const DefaultURL = "https://labs.waterdata.usgs.gov/api/nldi/linked-data"

// Client queries an NLDI service. The zero value uses DefaultURL and
// http.DefaultClient. A Client is safe for concurrent use.
type Client struct {
	// BaseURL is the linked-data endpoint of the service.
	BaseURL string

	// HTTPClient is used to make requests.
	HTTPClient *http.Client

	// CacheSize is the number of flowlines to keep in memory. If it is
	// zero flowlines are not cached.
	CacheSize int

	// Log receives diagnostic messages. It may be nil.
	Log logrus.FieldLogger

	cacheInit sync.Once
	cache     *requestcache.Cache
}

type featureCollection struct {
	Features []struct {
		Properties map[string]interface{} `json:"properties"`
		Geometry   *geojson.Geometry      `json:"geometry"`
	} `json:"features"`
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultURL
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

var discard = &logrus.Logger{Out: io.Discard, Formatter: new(logrus.TextFormatter), Hooks: make(logrus.LevelHooks)}

func (c *Client) log() logrus.FieldLogger {
	if c.Log == nil {
		return discard
	}
	return c.Log
}

// get retrieves u and decodes the GeoJSON response.
func (c *Client) get(ctx context.Context, u string) (*featureCollection, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("nldi: %v", err)
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("nldi: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return &featureCollection{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nldi: request %s returned status %s", u, resp.Status)
	}
	fc := new(featureCollection)
	if err := json.NewDecoder(resp.Body).Decode(fc); err != nil {
		return nil, fmt.Errorf("nldi: decoding response from %s: %v", u, err)
	}
	return fc, nil
}

// Position returns the COMID of the stream segment nearest to the given
// longitude and latitude.
func (c *Client) Position(ctx context.Context, lon, lat float64) (string, error) {
	coords := fmt.Sprintf("POINT(%v %v)", lon, lat)
	u := c.baseURL() + "/comid/position?f=json&coords=" + url.QueryEscape(coords)
	fc, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}
	if len(fc.Features) == 0 {
		return "", &xstool.LookupFailedError{Query: "COMID at " + coords}
	}
	comid, err := cast.ToStringE(fc.Features[0].Properties["comid"])
	if err != nil || comid == "" {
		return "", &xstool.LookupFailedError{Query: "COMID at " + coords, Err: fmt.Errorf("response has no comid property")}
	}
	c.log().WithFields(logrus.Fields{"lon": lon, "lat": lat, "comid": comid}).Debug("located stream segment")
	return comid, nil
}

// Flowline returns the flowline of stream segment comid in
// longitude-latitude coordinates, ordered from upstream to downstream.
// Results are cached if CacheSize > 0.
func (c *Client) Flowline(ctx context.Context, comid string) (geom.LineString, error) {
	if c.CacheSize <= 0 {
		return c.flowline(ctx, comid)
	}
	result, err := c.flowlineCache().NewRequest(ctx, comid, comid).Result()
	if err != nil {
		return nil, err
	}
	return result.(geom.LineString), nil
}

// CacheRequests returns the number of flowline requests received by the
// cache and the number that were passed on to the service.
func (c *Client) CacheRequests() (total, service int) {
	if c.CacheSize <= 0 {
		return 0, 0
	}
	r := c.flowlineCache().Requests()
	return r[0], r[len(r)-1]
}

func (c *Client) flowlineCache() *requestcache.Cache {
	c.cacheInit.Do(func() {
		c.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return c.flowline(ctx, request.(string))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(c.CacheSize))
	})
	return c.cache
}

func (c *Client) flowline(ctx context.Context, comid string) (geom.LineString, error) {
	u := c.baseURL() + "/comid/" + url.PathEscape(comid)
	fc, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return nil, &xstool.LookupFailedError{Query: "flowline of COMID " + comid}
	}
	l, err := lineString(fc.Features[0].Geometry)
	if err != nil {
		return nil, fmt.Errorf("nldi: flowline of COMID %s: %v", comid, err)
	}
	c.log().WithFields(logrus.Fields{"comid": comid, "vertices": len(l)}).Debug("retrieved flowline")
	return l, nil
}

// lineString converts a LineString or MultiLineString geometry to a single
// line. The parts of a MultiLineString are joined in order.
func lineString(g *geojson.Geometry) (geom.LineString, error) {
	if g.Type != "MultiLineString" {
		gg, err := geojson.FromGeoJSON(dropZ(g))
		if err != nil {
			return nil, err
		}
		l, ok := gg.(geom.LineString)
		if !ok {
			return nil, fmt.Errorf("geometry type %s is not a line", g.Type)
		}
		return l, nil
	}
	parts, ok := g.Coordinates.([]interface{})
	if !ok {
		return nil, geojson.InvalidGeometryError{}
	}
	var o geom.LineString
	for _, p := range parts {
		l, err := lineString(&geojson.Geometry{Type: "LineString", Coordinates: p})
		if err != nil {
			return nil, err
		}
		if len(o) > 0 && len(l) > 0 && o[len(o)-1] == l[0] {
			l = l[1:]
		}
		o = append(o, l...)
	}
	return o, nil
}

// dropZ removes any elevation ordinates from the vertices of a line,
// which the geojson decoder does not accept.
func dropZ(g *geojson.Geometry) *geojson.Geometry {
	pts, ok := g.Coordinates.([]interface{})
	if !ok || g.Type != "LineString" {
		return g
	}
	o := make([]interface{}, len(pts))
	for i, p := range pts {
		if c, ok := p.([]interface{}); ok && len(c) > 2 {
			p = c[:2]
		}
		o[i] = p
	}
	return &geojson.Geometry{Type: g.Type, Coordinates: o}
}

// Centerline implements xstool.CenterlineSource.
func (c *Client) Centerline(ctx context.Context, p geom.Point) (string, geom.LineString, error) {
	comid, err := c.Position(ctx, p.X, p.Y)
	if err != nil {
		return "", nil, err
	}
	l, err := c.Flowline(ctx, comid)
	if err != nil {
		return "", nil, err
	}
	return comid, l, nil
}
