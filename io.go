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
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
)

// Feature is a GeoJSON feature.
type Feature struct {
	ID         string                 `json:"id,omitempty"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

func newFeature(id string, g geom.Geom, props map[string]interface{}) (*Feature, error) {
	gj, err := geojson.ToGeoJSON(g)
	if err != nil {
		return nil, err
	}
	return &Feature{ID: id, Type: "Feature", Properties: props, Geometry: gj}, nil
}

// FeatureCollection returns p as a collection of Point features with
// "distance" and "elevation" properties, in the order of the profile.
func (p *Profile) FeatureCollection() (*FeatureCollection, error) {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]*Feature, len(p.Points))}
	for i, pp := range p.Points {
		f, err := newFeature(strconv.Itoa(i), pp.Point, map[string]interface{}{
			"distance":  pp.Distance,
			"elevation": pp.Elevation,
		})
		if err != nil {
			return nil, fmt.Errorf("xstool: encoding profile: %w", err)
		}
		fc.Features[i] = f
	}
	return fc, nil
}

// EncodeGeoJSON writes p to w as a GeoJSON FeatureCollection.
func (p *Profile) EncodeGeoJSON(w io.Writer) error {
	fc, err := p.FeatureCollection()
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(fc)
}

// EncodeGeoJSON writes t to w as a GeoJSON FeatureCollection holding a
// single LineString feature with the given name.
func (t *Transect) EncodeGeoJSON(w io.Writer, name string) error {
	return encodeLine(w, t.LineString(), name)
}

// EncodeGeoJSON writes the resampled points of c to w as a GeoJSON
// FeatureCollection holding a single LineString feature with the given name.
func (c *FittedCurve) EncodeGeoJSON(w io.Writer, name string) error {
	return encodeLine(w, c.LineString(), name)
}

func encodeLine(w io.Writer, l geom.LineString, name string) error {
	f, err := newFeature("0", l, map[string]interface{}{"name": name})
	if err != nil {
		return fmt.Errorf("xstool: encoding %s: %w", name, err)
	}
	return json.NewEncoder(w).Encode(&FeatureCollection{Type: "FeatureCollection", Features: []*Feature{f}})
}
