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
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// WebMapProj is the spatial reference for web mapping (EPSG:3857). It is the
// default planar frame that cross-sections are built in.
const WebMapProj = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// LongLatProj is the geographic WGS84 spatial reference (EPSG:4326).
const LongLatProj = "+proj=longlat +datum=WGS84 +no_defs"

// epsgDefs holds the proj4 definitions of the EPSG codes accepted by ParseSR
// without a full definition.
var epsgDefs = map[int]string{
	4326:   LongLatProj,
	4269:   "+proj=longlat +datum=NAD83 +no_defs",
	3857:   WebMapProj,
	900913: WebMapProj,
	5070:   "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
}

// ParseSR parses a spatial reference given either as an EPSG code
// (e.g. "epsg:4326" or "EPSG:3857"), or as a PROJ4 or WKT definition.
// WGS84 UTM zones are recognized as EPSG:326zz (north) and EPSG:327zz (south).
func ParseSR(s string) (*proj.SR, error) {
	code := strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(code), "epsg:") {
		n, err := strconv.Atoi(code[len("epsg:"):])
		if err != nil {
			return nil, fmt.Errorf("xstool: invalid EPSG code %q", s)
		}
		def, ok := epsgDefs[n]
		switch {
		case ok:
		case n > 32600 && n <= 32660:
			def = fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", n-32600)
		case n > 32700 && n <= 32760:
			def = fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", n-32700)
		default:
			return nil, fmt.Errorf("xstool: unsupported EPSG code %d; use a PROJ4 or WKT definition instead", n)
		}
		code = def
	}
	sr, err := proj.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("xstool: parsing spatial reference %q: %v", s, err)
	}
	return sr, nil
}

// LongLat returns the WGS84 longitude-latitude spatial reference.
func LongLat() *proj.SR {
	sr, err := proj.Parse(LongLatProj)
	if err != nil {
		panic(err)
	}
	return sr
}

// WebMercator returns the web mapping spatial reference.
func WebMercator() *proj.SR {
	sr, err := proj.Parse(WebMapProj)
	if err != nil {
		panic(err)
	}
	return sr
}
