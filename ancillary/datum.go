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

package ancillary

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
	"github.com/spf13/cast"
)

const (
	// DefaultNWISURL is the USGS NWIS site service.
	DefaultNWISURL = "https://waterservices.usgs.gov/nwis/site/"

	// DefaultNCATURL is the NGS coordinate conversion and transformation
	// tool latitude-longitude-height service.
	DefaultNCATURL = "https://www.ngs.noaa.gov/api/ncat/llh"
)

const feetToMeters = 0.3048

var discard = &logrus.Logger{Out: io.Discard, Formatter: new(logrus.TextFormatter), Hooks: make(logrus.LevelHooks)}

// GageSite holds the location and datum of a USGS gage as reported by NWIS.
type GageSite struct {
	ID         string
	Lat, Lon   string // decimal degrees as reported
	CoordDatum string // horizontal datum, e.g. NAD83
	Altitude   float64
	AltDatum   string // vertical datum, e.g. NGVD29 or NAVD88
}

// DatumClient looks up USGS stream gage datums. The zero value uses the
// public services.
type DatumClient struct {
	NWISURL    string
	NCATURL    string
	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

func (c *DatumClient) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *DatumClient) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ancillary: %v", err)
	}
	resp, err := c.httpClient().Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ancillary: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ancillary: request %s returned status %s", u, resp.Status)
	}
	return resp, nil
}

// Site retrieves the NWIS site record of gage site.
func (c *DatumClient) Site(ctx context.Context, site string) (*GageSite, error) {
	base := c.NWISURL
	if base == "" {
		base = DefaultNWISURL
	}
	v := url.Values{}
	v.Set("format", "rdb")
	v.Set("sites", site)
	v.Set("siteOutput", "expanded")
	v.Set("siteStatus", "all")
	resp, err := c.get(ctx, base+"?"+v.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// RDB is tab separated with # comments, a header row and a row of
	// column formats.
	r := csv.NewReader(resp.Body)
	r.Comma = '\t'
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ancillary: reading NWIS site record: %v", err)
	}
	if len(rows) < 3 {
		return nil, &xstool.LookupFailedError{Query: "NWIS site " + site}
	}
	col := make(map[string]string)
	for i, h := range rows[0] {
		if i < len(rows[2]) {
			col[h] = strings.TrimSpace(rows[2][i])
		}
	}
	s := &GageSite{
		ID:         col["site_no"],
		Lat:        col["dec_lat_va"],
		Lon:        col["dec_long_va"],
		CoordDatum: col["dec_coord_datum_cd"],
		AltDatum:   col["alt_datum_cd"],
	}
	if s.CoordDatum == "" {
		s.CoordDatum = col["coord_datum_cd"]
	}
	s.Altitude, err = strconv.ParseFloat(col["alt_va"], 64)
	if err != nil {
		return nil, &xstool.LookupFailedError{Query: "altitude of NWIS site " + site, Err: err}
	}
	return s, nil
}

// GageDatum returns the datum of USGS gage site in meters. Datums in
// NGVD29 are converted to NAVD88 with the NGS NCAT service; others are
// returned as reported.
func (c *DatumClient) GageDatum(ctx context.Context, site string) (float64, error) {
	s, err := c.Site(ctx, site)
	if err != nil {
		return 0, err
	}
	h := s.Altitude * feetToMeters
	log := c.Log
	if log == nil {
		log = discard
	}
	log = log.WithFields(logrus.Fields{"site": site, "datum": s.AltDatum, "height": h})
	if s.AltDatum != "NGVD29" {
		log.Debug("gage datum needs no conversion")
		return h, nil
	}

	inDatum := s.CoordDatum
	if inDatum == "NAD83" {
		inDatum = "NAD83(2011)"
	}
	v := url.Values{}
	v.Set("lat", s.Lat)
	v.Set("lon", s.Lon)
	v.Set("orthoHt", strconv.FormatFloat(h, 'f', -1, 64))
	v.Set("inDatum", inDatum)
	v.Set("outDatum", "NAD83(2011)")
	v.Set("inVertDatum", "NGVD29")
	v.Set("outVertDatum", "NAVD88")
	base := c.NCATURL
	if base == "" {
		base = DefaultNCATURL
	}
	resp, err := c.get(ctx, base+"?"+v.Encode())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("ancillary: decoding NCAT response: %v", err)
	}
	z, err := cast.ToFloat64E(out["destOrthoht"])
	if err != nil || out["destOrthoht"] == nil {
		return 0, fmt.Errorf("ancillary: NCAT response has no destOrthoht: %v", out)
	}
	log.WithField("navd88", z).Debug("converted gage datum")
	return z, nil
}
