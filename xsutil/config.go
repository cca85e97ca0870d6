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

package xsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
	"github.com/spatialmodel/xstool/dem"
	"github.com/spatialmodel/xstool/nldi"
	"github.com/spf13/cast"
)

// Config holds the settings that determine how cross-sections are built.
type Config struct {
	// WorkingCRS is the planar spatial reference cross-sections are
	// built in.
	WorkingCRS string

	// Resolution is the 3DEP resolution, e.g. "10m".
	Resolution string

	// Interpolation is "bilinear" or "nearest".
	Interpolation string

	// Fitter is "tension" or "linear".
	Fitter  string
	Tension float64

	Padding float64

	NLDIURL      string
	ElevationURL string

	// If DEMFile is set elevations are read from that ESRI ASCII grid,
	// whose spatial reference is DEMCRS, instead of from 3DEP.
	DEMFile string
	DEMCRS  string

	// CacheSize is the number of flowlines to cache.
	CacheSize int

	// MaxRetryTime is how long to retry failed elevation requests,
	// e.g. "2m". Zero disables retrying.
	MaxRetryTime string
}

// configFromViper reads a Config from the options in cfg.
func configFromViper(cfg *viper.Viper) *Config {
	return &Config{
		WorkingCRS:    cfg.GetString("WorkingCRS"),
		Resolution:    cfg.GetString("Resolution"),
		Interpolation: cfg.GetString("Interpolation"),
		Fitter:        cfg.GetString("Fitter"),
		Tension:       cfg.GetFloat64("Tension"),
		Padding:       cfg.GetFloat64("Padding"),
		NLDIURL:       cfg.GetString("NLDIURL"),
		ElevationURL:  cfg.GetString("ElevationURL"),
		DEMFile:       os.ExpandEnv(cfg.GetString("DEMFile")),
		DEMCRS:        cfg.GetString("DEMCRS"),
		CacheSize:     cfg.GetInt("CacheSize"),
		MaxRetryTime:  cfg.GetString("MaxRetryTime"),
	}
}

// Pipeline creates a cross-section pipeline from the configuration.
func (c *Config) Pipeline(log logrus.FieldLogger) (*Pipeline, error) {
	p := &Pipeline{Padding: c.Padding, Log: log}
	var err error
	if c.WorkingCRS != "" {
		if p.SR, err = xstool.ParseSR(c.WorkingCRS); err != nil {
			return nil, err
		}
	}
	res := c.Resolution
	if res == "" {
		res = "10m"
	}
	if p.Resolution, err = xstool.ParseResolution(res); err != nil {
		return nil, err
	}
	if p.Interpolation, err = xstool.ParseInterpolation(c.Interpolation); err != nil {
		return nil, err
	}
	switch strings.ToLower(c.Fitter) {
	case "", "tension":
		p.Fitter = xstool.TensionSpline{Tension: c.Tension}
	case "linear":
		p.Fitter = xstool.LinearFit{}
	default:
		return nil, fmt.Errorf("xsutil: invalid Fitter %q; valid options are tension and linear", c.Fitter)
	}
	if c.Tension < 0 {
		return nil, fmt.Errorf("xsutil: Tension must be >= 0 but is %g", c.Tension)
	}

	p.Centerlines = &nldi.Client{BaseURL: c.NLDIURL, CacheSize: c.CacheSize, Log: log}

	if c.DEMFile != "" {
		crs := c.DEMCRS
		if crs == "" {
			crs = xstool.WebMapProj
		}
		sr, err := xstool.ParseSR(crs)
		if err != nil {
			return nil, err
		}
		if p.Elevation, err = dem.OpenASCIIGrid(c.DEMFile, sr); err != nil {
			return nil, err
		}
		return p, nil
	}
	var src xstool.ElevationSource = &dem.ThreeDEP{URL: c.ElevationURL, Log: log}
	if c.MaxRetryTime != "" {
		d, err := cast.ToDurationE(c.MaxRetryTime)
		if err != nil {
			return nil, fmt.Errorf("xsutil: invalid MaxRetryTime: %v", err)
		}
		if d > 0 {
			src = &dem.Retry{Source: src, MaxElapsedTime: d, Log: log}
		}
	}
	p.Elevation = src
	return p, nil
}

// parsePoint parses a coordinate pair given as two strings.
func parsePoint(name string, v []string) (geom.Point, error) {
	if len(v) != 2 {
		return geom.Point{}, fmt.Errorf("xsutil: %s must have two values but has %d", name, len(v))
	}
	x, err := cast.ToFloat64E(strings.TrimSpace(v[0]))
	if err != nil {
		return geom.Point{}, fmt.Errorf("xsutil: %s: %v", name, err)
	}
	y, err := cast.ToFloat64E(strings.TrimSpace(v[1]))
	if err != nil {
		return geom.Point{}, fmt.Errorf("xsutil: %s: %v", name, err)
	}
	return geom.Point{X: x, Y: y}, nil
}

// checkLonLat makes sure that p is a valid longitude-latitude point.
func checkLonLat(p geom.Point) error {
	if !(p.X >= -180 && p.X <= 180) {
		return fmt.Errorf("xsutil: longitude %g is not between -180 and 180", p.X)
	}
	if !(p.Y >= -90 && p.Y <= 90) {
		return fmt.Errorf("xsutil: latitude %g is not between -90 and 90", p.Y)
	}
	return nil
}

// checkOutputFile expands any environment variables in f and makes sure
// that its directory exists. An empty f means standard output.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("xsutil: the output file directory doesn't exist: %v", err)
	}
	return f, nil
}
