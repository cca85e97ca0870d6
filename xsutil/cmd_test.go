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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/xstool"
)

// writeTestGrid writes a 10 m web mercator ASCII grid around -103.8005°,
// 40.27° with elevation 100 + 0.5(x-xll) and returns its path.
func writeTestGrid(t *testing.T) string {
	c, err := xstool.Project(geom.LineString{{X: -103.8005, Y: 40.27}}, xstool.WebMercator())
	if err != nil {
		t.Fatal(err)
	}
	const cols, rows, cell = 100, 60, 10.
	xll, yll := math.Floor(c[0].X)-cols*cell/2, math.Floor(c[0].Y)-rows*cell/2
	var b bytes.Buffer
	fmt.Fprintf(&b, "ncols %d\nnrows %d\nxllcorner %g\nyllcorner %g\ncellsize %g\nNODATA_value -9999\n", cols, rows, xll, yll, cell)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			fmt.Fprintf(&b, "%g ", 100+0.5*(float64(j)+0.5)*cell)
		}
		b.WriteString("\n")
	}
	f := filepath.Join(t.TempDir(), "dem.asc")
	if err := os.WriteFile(f, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

// resetOutputs clears the output options shared between commands.
func resetOutputs() {
	for _, k := range []string{"OutputFile", "PlotFile", "CurveFile"} {
		Cfg.Set(k, "")
	}
	Cfg.Set("OutputCRS", "epsg:4326")
}

func readProfile(t *testing.T, r *bytes.Buffer) *xstool.FeatureCollection {
	fc := new(xstool.FeatureCollection)
	if err := json.NewDecoder(r).Decode(fc); err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "xstool v" + xstool.Version; !strings.Contains(b.String(), want) {
		t.Errorf("have %q, want %q", b.String(), want)
	}
}

func TestXSAtEndptsCommand(t *testing.T) {
	resetOutputs()
	dir := t.TempDir()
	Cfg.Set("DEMFile", writeTestGrid(t))
	Cfg.Set("DEMCRS", "epsg:3857")
	Cfg.Set("InputCRS", "epsg:4326")
	Cfg.Set("startpt", []string{"-103.801", "40.27"})
	Cfg.Set("endpt", []string{"-103.800", "40.27"})
	Cfg.Set("numpts", 11)
	Cfg.Set("OutputFile", filepath.Join(dir, "xs.geojson"))
	Cfg.Set("PlotFile", filepath.Join(dir, "xs.png"))
	defer resetOutputs()

	Root.SetArgs([]string{"xsatendpts"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(filepath.Join(dir, "xs.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	fc := readProfile(t, bytes.NewBuffer(out))
	if len(fc.Features) != 11 {
		t.Fatalf("have %d features, want 11", len(fc.Features))
	}
	first := fc.Features[0].Properties
	last := fc.Features[10].Properties
	dz := last["elevation"].(float64) - first["elevation"].(float64)
	if want := 0.5 * last["distance"].(float64); math.Abs(dz-want) > 1e-6 {
		t.Errorf("elevation change: have %g, want %g", dz, want)
	}
	if fi, err := os.Stat(filepath.Join(dir, "xs.png")); err != nil || fi.Size() == 0 {
		t.Errorf("plot was not written: %v", err)
	}
}

func TestXSAtPointCommand(t *testing.T) {
	resetOutputs()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/comid/position":
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"comid":"2889214"}}]}`)
		case "/comid/2889214":
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"type":"Feature",
"geometry":{"type":"LineString","coordinates":[[-103.8,40.26],[-103.8,40.27],[-103.8,40.28]]},"properties":{}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	curve := filepath.Join(t.TempDir(), "curve.geojson")
	Cfg.Set("NLDIURL", srv.URL)
	Cfg.Set("DEMFile", writeTestGrid(t))
	Cfg.Set("DEMCRS", "epsg:3857")
	Cfg.Set("lonlat", []string{"-103.8001", "40.27"})
	Cfg.Set("width", 100.)
	Cfg.Set("numpts", 11)
	Cfg.Set("CurveFile", curve)
	defer resetOutputs()

	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"xsatpoint"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	fc := readProfile(t, &b)
	if len(fc.Features) != 11 {
		t.Fatalf("have %d features, want 11", len(fc.Features))
	}
	if d := fc.Features[10].Properties["distance"].(float64); different(d, 100, 1e-9) {
		t.Errorf("width: have %g, want 100", d)
	}
	c, err := os.ReadFile(curve)
	if err != nil {
		t.Fatal(err)
	}
	if fc := readProfile(t, bytes.NewBuffer(c)); len(fc.Features) != 2 {
		t.Errorf("have %d curve features, want 2", len(fc.Features))
	}

	Cfg.Set("lonlat", []string{"-103.8001"})
	Root.SetArgs([]string{"xsatpoint"})
	if err := Root.Execute(); err == nil {
		t.Error("a single coordinate should fail")
	}
	Cfg.Set("lonlat", []string{"-190", "40.27"})
	if err := Root.Execute(); err == nil {
		t.Error("an invalid longitude should fail")
	}
}

func TestAvailableCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/21/query" {
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{}}]}`)
			return
		}
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()
	Cfg.Set("IndexURL", srv.URL)

	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"available", "--", "-103.81", "40.26", "-103.80", "40.27"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if have := strings.TrimSpace(b.String()); have != "10m" {
		t.Errorf("have %q, want 10m", have)
	}
}

func TestDatumCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nwis":
			fmt.Fprint(w, "agency_cd\tsite_no\tdec_lat_va\tdec_long_va\tdec_coord_datum_cd\talt_va\talt_datum_cd\n"+
				"5s\t15s\t16s\t16s\t10s\t8s\t10s\n"+
				"USGS\t02334480\t34.1329\t-84.0696\tNAD83\t925.\tNGVD29\n")
		case "/ncat":
			fmt.Fprint(w, `{"destOrthoht":"281.635"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	Cfg.Set("NWISURL", srv.URL+"/nwis")
	Cfg.Set("NCATURL", srv.URL+"/ncat")

	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"datum", "02334480"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if have := strings.TrimSpace(b.String()); have != "281.635" {
		t.Errorf("have %q, want 281.635", have)
	}
}
