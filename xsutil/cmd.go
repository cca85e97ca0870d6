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

// Package xsutil contains the command-line interface, configuration and
// process server for xstool.
package xsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/gobra"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/xstool"
	"github.com/spatialmodel/xstool/ancillary"
	"github.com/spatialmodel/xstool/dem"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands.
var Log = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to xstool.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputCRS",
			usage: `
              OutputCRS is the spatial reference of the output, as an EPSG
              code or a PROJ4 or WKT definition.`,
			defaultVal: "epsg:4326",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to write the GeoJSON output to. If it
              is empty the output is written to standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is an optional path to write a plot of the profile to.
              The format (png, svg, pdf, ...) is taken from the extension.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags()},
		},
		{
			name: "CurveFile",
			usage: `
              CurveFile is an optional path to write the fitted stream
              centerline and the transect to as GeoJSON, in the working
              spatial reference.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags()},
		},
		{
			name: "Resolution",
			usage: `
              Resolution is the resolution of the 3DEP elevation data to
              use. Valid options are 1m, 3m, 5m, 10m, 30m, and 60m.`,
			shorthand:  "r",
			defaultVal: "10m",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Interpolation",
			usage: `
              Interpolation is the method used to sample elevation at the
              cross-section points: bilinear or nearest.`,
			defaultVal: "bilinear",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "WorkingCRS",
			usage: `
              WorkingCRS is the planar spatial reference that cross-sections
              are built in.`,
			defaultVal: "epsg:3857",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Fitter",
			usage: `
              Fitter is the method used to smooth stream centerlines:
              tension (a tension spline) or linear (no smoothing).`,
			defaultVal: "tension",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Tension",
			usage: `
              Tension is the tension of the centerline spline. Zero gives a
              natural cubic spline and large values approach straight lines
              between the centerline vertices.`,
			defaultVal: xstool.DefaultTension,
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Padding",
			usage: `
              Padding is the distance, in units of WorkingCRS, that the area
              elevation is retrieved for extends beyond the cross-section.`,
			defaultVal: xstool.DefaultPadding,
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "NLDIURL",
			usage: `
              NLDIURL is the location of the NLDI linked-data service.`,
			defaultVal: "https://labs.waterdata.usgs.gov/api/nldi/linked-data",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "ElevationURL",
			usage: `
              ElevationURL is the location of the 3DEP elevation image service.`,
			defaultVal: dem.DefaultImageServer,
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "IndexURL",
			usage: `
              IndexURL is the location of the 3DEP elevation index service.`,
			defaultVal: dem.DefaultIndexServer,
			flagsets:   []*pflag.FlagSet{availableCmd.Flags()},
		},
		{
			name: "DEMFile",
			usage: `
              DEMFile is an optional ESRI ASCII grid file to read elevation
              from instead of the 3DEP service.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "DEMCRS",
			usage: `
              DEMCRS is the spatial reference of DEMFile.`,
			defaultVal: "epsg:3857",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "CacheSize",
			usage: `
              CacheSize is the number of stream flowlines to keep in memory.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "MaxRetryTime",
			usage: `
              MaxRetryTime is how long to keep retrying failed elevation
              requests, for example 2m. Zero disables retrying.`,
			defaultVal: "2m",
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags(), bathyCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "lonlat",
			usage: `
              lonlat is the longitude and latitude of the point to build a
              cross-section at, e.g. --lonlat=-103.80119,40.2684`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags()},
		},
		{
			name: "width",
			usage: `
              width is the width of the cross-section in meters.`,
			shorthand:  "w",
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags()},
		},
		{
			name: "numpts",
			usage: `
              numpts is the number of points in the cross-section. Even
              numbers are increased by one.`,
			shorthand:  "n",
			defaultVal: 101,
			flagsets:   []*pflag.FlagSet{xsAtPointCmd.Flags(), xsAtEndptsCmd.Flags()},
		},
		{
			name: "startpt",
			usage: `
              startpt is the x and y coordinates of the start of the
              cross-section, on the left bank when viewed from downstream.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{xsAtEndptsCmd.Flags()},
		},
		{
			name: "endpt",
			usage: `
              endpt is the x and y coordinates of the end of the cross-section.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{xsAtEndptsCmd.Flags()},
		},
		{
			name: "InputCRS",
			usage: `
              InputCRS is the spatial reference of the input coordinates.`,
			defaultVal: "epsg:4326",
			flagsets:   []*pflag.FlagSet{xsAtEndptsCmd.Flags(), bathyCmd.Flags()},
		},
		{
			name: "Bathy.File",
			usage: `
              Bathy.File is a CSV or XLSX table of surveyed bathymetry.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{bathyCmd.Flags()},
		},
		{
			name: "Bathy.XColumn",
			usage: `
              Bathy.XColumn is the name of the column holding longitude.`,
			defaultVal: "Lon",
			flagsets:   []*pflag.FlagSet{bathyCmd.Flags()},
		},
		{
			name: "Bathy.YColumn",
			usage: `
              Bathy.YColumn is the name of the column holding latitude.`,
			defaultVal: "Lat",
			flagsets:   []*pflag.FlagSet{bathyCmd.Flags()},
		},
		{
			name: "Bathy.ElevationColumn",
			usage: `
              Bathy.ElevationColumn is the name of the column holding elevation.`,
			defaultVal: "Elevation",
			flagsets:   []*pflag.FlagSet{bathyCmd.Flags()},
		},
		{
			name: "Bathy.Extend",
			usage: `
              Bathy.Extend is the distance in meters to extend the survey
              on each side using the DEM.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{bathyCmd.Flags()},
		},
		{
			name: "NWISURL",
			usage: `
              NWISURL is the location of the USGS NWIS site service.`,
			defaultVal: ancillary.DefaultNWISURL,
			flagsets:   []*pflag.FlagSet{datumCmd.Flags()},
		},
		{
			name: "NCATURL",
			usage: `
              NCATURL is the location of the NGS NCAT coordinate conversion service.`,
			defaultVal: ancillary.DefaultNCATURL,
			flagsets:   []*pflag.FlagSet{datumCmd.Flags()},
		},
		{
			name: "Address",
			usage: `
              Address is the address the process server listens on.`,
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("XSTOOL")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	Cfg.BindEnv("config")
	for _, option := range options {
		Cfg.BindEnv(option.name)
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(xsAtPointCmd)
	Root.AddCommand(xsAtEndptsCmd)
	Root.AddCommand(bathyCmd)
	Root.AddCommand(availableCmd)
	Root.AddCommand(datumCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("xstool: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "xstool",
	Short: "Topographic cross-sections of river channels.",
	Long: `xstool builds topographic cross-sections across river channels using the
USGS Network Linked Data Index (NLDI) and 3D Elevation Program (3DEP) services.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'XSTOOL_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	SilenceUsage:      true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of xstool.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("xstool v%s\n", xstool.Version)
	},
	DisableAutoGenTag: true,
}

// commandContext returns a context that is canceled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

var xsAtPointCmd = &cobra.Command{
	Use:   "xsatpoint",
	Short: "Build a cross-section at a point near a stream.",
	Long: `xsatpoint finds the stream nearest to a longitude-latitude point using
the NLDI service, smooths its centerline with a tension spline and builds a
cross-section perpendicular to the stream at the point nearest to the given
location. For example:
    xstool xsatpoint --lonlat=-103.80119,40.2684 --width=1000 --numpts=101`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pt, err := parsePoint("lonlat", Cfg.GetStringSlice("lonlat"))
		if err != nil {
			return err
		}
		if err := checkLonLat(pt); err != nil {
			return err
		}
		out, err := xstool.ParseSR(Cfg.GetString("OutputCRS"))
		if err != nil {
			return err
		}
		p, err := configFromViper(Cfg).Pipeline(Log)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		r, err := p.XSAtPoint(ctx, pt, Cfg.GetFloat64("width"), Cfg.GetInt("numpts"), out)
		if err != nil {
			return err
		}
		if f := Cfg.GetString("CurveFile"); f != "" {
			if err := writeCurve(f, r); err != nil {
				return err
			}
		}
		return writeProfile(cmd.OutOrStdout(), r.Profile, fmt.Sprintf("COMID %s", r.COMID))
	},
	DisableAutoGenTag: true,
}

var xsAtEndptsCmd = &cobra.Command{
	Use:   "xsatendpts",
	Short: "Build a cross-section between two points.",
	Long: `xsatendpts builds a straight cross-section between two points given in
InputCRS. For example:
    xstool xsatendpts --startpt=-103.801086,40.26772 --endpt=-103.80097,40.270568 --numpts=101`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parsePoint("startpt", Cfg.GetStringSlice("startpt"))
		if err != nil {
			return err
		}
		end, err := parsePoint("endpt", Cfg.GetStringSlice("endpt"))
		if err != nil {
			return err
		}
		in, err := xstool.ParseSR(Cfg.GetString("InputCRS"))
		if err != nil {
			return err
		}
		out, err := xstool.ParseSR(Cfg.GetString("OutputCRS"))
		if err != nil {
			return err
		}
		p, err := configFromViper(Cfg).Pipeline(Log)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		prof, err := p.XSAtEndpoints(ctx, start, end, Cfg.GetInt("numpts"), in, out)
		if err != nil {
			return err
		}
		return writeProfile(cmd.OutOrStdout(), prof, "Cross-section")
	},
	DisableAutoGenTag: true,
}

var bathyCmd = &cobra.Command{
	Use:   "bathy",
	Short: "Extend a surveyed bathymetric cross-section onto the banks.",
	Long: `bathy reads a measured bathymetric cross-section from a CSV or XLSX table
and extends it on both ends with elevations from the DEM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := xstool.ParseSR(Cfg.GetString("InputCRS"))
		if err != nil {
			return err
		}
		out, err := xstool.ParseSR(Cfg.GetString("OutputCRS"))
		if err != nil {
			return err
		}
		cols := ancillary.Columns{
			X:         Cfg.GetString("Bathy.XColumn"),
			Y:         Cfg.GetString("Bathy.YColumn"),
			Elevation: Cfg.GetString("Bathy.ElevationColumn"),
		}
		s, err := ancillary.LoadBathymetry(Cfg.GetString("Bathy.File"), cols, in)
		if err != nil {
			return err
		}
		p, err := configFromViper(Cfg).Pipeline(Log)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		prof, err := ancillary.Extend(ctx, s, Cfg.GetFloat64("Bathy.Extend"), p.Elevation, p.Resolution, p.sr())
		if err != nil {
			return err
		}
		if prof, err = prof.Reproject(out); err != nil {
			return err
		}
		return writeProfile(cmd.OutOrStdout(), prof, "Extended survey")
	},
	DisableAutoGenTag: true,
}

var availableCmd = &cobra.Command{
	Use:   "available",
	Short: "List the 3DEP resolutions available in an area.",
	Long: `available lists the 3DEP elevation resolutions that have data within a
longitude-latitude box. For example:
    xstool available -- -103.81 40.26 -103.80 40.27`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		lo, err := parsePoint("minimum corner", args[0:2])
		if err != nil {
			return err
		}
		hi, err := parsePoint("maximum corner", args[2:4])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		x := &dem.Index{URL: Cfg.GetString("IndexURL"), Log: Log}
		res, err := x.Available(ctx, &geom.Bounds{Min: lo, Max: hi})
		if err != nil {
			return err
		}
		s := make([]string, len(res))
		for i, r := range res {
			s[i] = r.String()
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(s, " "))
		return nil
	},
	DisableAutoGenTag: true,
}

var datumCmd = &cobra.Command{
	Use:   "datum site",
	Short: "Print the datum of a USGS stream gage.",
	Long: `datum prints the datum of a USGS stream gage in meters NAVD88. Gages
reported in NGVD29 are converted using the NGS NCAT service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &ancillary.DatumClient{NWISURL: Cfg.GetString("NWISURL"), NCATURL: Cfg.GetString("NCATURL"), Log: Log}
		ctx, cancel := commandContext()
		defer cancel()
		z, err := c.GageDatum(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g\n", z)
		return nil
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cross-section process server.",
	Long: `serve starts an HTTP server offering the xsatpoint and xsatendpts
processes. Profiles are also available as PNG plots, and metrics are
served at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &ServerConfig{
			Config:    *configFromViper(Cfg),
			Address:   Cfg.GetString("Address"),
			OutputCRS: Cfg.GetString("OutputCRS"),
		}
		s, err := NewServer(c)
		if err != nil {
			return err
		}
		s.Log = Log
		Log.Infof("listening on %s", c.Address)
		return http.ListenAndServe(c.Address, s)
	},
	DisableAutoGenTag: true,
}

// writeProfile writes p as GeoJSON to the configured output file, or to w
// if there is none, and plots it if a plot file is configured.
func writeProfile(w io.Writer, p *xstool.Profile, title string) error {
	f, err := checkOutputFile(Cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	if f != "" {
		file, err := os.Create(f)
		if err != nil {
			return fmt.Errorf("xsutil: %v", err)
		}
		defer file.Close()
		w = file
	}
	if err := p.EncodeGeoJSON(w); err != nil {
		return err
	}
	pf, err := checkOutputFile(Cfg.GetString("PlotFile"))
	if err != nil {
		return err
	}
	if pf != "" {
		file, err := os.Create(pf)
		if err != nil {
			return fmt.Errorf("xsutil: %v", err)
		}
		defer file.Close()
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(pf)), ".")
		if err := p.Plot(file, title, format); err != nil {
			return err
		}
	}
	return nil
}

// writeCurve writes the fitted centerline and transect of r to f as a
// GeoJSON FeatureCollection.
func writeCurve(f string, r *PointResult) error {
	f, err := checkOutputFile(f)
	if err != nil {
		return err
	}
	file, err := os.Create(f)
	if err != nil {
		return fmt.Errorf("xsutil: %v", err)
	}
	defer file.Close()
	fc, err := r.FeatureCollection()
	if err != nil {
		return err
	}
	return json.NewEncoder(file).Encode(fc)
}

// StartWebServer starts the configuration GUI.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	http.HandleFunc("/setConfig", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		configFile := r.Form["config"][0]
		Root.Flags().Set("config", configFile)
		err := setConfig()
		if err != nil {
			http.Error(w, err.Error(), 204)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		e := json.NewEncoder(w)
		if err := e.Encode(config); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	})

	Log.Println("Loading front-end...")

	for _, cmd := range []*cobra.Command{Root, versionCmd, xsAtPointCmd, xsAtEndptsCmd,
		bathyCmd, availableCmd, datumCmd, serveCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	const address = "localhost:7272"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>xstool</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>xstool</h1>
	<p>Choose a cross-section command and configure it below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
	<footer>
		© 2021 xstool authors
	</footer>
</div>

<script>
// When the configuration file path changes, load its values into the
// input fields.

let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + address + `/setConfig?config="+configInput.value)
		.then( res => {
			if (res.status !== 200) {
				if (res.status == 204) {
					configInput.classList.remove("blue-border");
					configInput.classList.remove("green-border");
					configInput.classList.add("red-border");
				} else {
					console.log("Error fetching /setConfig: ", res.status);
				}
			} else {
				res.json().then( data => {
					configInput.classList.remove("red-border");
					for (let key in data)
						for(let f of allFlags)
							if (f.dataset.name == key) {
								let input = f.children[0];
								var newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g,'');
								if (input.value != newValue) {
									input.value = newValue
									input.classList.remove("blue-border");
									input.classList.add("green-border");
								}
							}
				})
			}
		})
		.catch( err => {
			console.log("Error fetching /setConfig", err)
		})
})
</script>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	Log.Println("Server starting... ")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
}
