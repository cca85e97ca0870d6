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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
	"github.com/spf13/cast"
)

// Process identifiers.
const (
	XSAtPointID     = "nldi-xsatpoint"
	XSAtEndpointsID = "nldi-xsatendpts"
)

// ServerConfig holds the configuration of a process server.
type ServerConfig struct {
	Config

	// Address is the address the server listens on, e.g. ":8080".
	Address string

	// OutputCRS is the spatial reference of returned profiles. The
	// default is EPSG:4326.
	OutputCRS string
}

// Server serves the cross-section processes over HTTP.
type Server struct {
	pipeline *Pipeline
	out      *proj.SR

	mux      *http.ServeMux
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	Log logrus.FieldLogger
}

// NewServer creates a new process server.
func NewServer(c *ServerConfig) (*Server, error) {
	s := &Server{Log: logrus.StandardLogger(), registry: prometheus.NewRegistry()}
	var err error
	if s.pipeline, err = c.Pipeline(s.Log); err != nil {
		return nil, fmt.Errorf("xsutil: creating server: %v", err)
	}
	crs := c.OutputCRS
	if crs == "" {
		crs = "epsg:4326"
	}
	if s.out, err = xstool.ParseSR(crs); err != nil {
		return nil, fmt.Errorf("xsutil: creating server: %v", err)
	}

	f := promauto.With(s.registry)
	s.requests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xstool",
		Subsystem: "process",
		Name:      "requests_total",
		Help:      "Total process execution requests",
	}, []string{"process", "status"})
	s.duration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xstool",
		Subsystem: "process",
		Name:      "duration_seconds",
		Help:      "Process execution latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"process"})

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/processes", s.listProcesses)
	s.mux.HandleFunc("/processes/", s.process)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s, nil
}

// Pipeline returns the pipeline the server executes requests with.
func (s *Server) Pipeline() *Pipeline { return s.pipeline }

// processInfo describes a process and its inputs.
type processInfo struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Version     string                 `json:"version"`
	Inputs      map[string]inputInfo   `json:"inputs"`
	Outputs     map[string]inputInfo   `json:"outputs"`
	Example     map[string]interface{} `json:"example"`
}

type inputInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	MinOccurs   int      `json:"minOccurs"`
	MaxOccurs   int      `json:"maxOccurs"`
	Choices     []string `json:"choices,omitempty"`
	Default     string   `json:"default,omitempty"`
}

var processes = map[string]*processInfo{
	XSAtPointID: {
		ID:          XSAtPointID,
		Title:       "NLDI cross-section at point",
		Description: "Returns a cross-section of the given width across the stream nearest to a point.",
		Version:     xstool.Version,
		Inputs: map[string]inputInfo{
			"lat":    {Title: "Latitude", Description: "Latitude of the point, in decimal degrees.", Type: "number", MinOccurs: 1, MaxOccurs: 1},
			"lon":    {Title: "Longitude", Description: "Longitude of the point, in decimal degrees.", Type: "number", MinOccurs: 1, MaxOccurs: 1},
			"width":  {Title: "Width", Description: "Width of the cross-section in meters.", Type: "number", MinOccurs: 1, MaxOccurs: 1},
			"numpts": {Title: "Number of points", Description: "Number of points in the cross-section. Even numbers are increased by one.", Type: "integer", MinOccurs: 1, MaxOccurs: 1},
		},
		Outputs: map[string]inputInfo{
			"nldi-xsatpoint-response": {Title: "Cross-section", Description: "GeoJSON FeatureCollection of profile points with distance and elevation properties.", Type: "application/geo+json"},
		},
		Example: map[string]interface{}{"inputs": map[string]interface{}{
			"lat": 40.2684, "lon": -103.80119, "width": 1000, "numpts": 101,
		}},
	},
	XSAtEndpointsID: {
		ID:          XSAtEndpointsID,
		Title:       "NLDI cross-section between endpoints",
		Description: "Returns a cross-section between two points. Viewed from downstream the first point should be on the left bank.",
		Version:     xstool.Version,
		Inputs: map[string]inputInfo{
			"lat":      {Title: "Latitudes", Description: "Latitudes of the two endpoints, in decimal degrees.", Type: "number", MinOccurs: 2, MaxOccurs: 2},
			"lon":      {Title: "Longitudes", Description: "Longitudes of the two endpoints, in decimal degrees.", Type: "number", MinOccurs: 2, MaxOccurs: 2},
			"numpts":   {Title: "Number of points", Description: "Number of points in the cross-section.", Type: "integer", MinOccurs: 1, MaxOccurs: 1},
			"3dep_res": {Title: "3DEP resolution", Description: "Resolution of the 3DEP elevation data in meters.", Type: "string", MinOccurs: 0, MaxOccurs: 1, Choices: []string{"60", "30", "10", "5", "3", "1"}, Default: "10"},
		},
		Outputs: map[string]inputInfo{
			"nldi-xsatendpts-response": {Title: "Cross-section", Description: "GeoJSON FeatureCollection of profile points with distance and elevation properties.", Type: "application/geo+json"},
		},
		Example: map[string]interface{}{"inputs": map[string]interface{}{
			"lat": []float64{40.267720, 40.270568}, "lon": []float64{-103.801086, -103.800970}, "numpts": 101, "3dep_res": "1",
		}},
	},
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Log.WithFields(logrus.Fields{
		"url":  r.URL.String(),
		"addr": r.RemoteAddr,
	}).Debug("xstool request")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	list := []*processInfo{processes[XSAtPointID], processes[XSAtEndpointsID]}
	writeJSON(w, http.StatusOK, map[string]interface{}{"processes": list})
}

// process handles /processes/{id} and /processes/{id}/execution.
func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/processes/"), "/"), "/")
	info, ok := processes[parts[0]]
	if !ok || len(parts) > 2 || (len(parts) == 2 && parts[1] != "execution") {
		writeError(w, http.StatusNotFound, fmt.Errorf("no process at %s", r.URL.Path))
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, info)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	start := time.Now()
	status := s.execute(w, r, info.ID)
	s.requests.WithLabelValues(info.ID, strconv.Itoa(status)).Inc()
	s.duration.WithLabelValues(info.ID).Observe(time.Since(start).Seconds())
}

// execute runs process id and writes the result, returning the HTTP
// status of the response.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, id string) int {
	in, err := requestInputs(r)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}
	p := *s.pipeline
	log := s.Log.WithFields(logrus.Fields{"process": id, "addr": r.RemoteAddr})
	p.Log = log

	var prof *xstool.Profile
	var title string
	switch id {
	case XSAtPointID:
		prof, title, err = s.xsAtPoint(r.Context(), &p, in)
	case XSAtEndpointsID:
		prof, title, err = s.xsAtEndpoints(r.Context(), &p, in)
	}
	if err != nil {
		log.WithError(err).Info("process failed")
		return writeError(w, errorStatus(err), err)
	}
	if strings.EqualFold(r.URL.Query().Get("f"), "png") {
		w.Header().Set("Content-Type", "image/png")
		if err := prof.Plot(w, title, "png"); err != nil {
			log.WithError(err).Error("plotting profile")
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := prof.EncodeGeoJSON(w); err != nil {
		log.WithError(err).Error("encoding profile")
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (s *Server) xsAtPoint(ctx context.Context, p *Pipeline, in map[string]interface{}) (*xstool.Profile, string, error) {
	lat, err := floatInput(in, "lat")
	if err != nil {
		return nil, "", err
	}
	lon, err := floatInput(in, "lon")
	if err != nil {
		return nil, "", err
	}
	width, err := floatInput(in, "width")
	if err != nil {
		return nil, "", err
	}
	numpts, err := intInput(in, "numpts")
	if err != nil {
		return nil, "", err
	}
	pt := geom.Point{X: lon, Y: lat}
	if err := checkLonLat(pt); err != nil {
		return nil, "", &inputError{err}
	}
	res, err := p.XSAtPoint(ctx, pt, width, numpts, s.out)
	if err != nil {
		return nil, "", err
	}
	return res.Profile, "COMID " + res.COMID, nil
}

func (s *Server) xsAtEndpoints(ctx context.Context, p *Pipeline, in map[string]interface{}) (*xstool.Profile, string, error) {
	lat, err := pairInput(in, "lat")
	if err != nil {
		return nil, "", err
	}
	lon, err := pairInput(in, "lon")
	if err != nil {
		return nil, "", err
	}
	numpts, err := intInput(in, "numpts")
	if err != nil {
		return nil, "", err
	}
	if v, ok := in["3dep_res"]; ok {
		rs, err := cast.ToStringE(v)
		if err != nil {
			return nil, "", &inputError{fmt.Errorf("3dep_res: %v", err)}
		}
		if p.Resolution, err = xstool.ParseResolution(rs); err != nil {
			return nil, "", &inputError{err}
		}
	}
	var pts [2]geom.Point
	for i := range pts {
		pts[i] = geom.Point{X: lon[i], Y: lat[i]}
		if err := checkLonLat(pts[i]); err != nil {
			return nil, "", &inputError{err}
		}
	}
	prof, err := p.XSAtEndpoints(ctx, pts[0], pts[1], numpts, xstool.LongLat(), s.out)
	if err != nil {
		return nil, "", err
	}
	return prof, "Cross-section", nil
}

// inputError is a problem with the inputs of a request.
type inputError struct{ err error }

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// requestInputs reads process inputs from the body of a POST request,
// formatted as {"inputs": {...}}, or from the query of a GET request.
// Query values that are repeated or contain commas become lists.
func requestInputs(r *http.Request) (map[string]interface{}, error) {
	if r.Method == http.MethodPost {
		var body struct {
			Inputs map[string]interface{} `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decoding request body: %v", err)
		}
		if body.Inputs == nil {
			return nil, fmt.Errorf("request body has no inputs")
		}
		return body.Inputs, nil
	}
	in := make(map[string]interface{})
	for k, v := range r.URL.Query() {
		if k == "f" {
			continue
		}
		var vals []string
		for _, vv := range v {
			vals = append(vals, strings.Split(vv, ",")...)
		}
		if len(vals) == 1 {
			in[k] = vals[0]
			continue
		}
		l := make([]interface{}, len(vals))
		for i, vv := range vals {
			l[i] = vv
		}
		in[k] = l
	}
	return in, nil
}

func floatInput(in map[string]interface{}, name string) (float64, error) {
	v, ok := in[name]
	if !ok {
		return 0, &inputError{fmt.Errorf("missing input %q", name)}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &inputError{fmt.Errorf("input %q: %v", name, err)}
	}
	return f, nil
}

func intInput(in map[string]interface{}, name string) (int, error) {
	v, ok := in[name]
	if !ok {
		return 0, &inputError{fmt.Errorf("missing input %q", name)}
	}
	if s, ok := v.(string); ok {
		v = strings.TrimLeft(s, "0")
		if v == "" {
			v = "0"
		}
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, &inputError{fmt.Errorf("input %q: %v", name, err)}
	}
	return i, nil
}

func pairInput(in map[string]interface{}, name string) ([2]float64, error) {
	var o [2]float64
	v, ok := in[name]
	if !ok {
		return o, &inputError{fmt.Errorf("missing input %q", name)}
	}
	l, err := cast.ToSliceE(v)
	if err != nil || len(l) != 2 {
		return o, &inputError{fmt.Errorf("input %q must be a list of two numbers", name)}
	}
	for i, vv := range l {
		if o[i], err = cast.ToFloat64E(vv); err != nil {
			return o, &inputError{fmt.Errorf("input %q: %v", name, err)}
		}
	}
	return o, nil
}

// errorStatus returns the HTTP status corresponding to err.
func errorStatus(err error) int {
	var (
		ie  *inputError
		de  *xstool.DegenerateInputError
		we  *xstool.InvalidWidthError
		ce  *xstool.InvalidCountError
		oe  *xstool.OutOfBoundsError
		le  *xstool.LookupFailedError
		cme *xstool.CoverageMissingError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &de), errors.As(err, &we), errors.As(err, &ce):
		return http.StatusBadRequest
	case errors.As(err, &le):
		return http.StatusNotFound
	case errors.As(err, &oe), errors.As(err, &cme):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) int {
	writeJSON(w, status, map[string]string{
		"code":        http.StatusText(status),
		"description": err.Error(),
	})
	return status
}
