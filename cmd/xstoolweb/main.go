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


// Command xstoolweb serves the xstool cross-section processes over HTTP.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool/xsutil"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

var config = flag.String("config", "xstoolweb.toml", "Path to the configuration file")

func main() {
	flag.Parse()

	f, err := os.Open(os.ExpandEnv(*config))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	var c xsutil.ServerConfig
	_, err = toml.DecodeReader(f, &c)
	if err != nil {
		log.Fatal(err)
	}
	if c.Address == "" {
		c.Address = ":8080"
	}

	logger.Info("setting up...")
	s, err := xsutil.NewServer(&c)
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}
	s.Log = logger

	srv := &http.Server{
		Addr:              c.Address,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		// Elevation requests can be slow, so there is no write timeout.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Infof("listening on %s", c.Address)
	logger.Fatal(srv.ListenAndServe())
}
