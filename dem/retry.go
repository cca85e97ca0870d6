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
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xstool"
)

var discard = &logrus.Logger{Out: io.Discard, Formatter: new(logrus.TextFormatter), Hooks: make(logrus.LevelHooks)}

// Retry wraps an ElevationSource so that failed requests are retried with
// exponential backoff. Missing coverage, out-of-bounds points, HTTP client
// errors and context cancellation are not retried.
type Retry struct {
	Source xstool.ElevationSource

	// MaxElapsedTime is the time after which retrying stops. If it is zero
	// the backoff default of 15 minutes is used.
	MaxElapsedTime time.Duration

	// Log receives a message before each retry. It may be nil.
	Log logrus.FieldLogger
}

// Elevation implements xstool.ElevationSource.
func (r *Retry) Elevation(ctx context.Context, b *geom.Bounds, res xstool.Resolution, sr *proj.SR) (*xstool.Grid, error) {
	bo := backoff.NewExponentialBackOff()
	if r.MaxElapsedTime > 0 {
		bo.MaxElapsedTime = r.MaxElapsedTime
	}
	log := r.Log
	if log == nil {
		log = discard
	}
	var g *xstool.Grid
	err := backoff.RetryNotify(func() error {
		var err error
		g, err = r.Source.Elevation(ctx, b, res, sr)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		log.Printf("%v: retrying in %v", err, d)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// retryable reports whether an elevation request that failed with err may
// succeed if it is made again.
func retryable(err error) bool {
	var (
		cm *xstool.CoverageMissingError
		ob *xstool.OutOfBoundsError
		se *StatusError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &cm), errors.As(err, &ob):
		return false
	case errors.As(err, &se):
		return se.Temporary()
	}
	return true
}
