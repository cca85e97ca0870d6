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
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

// On each knot interval [s_i, s_i+1] of length h the spline satisfies
// f'' - σ²f = linear, so with t = (s - s_i)/h
//
//	f(s) = y_i(1-t) + y_i+1 t + z_i φ(1-t) + z_i+1 φ(t)
//
// where z are the second derivatives at the knots and
//
//	φ(t) = h² (sinh(σht)/sinh(σh) - t) / (σh)².
//
// Continuity of f' at the interior knots gives a symmetric tridiagonal
// system in z with diagonal d_i-1 + d_i and off-diagonal e_i.

// seriesLimit is the value of σh below which the series expansions of the
// interval functions are used, avoiding cancellation.
const seriesLimit = 0.1

// intervalCoeffs returns the diagonal (d) and off-diagonal (e) contributions
// of an interval of length h with scaled tension sigma.
func intervalCoeffs(h, sigma float64) (d, e float64) {
	x := sigma * h
	if x < seriesLimit {
		x2 := x * x
		x4 := x2 * x2
		return h * (1./3 - x2/45 + 2*x4/945 - x4*x2/4725),
			h * (1./6 - 7*x2/360 + 31*x4/15120 - 127*x4*x2/604800)
	}
	em := math.Exp(-2 * x)
	coth := (1 + em) / (1 - em)
	csch := 2 * math.Exp(-x) / (1 - em)
	return h * (coth - 1/x) / x, h * (1/x - csch) / x
}

// phi returns φ(t) and dφ/ds evaluated at fraction t of an interval of
// length h.
func phi(t, h, sigma float64) (v, dv float64) {
	x := sigma * h
	t2 := t * t
	if x < seriesLimit {
		x2 := x * x
		t4 := t2 * t2
		v = h * h * t * ((t2-1)/6 + x2*(3*t4-10*t2+7)/360 + x2*x2*(3*t4*t2-21*t4+49*t2-31)/15120)
		dv = h * ((3*t2-1)/6 + x2*(15*t4-30*t2+7)/360 + x2*x2*(21*t4*t2-105*t4+147*t2-31)/15120)
		return v, dv
	}
	denom := 1 - math.Exp(-2*x)
	g := math.Exp(x * (t - 1))
	ratio := g * (1 - math.Exp(-2*t*x)) / denom
	dratio := x * g * (1 + math.Exp(-2*t*x)) / denom
	return h * h * (ratio - t) / (x * x), h * (dratio - 1) / (x * x)
}

// spline2D is a parametric tension spline through a set of planar points.
type spline2D struct {
	s      []float64 // cumulative chord length at each knot
	x, y   []float64
	zx, zy []float64 // second derivatives at each knot
	sigma  float64
}

// newSpline2D fits a tension spline through pts, which must contain at least
// two distinct consecutive points.
func newSpline2D(pts []geom.Point, tension float64) (*spline2D, error) {
	n := len(pts)
	sp := &spline2D{
		s:  chordLengths(pts),
		x:  make([]float64, n),
		y:  make([]float64, n),
		zx: make([]float64, n),
		zy: make([]float64, n),
	}
	for i, p := range pts {
		sp.x[i], sp.y[i] = p.X, p.Y
	}
	sp.sigma = tension * float64(n-1) / sp.s[n-1]

	m := n - 2 // number of interior knots
	if m == 0 {
		return sp, nil // a single interval is a straight line
	}
	a := mat.NewSymDense(m, nil)
	rx := make([]float64, m)
	ry := make([]float64, m)
	dPrev, _ := intervalCoeffs(sp.s[1]-sp.s[0], sp.sigma)
	for k := 1; k <= m; k++ {
		h0 := sp.s[k] - sp.s[k-1]
		h1 := sp.s[k+1] - sp.s[k]
		d, e := intervalCoeffs(h1, sp.sigma)
		a.SetSym(k-1, k-1, dPrev+d)
		if k < m {
			a.SetSym(k-1, k, e)
		}
		rx[k-1] = (sp.x[k+1]-sp.x[k])/h1 - (sp.x[k]-sp.x[k-1])/h0
		ry[k-1] = (sp.y[k+1]-sp.y[k])/h1 - (sp.y[k]-sp.y[k-1])/h0
		dPrev = d
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, &DegenerateInputError{What: "centerline", Reason: "spline system is not positive definite"}
	}
	var zx, zy mat.VecDense
	if err := chol.SolveVecTo(&zx, mat.NewVecDense(m, rx)); err != nil {
		return nil, &DegenerateInputError{What: "centerline", Reason: err.Error()}
	}
	if err := chol.SolveVecTo(&zy, mat.NewVecDense(m, ry)); err != nil {
		return nil, &DegenerateInputError{What: "centerline", Reason: err.Error()}
	}
	for k := 1; k <= m; k++ {
		sp.zx[k] = zx.AtVec(k - 1)
		sp.zy[k] = zy.AtVec(k - 1)
	}
	return sp, nil
}

// length returns the parameter length of the spline.
func (sp *spline2D) length() float64 { return sp.s[len(sp.s)-1] }

// eval returns the position and first derivative of the spline at
// parameter value v.
func (sp *spline2D) eval(v float64) (p geom.Point, dx, dy float64) {
	i := interval(sp.s, v)
	h := sp.s[i+1] - sp.s[i]
	t := (v - sp.s[i]) / h
	phi0, dphi0 := phi(1-t, h, sp.sigma)
	phi1, dphi1 := phi(t, h, sp.sigma)
	p.X = sp.x[i]*(1-t) + sp.x[i+1]*t + sp.zx[i]*phi0 + sp.zx[i+1]*phi1
	p.Y = sp.y[i]*(1-t) + sp.y[i+1]*t + sp.zy[i]*phi0 + sp.zy[i+1]*phi1
	dx = (sp.x[i+1]-sp.x[i])/h - sp.zx[i]*dphi0 + sp.zx[i+1]*dphi1
	dy = (sp.y[i+1]-sp.y[i])/h - sp.zy[i]*dphi0 + sp.zy[i+1]*dphi1
	return p, dx, dy
}

// speed returns |r'(v)|.
func (sp *spline2D) speed(v float64) float64 {
	_, dx, dy := sp.eval(v)
	return math.Hypot(dx, dy)
}

// arcPanels is the number of quadrature panels per knot interval.
const arcPanels = 4

// arclen returns the arc length of the spline between parameter values
// v0 and v1, which must lie within the same knot interval.
func (sp *spline2D) arclen(v0, v1 float64) float64 {
	var sum float64
	dv := (v1 - v0) / arcPanels
	for j := 0; j < arcPanels; j++ {
		a := v0 + float64(j)*dv
		mid, half := a+dv/2, dv/2
		for _, c := range gaussLegendre16 {
			sum += c[0] * half * sp.speed(mid+c[1]*half)
		}
	}
	return sum
}

// resample evaluates the spline at nx points equally spaced in arc length.
func (sp *spline2D) resample(nx int) *FittedCurve {
	nk := len(sp.s)
	cum := make([]float64, nk)
	for i := 1; i < nk; i++ {
		cum[i] = cum[i-1] + sp.arclen(sp.s[i-1], sp.s[i])
	}
	total := cum[nk-1]

	c := &FittedCurve{Points: make([]geom.Point, nx), Phi: make([]float64, nx)}
	for k := 0; k < nx; k++ {
		var v float64
		switch k {
		case 0:
			v = 0
		case nx - 1:
			v = sp.length()
		default:
			v = sp.solveArclen(cum, total*float64(k)/float64(nx-1))
		}
		p, dx, dy := sp.eval(v)
		c.Points[k] = p
		c.Phi[k] = math.Atan2(dy, dx)
	}
	// The end points are the original vertices exactly.
	c.Points[0] = geom.Point{X: sp.x[0], Y: sp.y[0]}
	c.Points[nx-1] = geom.Point{X: sp.x[nk-1], Y: sp.y[nk-1]}
	unwrap(c.Phi)
	return c
}

// solveArclen returns the parameter value at which the arc length from the
// start of the spline equals a, where cum holds the arc length at each knot.
// It uses Newton iteration safeguarded by bisection within the knot interval.
func (sp *spline2D) solveArclen(cum []float64, a float64) float64 {
	i := interval(cum, a)
	lo, hi := sp.s[i], sp.s[i+1]
	target := a - cum[i]
	seg := cum[i+1] - cum[i]
	if seg <= 0 {
		return lo
	}
	v := lo + (hi-lo)*target/seg
	tol := 1e-10 * math.Max(seg, 1)
	for iter := 0; iter < 50; iter++ {
		f := sp.arclen(sp.s[i], v) - target
		if math.Abs(f) < tol {
			break
		}
		if f > 0 {
			hi = v
		} else {
			lo = v
		}
		next := v
		if ds := sp.speed(v); ds > 0 {
			next = v - f/ds
		}
		if next <= lo || next >= hi || math.IsNaN(next) {
			next = (lo + hi) / 2
		}
		v = next
	}
	return v
}

// gaussLegendre16 holds the 16-point Gauss-Legendre quadrature weights and
// abscissae on [-1, 1].
var gaussLegendre16 = [...][2]float64{
	{0.1894506104550685, -0.0950125098376374},
	{0.1894506104550685, 0.0950125098376374},
	{0.1826034150449236, -0.2816035507792589},
	{0.1826034150449236, 0.2816035507792589},
	{0.1691565193950025, -0.4580167776572274},
	{0.1691565193950025, 0.4580167776572274},
	{0.1495959888165767, -0.6178762444026438},
	{0.1495959888165767, 0.6178762444026438},
	{0.1246289712555339, -0.7554044083550030},
	{0.1246289712555339, 0.7554044083550030},
	{0.0951585116824928, -0.8656312023878318},
	{0.0951585116824928, 0.8656312023878318},
	{0.0622535239386479, -0.9445750230732326},
	{0.0622535239386479, 0.9445750230732326},
	{0.0271524594117541, -0.9894009349916499},
	{0.0271524594117541, 0.9894009349916499},
}
