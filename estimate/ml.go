package estimate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/optimize"
)

// MaximumLikelihood solves the exact marginal equations of the
// correlation model used by Approximate,
//
//	sum_j f_ij / (lr_i - lc_j) = row_i
//	sum_i f_ij / (lr_i - lc_j) = col_j,
//
// which are the stationarity conditions of the convex dual
//
//	D = sum_i lr_i row_i - sum_j lc_j col_j - sum_ij f_ij log(lr_i - lc_j)
//
// on the domain lr_i > lc_j. The dual is first minimized by damped
// Newton iterations started from the approximate solution, then the
// root is refined by Levenberg-Marquardt iterations. One column
// equation is implied by the others; it is replaced by the gauge
// condition lc_k = -1/2, where k is the column with the largest
// marginal, which fixes the joint shift of the dual variables. The
// estimate is returned only if the marginal residual norm reaches
// Tol.
type MaximumLikelihood struct {
	Pseudocount float64
	MaxIter     int
	Tol         float64
}

// DefaultMLTol is the default marginal residual norm of the maximum
// likelihood estimate.
const DefaultMLTol = 1e-8

const (
	// gauge is the value of the pinned column dual variable.
	gauge = -0.5
	// newtonIter limits the dual minimization.
	newtonIter = 100
)

// Name returns the estimator name.
func (MaximumLikelihood) Name() string { return "ml" }

// Estimate returns the maximum likelihood joint probability table.
func (e MaximumLikelihood) Estimate(row, col []float64, counts *mat.Dense) (*mat.Dense, error) {
	n, r, c, err := check(row, col, counts)
	if err != nil {
		return nil, err
	}
	lr, lc, freq, err := Approximate{Pseudocount: e.Pseudocount}.Duals(r, c, counts)
	if err != nil {
		return nil, err
	}
	pin := floats.MaxIdx(c)
	x0 := make([]float64, 2*n)
	if floats.Min(lr) > floats.Max(lc) {
		copy(x0, lr)
		copy(x0[n:], lc)
		floats.AddConst(gauge-lc[pin], x0)
	} else {
		// p = f
		log.Debug("ml: approximate duals are outside of the domain")
		for i := 0; i < n; i++ {
			x0[i] = gauge + 1
			x0[n+i] = gauge
		}
	}

	d := dual{n: n, pin: pin, f: freq.RawMatrix(), r: r, c: c}
	x := x0
	sol, err := optimize.Newton(optimize.Objective{Func: d.value, Grad: d.grad, Hess: d.hess},
		x0, optimize.NewtonSettings{MaxIter: newtonIter})
	if sol != nil && sol.Status != optimize.Infeasible {
		x = sol.X
	}
	if err != nil {
		log.Debugf("ml: %v, refining", err)
	}

	maxIter := e.MaxIter
	if maxIter <= 0 {
		maxIter = optimize.DefaultLMSettings.MaxIter
	}
	tol := e.Tol
	if tol <= 0 {
		tol = DefaultMLTol
	}
	root, err := optimize.LevenbergMarquardt(d.residuals, x, 2*n,
		optimize.LMSettings{MaxIter: maxIter, Tol: optimize.TINY, NormTol: tol})
	if err != nil {
		return nil, fmt.Errorf("maximum likelihood estimate: %w", err)
	}
	log.Debugf("ml: %d iterations, residual norm %g", root.Iter, root.Norm)
	return correlated(freq, root.X[:n], root.X[n:]), nil
}

// dual is the dual function of the maximum likelihood problem in
// x = (lr, lc). A quadratic penalty on the gauge makes it strictly
// convex.
type dual struct {
	n, pin int
	f      blas64.General
	r, c   []float64
}

func (d dual) at(i, j int) float64 {
	return d.f.Data[i*d.f.Stride+j]
}

func (d dual) value(x []float64) float64 {
	n := d.n
	v := floats.Dot(x[:n], d.r) - floats.Dot(x[n:], d.c)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := x[i] - x[n+j]
			if !(diff > 0) {
				return math.Inf(1)
			}
			v -= d.at(i, j) * math.Log(diff)
		}
	}
	m := x[n+d.pin] - gauge
	return v + m*m/2
}

func (d dual) grad(g, x []float64) {
	n := d.n
	copy(g, d.r)
	floats.ScaleTo(g[n:], -1, d.c)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := d.at(i, j) / (x[i] - x[n+j])
			g[i] -= p
			g[n+j] += p
		}
	}
	g[n+d.pin] += x[n+d.pin] - gauge
}

func (d dual) hess(h *mat.SymDense, x []float64) {
	n := d.n
	w := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := x[i] - x[n+j]
			v := d.at(i, j) / (diff * diff)
			w.Set(i, i, w.At(i, i)+v)
			w.Set(n+j, n+j, w.At(n+j, n+j)+v)
			w.Set(i, n+j, -v)
		}
	}
	w.Set(n+d.pin, n+d.pin, w.At(n+d.pin, n+d.pin)+1)
	for a := 0; a < 2*n; a++ {
		for b := a; b < 2*n; b++ {
			h.SetSym(a, b, w.At(a, b))
		}
	}
}

// residuals are the marginal residuals with the last column equation
// replaced by the gauge. Outside of the domain they are NaN.
func (d dual) residuals(res, x []float64) {
	n := d.n
	for i := range res {
		res[i] = 0
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := x[i] - x[n+j]
			if !(diff > 0) {
				for k := range res {
					res[k] = math.NaN()
				}
				return
			}
			p := d.at(i, j) / diff
			res[i] += p
			res[n+j] += p
		}
	}
	floats.Sub(res[:n], d.r)
	floats.Sub(res[n:], d.c)
	res[2*n-1] = x[n+d.pin] - gauge
}
