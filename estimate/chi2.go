package estimate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/optimize"
)

// ExactMinChiSquare minimizes the chi-square distance
// sum (p_ij - f_ij)^2 / f_ij to the regularized frequencies f
// subject to the marginal constraints and p >= 0. The counts are
// regularized by adding Pseudoprob times the independent table.
type ExactMinChiSquare struct {
	Pseudoprob float64
}

// Name returns the estimator name.
func (ExactMinChiSquare) Name() string { return "chi2" }

// Estimate returns the minimum chi-square joint probability table.
func (e ExactMinChiSquare) Estimate(row, col []float64, counts *mat.Dense) (*mat.Dense, error) {
	n, r, c, err := check(row, col, counts)
	if err != nil {
		return nil, err
	}
	freq := regularized(counts, r, c, e.Pseudoprob)
	nv := n * n

	// 1/2 x^T P x + q^T x with P = 2 diag(1/f), q = -2
	p := mat.NewDense(nv, nv, nil)
	q := make([]float64, nv)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			f := freq.At(i, j)
			if !(f > 0) {
				return nil, fmt.Errorf("%w: zero frequency at (%d, %d), use a positive pseudoprob",
					ErrMarginal, i, j)
			}
			p.Set(i*n+j, i*n+j, 2/f)
		}
	}
	floats.AddConst(-2, q)

	// row sums and all but the last column sum
	a := mat.NewDense(2*n-1, nv, nil)
	b := make([]float64, 2*n-1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, i*n+j, 1)
			if j < n-1 {
				a.Set(n+j, i*n+j, 1)
			}
		}
		b[i] = r[i]
	}
	copy(b[n:], c[:n-1])

	x0 := make([]float64, nv)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x0[i*n+j] = r[i] * c[j]
		}
	}
	res, err := optimize.QP(p, q, a, b, x0, 0)
	if err != nil {
		return nil, fmt.Errorf("minimum chi-square estimate: %w", err)
	}
	return mat.NewDense(n, n, res.X), nil
}

// MinChiSquare is the linearized minimum chi-square method of Deming
// and Stephan. The estimate has the form
//
//	p_ij = f_ij (1 + lr_i + lc_j)
//
// and the dual variables solve a linear system which is degenerate
// under lr += a, lc -= a; the minimum norm solution is used. The
// estimate can contain negative values. With Tune set, Pseudoprob is
// increased until the estimate is non-negative, at most MaxTune times.
// The increment is TuneFraction of the total count, but at least one.
type MinChiSquare struct {
	Pseudoprob float64
	Tune       bool
	MaxTune    int
}

// Name returns the estimator name.
func (MinChiSquare) Name() string { return "chi2-linear" }

// Estimate returns the linearized minimum chi-square table.
func (e MinChiSquare) Estimate(row, col []float64, counts *mat.Dense) (*mat.Dense, error) {
	n, r, c, err := check(row, col, counts)
	if err != nil {
		return nil, err
	}
	pseudoprob := e.Pseudoprob
	p, err := e.estimate(n, r, c, counts, pseudoprob)
	if err != nil || !e.Tune {
		return p, err
	}
	maxTune := e.MaxTune
	if maxTune <= 0 {
		maxTune = DefaultMaxTune
	}
	inc := math.Max(1, TuneFraction*mat.Sum(counts))
	for step := 0; mat.Min(p) < 0; step++ {
		if step == maxTune {
			return nil, fmt.Errorf("%w: pseudoprob %v", ErrTuneLimit, pseudoprob)
		}
		pseudoprob += inc
		if p, err = e.estimate(n, r, c, counts, pseudoprob); err != nil {
			return nil, err
		}
	}
	if pseudoprob != e.Pseudoprob {
		log.Infof("chi2-linear: pseudoprob tuned to %v (%.2f of the counts)",
			pseudoprob, pseudoprob/mat.Sum(counts))
	}
	return p, nil
}

func (e MinChiSquare) estimate(n int, r, c []float64, counts *mat.Dense, pseudoprob float64) (*mat.Dense, error) {
	freq := regularized(counts, r, c, pseudoprob)
	fr, fc := margins(freq)

	lhs := mat.NewDense(2*n, 2*n, nil)
	rhs := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		lhs.Set(i, i, fr[i])
		lhs.Set(n+i, n+i, fc[i])
		for j := 0; j < n; j++ {
			lhs.Set(i, n+j, freq.At(i, j))
			lhs.Set(n+j, i, freq.At(i, j))
		}
		rhs[i] = r[i] - fr[i]
		rhs[n+i] = c[i] - fc[i]
	}
	lambda, err := optimize.PinvSolve(lhs, rhs)
	if err != nil {
		return nil, err
	}
	p := mat.NewDense(n, n, nil)
	p.Apply(func(i, j int, v float64) float64 {
		return v * (1 + lambda[i] + lambda[n+j])
	}, freq)
	return p, nil
}
