package estimate

import (
	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/optimize"
)

// Approximate estimates the table under the correlation model
//
//	p_ij = f_ij / (lr_i - lc_j)
//
// where f are the observed frequencies. The marginal equations are
// linearized by replacing the dual variables of the other group with
// their mean, which gives the linear system
//
//	lr_i - mean(lc) = sum_j f_ij / row_i
//	mean(lr) - lc_j = sum_i f_ij / col_j.
//
// Both the model and the system are invariant under the joint shift
// lr += a, lc += a, so the system is degenerate; the minimum norm
// solution is used.
type Approximate struct {
	Pseudocount float64
}

// Name returns the estimator name.
func (Approximate) Name() string { return "approx" }

// Duals returns the row and column dual variables and the frequency
// table after adding the pseudocount.
func (e Approximate) Duals(row, col []float64, counts *mat.Dense) (lr, lc []float64, freq *mat.Dense, err error) {
	n, r, c, err := check(row, col, counts)
	if err != nil {
		return nil, nil, nil, err
	}
	freq = frequencies(counts, e.Pseudocount)
	fr, fc := margins(freq)

	lhs := mat.NewDense(2*n, 2*n, nil)
	rhs := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		lhs.Set(i, i, 1)
		lhs.Set(n+i, n+i, -1)
		for j := 0; j < n; j++ {
			lhs.Set(i, n+j, -1/float64(n))
			lhs.Set(n+i, j, 1/float64(n))
		}
		rhs[i] = fr[i] / r[i]
		rhs[n+i] = fc[i] / c[i]
	}
	lambda, err := optimize.PinvSolve(lhs, rhs)
	if err != nil {
		return nil, nil, nil, err
	}
	return lambda[:n], lambda[n:], freq, nil
}

// Estimate returns the approximate joint probability table.
func (e Approximate) Estimate(row, col []float64, counts *mat.Dense) (*mat.Dense, error) {
	lr, lc, freq, err := e.Duals(row, col, counts)
	if err != nil {
		return nil, err
	}
	return correlated(freq, lr, lc), nil
}

// correlated returns f_ij / (lr_i - lc_j).
func correlated(freq *mat.Dense, lr, lc []float64) *mat.Dense {
	n, _ := freq.Dims()
	p := mat.NewDense(n, n, nil)
	p.Apply(func(i, j int, v float64) float64 {
		return v / (lr[i] - lc[j])
	}, freq)
	return p
}
