package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ResidualFunc computes residuals f of the system at x.
type ResidualFunc func(f, x []float64)

// LMSettings control the Levenberg-Marquardt iterations.
type LMSettings struct {
	// MaxIter is the maximal number of accepted steps.
	MaxIter int
	// Tol is the relative tolerance for the step size and the
	// decrease of the squared residual norm. Smaller steps stop the
	// iterations.
	Tol float64
	// NormTol is the residual norm at which x is accepted as a root.
	NormTol float64
}

// DefaultLMSettings are used for the zero settings.
var DefaultLMSettings = LMSettings{MaxIter: 100000, Tol: TINY, NormTol: TINY}

// LMResult is a solution found by the Levenberg-Marquardt method.
type LMResult struct {
	X      []float64
	F      []float64
	Norm   float64
	Iter   int
	Status Status
}

// LevenbergMarquardt minimizes the sum of squared residuals of fn
// starting from x0. The residual vector has length m. The Jacobian is
// approximated by forward differences. The status is Optimal only if
// the residual norm is at most NormTol. Otherwise the last point is
// returned together with a *StatusError; Stalled means the iterations
// stopped making progress away from a root.
func LevenbergMarquardt(fn ResidualFunc, x0 []float64, m int, s LMSettings) (*LMResult, error) {
	if s.MaxIter <= 0 {
		s.MaxIter = DefaultLMSettings.MaxIter
	}
	if s.Tol <= 0 {
		s.Tol = DefaultLMSettings.Tol
	}
	if s.NormTol <= 0 {
		s.NormTol = DefaultLMSettings.NormTol
	}
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)
	f := make([]float64, m)
	fn(f, x)
	cost := floats.Dot(f, f)

	jac := mat.NewDense(m, n, nil)
	xn := make([]float64, n)
	fnew := make([]float64, m)
	ft := make([]float64, m)
	var jtj, a mat.Dense
	g := mat.NewVecDense(n, nil)
	delta := mat.NewVecDense(n, nil)

	res := &LMResult{X: x, F: f, Status: MaxIterations}
	if !finite(cost) {
		res.Norm = math.Sqrt(cost)
		res.Status = Infeasible
		return res, &StatusError{Solver: "levenberg-marquardt", Status: Infeasible}
	}
	lambda := 1e-3
	tol2 := s.NormTol * s.NormTol
	for res.Iter = 0; res.Iter < s.MaxIter; res.Iter++ {
		if cost <= tol2 {
			res.Status = Optimal
			break
		}
		// forward difference jacobian
		for j := 0; j < n; j++ {
			h := SMALL * math.Max(math.Abs(x[j]), 1)
			old := x[j]
			x[j] = old + h
			fn(ft, x)
			x[j] = old
			for i := 0; i < m; i++ {
				jac.Set(i, j, (ft[i]-f[i])/h)
			}
		}
		jtj.Mul(jac.T(), jac)
		g.MulVec(jac.T(), mat.NewVecDense(m, f))
		if mat.Norm(g, math.Inf(1)) <= s.Tol*s.Tol {
			// stationary point which is not a root
			res.Status = Stalled
			break
		}

		accepted := false
		for !accepted {
			a.CloneFrom(&jtj)
			for j := 0; j < n; j++ {
				d := jtj.At(j, j)
				if d == 0 {
					d = 1
				}
				a.Set(j, j, d*(1+lambda))
			}
			if err := delta.SolveVec(&a, g); err != nil {
				lambda *= 10
			} else {
				for j := range xn {
					xn[j] = x[j] - delta.AtVec(j)
				}
				fn(fnew, xn)
				newCost := floats.Dot(fnew, fnew)
				if finite(newCost) && newCost < cost {
					accepted = true
					decrease := cost - newCost
					step := floats.Norm(delta.RawVector().Data, 2)
					copy(x, xn)
					copy(f, fnew)
					cost = newCost
					lambda = math.Max(lambda/10, 1e-12)
					switch {
					case cost <= tol2:
						res.Status = Optimal
					case step <= s.Tol*(floats.Norm(x, 2)+s.Tol) || decrease <= s.Tol*s.Tol*cost:
						res.Status = Stalled
					}
				} else {
					lambda *= 10
				}
			}
			if !accepted && lambda > 1e16 {
				res.Status = Stalled
				break
			}
		}
		if res.Status != MaxIterations {
			break
		}
	}
	res.Norm = math.Sqrt(cost)
	if res.Norm <= s.NormTol {
		res.Status = Optimal
	}
	log.Debugf("levenberg-marquardt: %v after %d iterations, residual norm %g", res.Status, res.Iter, res.Norm)
	if res.Status != Optimal {
		return res, &StatusError{Solver: "levenberg-marquardt", Status: res.Status, Iter: res.Iter}
	}
	return res, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
