package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Objective is a twice differentiable convex function. Func returns
// +Inf outside of the domain. Hess must set every element of h.
type Objective struct {
	Func func(x []float64) float64
	Grad func(g, x []float64)
	Hess func(h *mat.SymDense, x []float64)
}

// NewtonSettings control the damped Newton iterations.
type NewtonSettings struct {
	MaxIter int
	// GradTol is the maximal absolute gradient component at the
	// minimum.
	GradTol float64
}

// DefaultNewtonSettings are used for the zero settings.
var DefaultNewtonSettings = NewtonSettings{MaxIter: 1000, GradTol: TINY}

// NewtonResult is a minimum found by Newton.
type NewtonResult struct {
	X      []float64
	F      float64
	Iter   int
	Status Status
}

const (
	// armijo is the sufficient decrease constant of the line search.
	armijo = 1e-4
	// roundoff is the relative error of the function values.
	roundoff = 1e-13
)

// Newton minimizes obj starting from x0, which has to be inside of
// the domain. The Newton direction is used while the Hessian is
// positive definite, the steepest descent direction otherwise. Steps
// are halved until the function decreases sufficiently. When no step
// decreases the function the status is Stalled and the last point is
// returned with a *StatusError.
func Newton(obj Objective, x0 []float64, s NewtonSettings) (*NewtonResult, error) {
	if s.MaxIter <= 0 {
		s.MaxIter = DefaultNewtonSettings.MaxIter
	}
	if s.GradTol <= 0 {
		s.GradTol = DefaultNewtonSettings.GradTol
	}
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)
	res := &NewtonResult{X: x, F: obj.Func(x), Status: MaxIterations}
	if !finite(res.F) {
		res.Status = Infeasible
		return res, &StatusError{Solver: "newton", Status: Infeasible}
	}

	g := make([]float64, n)
	xn := make([]float64, n)
	h := mat.NewSymDense(n, nil)
	d := mat.NewVecDense(n, nil)
	var chol mat.Cholesky
	for res.Iter = 0; res.Iter < s.MaxIter; res.Iter++ {
		obj.Grad(g, x)
		if floats.Norm(g, math.Inf(1)) <= s.GradTol {
			res.Status = Optimal
			break
		}
		obj.Hess(h, x)
		ok := chol.Factorize(h)
		if ok {
			ok = chol.SolveVecTo(d, mat.NewVecDense(n, g)) == nil
		}
		dir := d.RawVector().Data
		slope := 0.0
		if ok {
			floats.Scale(-1, dir)
			slope = floats.Dot(g, dir)
		}
		// full Newton steps are also accepted within the rounding
		// noise of f close to the minimum
		noise := 0.0
		if ok && slope < 0 {
			noise = roundoff * (1 + math.Abs(res.F))
		} else {
			floats.ScaleTo(dir, -1, g)
			slope = -floats.Dot(g, g)
		}

		accepted := false
		for t := 1.0; t > TINY*TINY; t /= 2 {
			floats.AddScaledTo(xn, x, t, dir)
			fn := obj.Func(xn)
			if finite(fn) && fn <= res.F+armijo*t*slope+noise {
				copy(x, xn)
				res.F = fn
				accepted = true
				break
			}
			noise = 0
		}
		if !accepted {
			res.Status = Stalled
			break
		}
	}
	log.Debugf("newton: %v after %d iterations, f=%g", res.Status, res.Iter, res.F)
	if res.Status != Optimal {
		return res, &StatusError{Solver: "newton", Status: res.Status, Iter: res.Iter}
	}
	return res, nil
}
