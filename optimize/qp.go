package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// QPResult is a solution of a quadratic program.
type QPResult struct {
	X      []float64
	Obj    float64
	Iter   int
	Status Status
}

const (
	// qpRcond is the pseudoinverse cutoff of the equilibrated KKT
	// systems.
	qpRcond = 1e-11
	// ruizIter is the number of equilibration sweeps.
	ruizIter = 10
)

// QP solves the quadratic program
//
//	minimize    1/2 x^T P x + q^T x
//	subject to  A x = b, x >= 0
//
// with a primal active set method. P should be positive definite.
// x0 has to be feasible; it is used as the starting point. Every
// iteration solves for the step from the current point with the
// working set fixed at zero, so all iterates stay feasible. Steps are
// cut by the ratio test and the first blocking variable enters the
// working set. At a stationary point the first variable with a
// negative multiplier leaves it. The result is Optimal only after the
// final point passes the feasibility and stationarity checks.
// maxIter <= 0 selects 100 iterations per variable.
func QP(p *mat.Dense, q []float64, a *mat.Dense, b, x0 []float64, maxIter int) (*QPResult, error) {
	n := len(q)
	m := len(b)
	if maxIter <= 0 {
		maxIter = 100 * n
	}
	x := make([]float64, n)
	copy(x, x0)
	res := &QPResult{X: x, Status: MaxIterations}

	feasTol := 1e-9 * (1 + floats.Norm(b, math.Inf(1)))
	if residual(a, b, x) > 10*feasTol || floats.Min(x) < 0 {
		res.Status = Infeasible
		return res, &StatusError{Solver: "qp", Status: Infeasible}
	}

	// working marks variables fixed at zero
	working := make([]bool, n)
	for i, v := range x {
		working[i] = v == 0
	}

	step := make([]float64, n)
	lambda := make([]float64, m)
	for res.Iter = 0; res.Iter < maxIter; res.Iter++ {
		if err := eqp(p, q, a, b, x, working, step, lambda); err != nil {
			res.Status = Singular
			break
		}
		alpha, block := 1.0, -1
		for i := range x {
			if working[i] || step[i] >= 0 {
				continue
			}
			if s := math.Max(x[i], 0) / -step[i]; s < alpha || (s == alpha && block < 0) {
				alpha, block = s, i
			}
		}
		floats.AddScaled(x, alpha, step)
		if block >= 0 {
			x[block] = 0
			working[block] = true
			continue
		}

		mu := multipliers(p, q, a, x, lambda)
		muTol := 1e-9 * (1 + floats.Norm(gradient(p, q, x), math.Inf(1)))
		release := -1
		for i := range mu {
			if working[i] && mu[i] < -muTol {
				release = i
				break
			}
		}
		if release < 0 {
			res.Status = verify(a, b, x, mu, working, feasTol, muTol)
			break
		}
		log.Debugf("qp: releasing variable %d (multiplier %g)", release, mu[release])
		working[release] = false
	}

	res.Obj = 0.5*floats.Dot(x, gradient(p, nil, x)) + floats.Dot(q, x)
	log.Debugf("qp: %v after %d iterations, objective %g", res.Status, res.Iter, res.Obj)
	if res.Status != Optimal {
		return res, &StatusError{Solver: "qp", Status: res.Status, Iter: res.Iter}
	}
	return res, nil
}

// verify checks the final point: the equality constraints, the
// bounds and the stationarity of the free variables.
func verify(a *mat.Dense, b, x, mu []float64, working []bool, feasTol, muTol float64) Status {
	if r := residual(a, b, x); r > feasTol {
		log.Debugf("qp: constraint residual %g", r)
		return Inaccurate
	}
	if v := floats.Min(x); v < -feasTol {
		log.Debugf("qp: negative variable %g", v)
		return Inaccurate
	}
	for i, v := range mu {
		if !working[i] && math.Abs(v) > 1e3*muTol {
			log.Debugf("qp: free variable %d has multiplier %g", i, v)
			return Inaccurate
		}
	}
	return Optimal
}

// residual returns the maximal violation of A x = b.
func residual(a *mat.Dense, b, x []float64) float64 {
	if len(b) == 0 {
		return 0
	}
	ax := mat.NewVecDense(len(b), nil)
	ax.MulVec(a, mat.NewVecDense(len(x), x))
	d := ax.RawVector().Data
	floats.Sub(d, b)
	return floats.Norm(d, math.Inf(1))
}

// gradient returns P x + q; q can be nil.
func gradient(p *mat.Dense, q, x []float64) []float64 {
	g := mat.NewVecDense(len(x), nil)
	g.MulVec(p, mat.NewVecDense(len(x), x))
	d := g.RawVector().Data
	if q != nil {
		floats.Add(d, q)
	}
	return d
}

// eqp solves the equality constrained subproblem for the step from x
// which keeps the working set at zero,
//
//	[P_F  A_F^T] [step_F]   [-(P x + q)_F]
//	[A_F    0  ] [lambda] = [   b - A x  ].
//
// The KKT matrix is equilibrated before the pseudoinverse solution.
func eqp(p *mat.Dense, q []float64, a *mat.Dense, b, x []float64, working []bool, step, lambda []float64) error {
	n := len(q)
	m := len(b)
	free := make([]int, 0, n)
	for i := range working {
		if !working[i] {
			free = append(free, i)
		}
	}
	k := len(free)
	if k == 0 {
		return &StatusError{Solver: "qp", Status: Singular}
	}
	g := gradient(p, q, x)
	kkt := mat.NewDense(k+m, k+m, nil)
	rhs := make([]float64, k+m)
	for r, i := range free {
		for c, j := range free {
			kkt.Set(r, c, p.At(i, j))
		}
		for c := 0; c < m; c++ {
			kkt.Set(r, k+c, a.At(c, i))
			kkt.Set(k+c, r, a.At(c, i))
		}
		rhs[r] = -g[i]
	}
	if m > 0 {
		ax := mat.NewVecDense(m, nil)
		ax.MulVec(a, mat.NewVecDense(n, x))
		floats.SubTo(rhs[k:], b, ax.RawVector().Data)
	}

	scale := equilibrate(kkt)
	floats.Mul(rhs, scale)
	sol, err := PinvSolveCond(kkt, rhs, qpRcond)
	if err != nil {
		return err
	}
	floats.Mul(sol, scale)

	for i := range step {
		step[i] = 0
	}
	for r, i := range free {
		step[i] = sol[r]
	}
	copy(lambda, sol[k:])
	return nil
}

// equilibrate scales the symmetric matrix s in place to D s D with
// rows of unit maximal norm (Ruiz scaling) and returns diag(D).
func equilibrate(s *mat.Dense) []float64 {
	n, _ := s.Dims()
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	f := make([]float64, n)
	for it := 0; it < ruizIter; it++ {
		for i := range f {
			f[i] = 1
			if v := floats.Norm(s.RawRowView(i), math.Inf(1)); v > 0 {
				f[i] = 1 / math.Sqrt(v)
			}
		}
		s.Apply(func(i, j int, v float64) float64 {
			return v * f[i] * f[j]
		}, s)
		floats.Mul(d, f)
	}
	return d
}

// multipliers returns the bound multipliers P x + q + A^T lambda.
func multipliers(p *mat.Dense, q []float64, a *mat.Dense, x, lambda []float64) []float64 {
	mu := gradient(p, q, x)
	if len(lambda) > 0 {
		var atl mat.VecDense
		atl.MulVec(a.T(), mat.NewVecDense(len(lambda), lambda))
		floats.Add(mu, atl.RawVector().Data)
	}
	return mu
}
