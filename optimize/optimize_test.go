package optimize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const smallDiff = 1e-6

func appreq(a, b float64) bool {
	return math.Abs(a-b) < smallDiff
}

func TestPinvFullRank(tst *testing.T) {
	a := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 7,
	})
	pa, err := Pinv(a)
	if err != nil {
		tst.Fatal(err)
	}
	var id mat.Dense
	id.Mul(pa, a)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			exp := 0.0
			if i == j {
				exp = 1
			}
			if !appreq(id.At(i, j), exp) {
				tst.Errorf("pinv(a)*a[%d,%d]=%v", i, j, id.At(i, j))
			}
		}
	}
}

func TestPinvRankDeficient(tst *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	pa, err := Pinv(a)
	if err != nil {
		tst.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !appreq(pa.At(i, j), 0.25) {
				tst.Errorf("pinv[%d,%d]=%v, expected 0.25", i, j, pa.At(i, j))
			}
		}
	}
	x, err := PinvSolve(a, []float64{2, 2})
	if err != nil {
		tst.Fatal(err)
	}
	if !appreq(x[0], 1) || !appreq(x[1], 1) {
		tst.Error("Wrong minimum norm solution:", x)
	}
}

func TestLMRosenbrock(tst *testing.T) {
	fn := func(f, x []float64) {
		f[0] = 10 * (x[1] - x[0]*x[0])
		f[1] = 1 - x[0]
	}
	res, err := LevenbergMarquardt(fn, []float64{-1.2, 1}, 2, LMSettings{})
	if err != nil {
		tst.Fatal(err)
	}
	if !appreq(res.X[0], 1) || !appreq(res.X[1], 1) {
		tst.Error("Wrong root:", res.X)
	}
	if res.Status != Optimal {
		tst.Error("Wrong status:", res.Status)
	}
}

func TestLMSqrt2(tst *testing.T) {
	fn := func(f, x []float64) {
		f[0] = x[0]*x[0] - 2
		f[1] = x[1] - x[0]
	}
	res, err := LevenbergMarquardt(fn, []float64{1, 0.5}, 2, LMSettings{})
	if err != nil {
		tst.Fatal(err)
	}
	if !appreq(res.X[0], math.Sqrt2) || !appreq(res.X[1], math.Sqrt2) {
		tst.Error("Wrong root:", res.X)
	}
}

func TestLMStalled(tst *testing.T) {
	// x^2 + 1 has no real root
	fn := func(f, x []float64) {
		f[0] = x[0]*x[0] + 1
		f[1] = x[1] - 1
	}
	res, err := LevenbergMarquardt(fn, []float64{1, 3}, 2, LMSettings{MaxIter: 10000})
	var serr *StatusError
	if !errors.As(err, &serr) {
		tst.Fatal("Missing root was not reported:", err)
	}
	if serr.Status != Stalled || res.Status != Stalled {
		tst.Error("Wrong status:", serr.Status)
	}
	if res.Norm < 1 {
		tst.Error("Wrong residual norm:", res.Norm)
	}
}

func TestLMNormTol(tst *testing.T) {
	fn := func(f, x []float64) {
		f[0] = x[0] - 1e-3
	}
	res, err := LevenbergMarquardt(fn, []float64{1e-3 + 1e-6}, 1, LMSettings{NormTol: 1e-5})
	if err != nil {
		tst.Fatal(err)
	}
	if res.Iter != 0 || res.Status != Optimal {
		tst.Error("Root within the tolerance was not accepted:", res.Iter, res.Status)
	}
}

func TestLMInfeasibleStart(tst *testing.T) {
	fn := func(f, x []float64) {
		f[0] = math.Log(x[0])
	}
	_, err := LevenbergMarquardt(fn, []float64{-1}, 1, LMSettings{})
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != Infeasible {
		tst.Error("Start outside of the domain was not reported:", err)
	}
}

// x0^2 + x1^2 - log(x0) - log(x1), minimum at x = 1/sqrt(2)
var logBarrier = Objective{
	Func: func(x []float64) float64 {
		if x[0] <= 0 || x[1] <= 0 {
			return math.Inf(1)
		}
		return x[0]*x[0] + x[1]*x[1] - math.Log(x[0]) - math.Log(x[1])
	},
	Grad: func(g, x []float64) {
		g[0] = 2*x[0] - 1/x[0]
		g[1] = 2*x[1] - 1/x[1]
	},
	Hess: func(h *mat.SymDense, x []float64) {
		h.SetSym(0, 0, 2+1/(x[0]*x[0]))
		h.SetSym(0, 1, 0)
		h.SetSym(1, 1, 2+1/(x[1]*x[1]))
	},
}

func TestNewton(tst *testing.T) {
	res, err := Newton(logBarrier, []float64{3, 0.01}, NewtonSettings{})
	if err != nil {
		tst.Fatal(err)
	}
	for i, v := range res.X {
		if !appreq(v, 1/math.Sqrt2) {
			tst.Errorf("x[%d]=%v, expected %v", i, v, 1/math.Sqrt2)
		}
	}
	if !appreq(res.F, 1+math.Log(2)) {
		tst.Error("Wrong minimum:", res.F)
	}
}

func TestNewtonInfeasibleStart(tst *testing.T) {
	_, err := Newton(logBarrier, []float64{-1, 1}, NewtonSettings{})
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != Infeasible {
		tst.Error("Start outside of the domain was not reported:", err)
	}
}

func TestQPBound(tst *testing.T) {
	p := mat.NewDense(2, 2, []float64{2, 0, 0, 2})
	q := []float64{-2, 2}
	a := mat.NewDense(1, 2, []float64{1, 1})
	res, err := QP(p, q, a, []float64{1}, []float64{0.5, 0.5}, 0)
	if err != nil {
		tst.Fatal(err)
	}
	if !appreq(res.X[0], 1) || !appreq(res.X[1], 0) {
		tst.Error("Wrong solution:", res.X)
	}
	if !appreq(res.Obj, -1) {
		tst.Error("Wrong objective:", res.Obj)
	}
}

func TestQPInterior(tst *testing.T) {
	// projection of (1, 2, 3) onto the simplex interior
	p := mat.NewDense(3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	q := []float64{-2, -2.2, -2.4}
	a := mat.NewDense(1, 3, []float64{1, 1, 1})
	res, err := QP(p, q, a, []float64{3}, []float64{1, 1, 1}, 0)
	if err != nil {
		tst.Fatal(err)
	}
	for i, exp := range []float64{0.9, 1, 1.1} {
		if !appreq(res.X[i], exp) {
			tst.Errorf("x[%d]=%v, expected %v", i, res.X[i], exp)
		}
	}
}

func TestQPInfeasibleStart(tst *testing.T) {
	p := mat.NewDense(2, 2, []float64{2, 0, 0, 2})
	a := mat.NewDense(1, 2, []float64{1, 1})
	_, err := QP(p, []float64{0, 0}, a, []float64{1}, []float64{2, 0}, 0)
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != Infeasible {
		tst.Error("Infeasible start was not reported:", err)
	}
}

func TestQPDegenerate(tst *testing.T) {
	// the start is a vertex; the solution needs a release
	p := mat.NewDense(3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	q := []float64{-2, -2, -2}
	a := mat.NewDense(1, 3, []float64{1, 1, 1})
	res, err := QP(p, q, a, []float64{1}, []float64{1, 0, 0}, 0)
	if err != nil {
		tst.Fatal(err)
	}
	for i := range res.X {
		if !appreq(res.X[i], 1.0/3) {
			tst.Errorf("x[%d]=%v, expected 1/3", i, res.X[i])
		}
	}
}

// transportQP is the minimum chi-square problem for a joint table with
// row and column sums r and c, close to the table f.
func transportQP(f *mat.Dense, r, c []float64) (p *mat.Dense, q []float64, a *mat.Dense, b, x0 []float64) {
	n := len(r)
	nv := n * n
	p = mat.NewDense(nv, nv, nil)
	q = make([]float64, nv)
	a = mat.NewDense(2*n-1, nv, nil)
	b = make([]float64, 2*n-1)
	x0 = make([]float64, nv)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k := i*n + j
			p.Set(k, k, 2/f.At(i, j))
			q[k] = -2
			a.Set(i, k, 1)
			if j < n-1 {
				a.Set(n+j, k, 1)
			}
			x0[k] = r[i] * c[j]
		}
		b[i] = r[i]
	}
	copy(b[n:], c[:n-1])
	return
}

func randomMarginal(rng *rand.Rand, n int, sigma float64) []float64 {
	m := make([]float64, n)
	s := 0.0
	for i := range m {
		m[i] = math.Exp(sigma * rng.NormFloat64())
		s += m[i]
	}
	for i := range m {
		m[i] /= s
	}
	return m
}

func TestQPRandomTransport(tst *testing.T) {
	const n = 5
	rng := rand.New(rand.NewSource(7))
	levels := []float64{0, 0, 1, 2, 5, 10, 50, 100, 1000}
	for trial := 0; trial < 200; trial++ {
		sigma := []float64{0.3, 1, 3}[trial%3]
		r := randomMarginal(rng, n, sigma)
		c := randomMarginal(rng, n, sigma)
		f := mat.NewDense(n, n, nil)
		pseudo := []float64{0.1, 10}[trial%2]
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				f.Set(i, j, levels[rng.Intn(len(levels))]+pseudo*r[i]*c[j])
			}
		}
		f.Scale(1/mat.Sum(f), f)

		p, q, a, b, x0 := transportQP(f, r, c)
		res, err := QP(p, q, a, b, x0, 0)
		if err != nil {
			tst.Errorf("trial %d: %v", trial, err)
			continue
		}
		rs := make([]float64, n)
		cs := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := res.X[i*n+j]
				if v < -1e-12 || math.IsNaN(v) {
					tst.Errorf("trial %d: x[%d,%d]=%v", trial, i, j, v)
				}
				rs[i] += v
				cs[j] += v
			}
		}
		for i := 0; i < n; i++ {
			if math.Abs(rs[i]-r[i]) > 1e-9 || math.Abs(cs[i]-c[i]) > 1e-9 {
				tst.Errorf("trial %d: marginals %v %v, expected %v %v", trial, rs, cs, r, c)
				break
			}
		}
	}
}
