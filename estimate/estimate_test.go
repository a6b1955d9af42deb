package estimate

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

func checkMarginals(tst *testing.T, name string, p *mat.Dense, row, col []float64) {
	rs, cs := margins(p)
	for i := range rs {
		if !appreq(rs[i], row[i]) {
			tst.Errorf("%s: row %d sums to %v, expected %v", name, i, rs[i], row[i])
		}
		if !appreq(cs[i], col[i]) {
			tst.Errorf("%s: column %d sums to %v, expected %v", name, i, cs[i], col[i])
		}
	}
}

var (
	table3 = mat.NewDense(3, 3, []float64{
		30, 10, 5,
		10, 40, 10,
		5, 10, 30,
	})
	row3 = []float64{0.3, 0.4, 0.3}
	col3 = []float64{0.25, 0.45, 0.3}
)

func TestExactEstimatorsReproduceMarginals(tst *testing.T) {
	settings := []Estimator{
		MaximumLikelihood{Pseudocount: DefaultPseudocount},
		ExactMinChiSquare{Pseudoprob: DefaultPseudoprob},
		ExactMinChiSquare{Pseudoprob: 0.1},
		MinChiSquare{Pseudoprob: DefaultPseudoprob},
	}
	for _, e := range settings {
		p, err := e.Estimate(row3, col3, table3)
		if err != nil {
			tst.Errorf("%s: %v", e.Name(), err)
			continue
		}
		checkMarginals(tst, e.Name(), p, row3, col3)
		if mat.Min(p) < 0 {
			tst.Errorf("%s: negative probability %v", e.Name(), mat.Min(p))
		}
	}
}

func TestMaximumLikelihoodValues(tst *testing.T) {
	p, err := MaximumLikelihood{Pseudocount: 0.5}.Estimate(row3, col3, table3)
	if err != nil {
		tst.Fatal(err)
	}
	exp := []float64{
		0.1706549, 0.0892797, 0.0400655,
		0.0515175, 0.2838140, 0.0646685,
		0.0278277, 0.0769063, 0.1952660,
	}
	for i, v := range exp {
		if !appreq(p.At(i/3, i%3), v) {
			tst.Errorf("p[%d,%d]=%v, expected %v", i/3, i%3, p.At(i/3, i%3), v)
		}
	}
}

func TestUnnormalizedMarginals(tst *testing.T) {
	row := []float64{3, 4, 3}
	col := []float64{25, 45, 30}
	p, err := ExactMinChiSquare{Pseudoprob: 1}.Estimate(row, col, table3)
	if err != nil {
		tst.Fatal(err)
	}
	checkMarginals(tst, "chi2", p, row3, col3)
}

func TestChiSquareDiagonal(tst *testing.T) {
	counts := mat.NewDense(2, 2, []float64{10, 0, 0, 10})
	half := []float64{0.5, 0.5}
	for _, e := range []Estimator{ExactMinChiSquare{Pseudoprob: 0.01}, MinChiSquare{Pseudoprob: 0.01}} {
		p, err := e.Estimate(half, half, counts)
		if err != nil {
			tst.Fatal(e.Name(), err)
		}
		exp := []float64{0.5, 0, 0, 0.5}
		for i, v := range exp {
			if math.Abs(p.At(i/2, i%2)-v) > 1e-3 {
				tst.Errorf("%s: p[%d,%d]=%v, expected %v", e.Name(), i/2, i%2, p.At(i/2, i%2), v)
			}
		}
		checkMarginals(tst, e.Name(), p, half, half)
	}
}

func TestChiSquareBound(tst *testing.T) {
	counts := mat.NewDense(2, 2, []float64{5, 1, 1, 5})
	row := []float64{0.8, 0.2}
	col := []float64{0.2, 0.8}
	p, err := ExactMinChiSquare{Pseudoprob: DefaultPseudoprob}.Estimate(row, col, counts)
	if err != nil {
		tst.Fatal(err)
	}
	checkMarginals(tst, "chi2", p, row, col)
	exp := []float64{0.2, 0.6, 0, 0.2}
	for i, v := range exp {
		if !appreq(p.At(i/2, i%2), v) {
			tst.Errorf("p[%d,%d]=%v, expected %v", i/2, i%2, p.At(i/2, i%2), v)
		}
	}
}

func TestTune(tst *testing.T) {
	counts := mat.NewDense(2, 2, []float64{5, 1, 1, 5})
	row := []float64{0.8, 0.2}
	col := []float64{0.2, 0.8}

	p, err := MinChiSquare{}.Estimate(row, col, counts)
	if err != nil {
		tst.Fatal(err)
	}
	if !appreq(p.At(1, 0), -0.2166667) {
		tst.Error("Expected a negative estimate without tuning, got", p.At(1, 0))
	}

	p, err = MinChiSquare{Tune: true}.Estimate(row, col, counts)
	if err != nil {
		tst.Fatal(err)
	}
	if mat.Min(p) < 0 {
		tst.Error("Tuned estimate is negative:", mat.Min(p))
	}
	// 17 increments are required
	if !appreq(p.At(1, 0), 0.0013942) {
		tst.Error("Wrong tuned estimate:", p.At(1, 0))
	}
	checkMarginals(tst, "chi2-linear", p, row, col)

	_, err = MinChiSquare{Tune: true, MaxTune: 5}.Estimate(row, col, counts)
	if !errors.Is(err, ErrTuneLimit) {
		tst.Error("Tuning limit was not reported:", err)
	}
}

func TestTuneLargeCounts(tst *testing.T) {
	counts := mat.NewDense(2, 2, []float64{5000, 1000, 1000, 5000})
	row := []float64{0.8, 0.2}
	col := []float64{0.2, 0.8}
	p, err := MinChiSquare{Tune: true}.Estimate(row, col, counts)
	if err != nil {
		tst.Fatal(err)
	}
	if mat.Min(p) < 0 {
		tst.Error("Tuned estimate is negative:", mat.Min(p))
	}
	checkMarginals(tst, "chi2-linear", p, row, col)
}

func randomMarginal(rng *rand.Rand, n int, sigma float64) []float64 {
	m := make([]float64, n)
	for i := range m {
		m[i] = math.Exp(sigma * rng.NormFloat64())
	}
	return m
}

// randomCounts returns a table with counts spanning several orders of
// magnitude. Some tables get an empty row and an empty column.
func randomCounts(rng *rand.Rand, n int) *mat.Dense {
	levels := []float64{0, 0, 1, 2, 5, 10, 50, 100, 1000}
	counts := mat.NewDense(n, n, nil)
	counts.Apply(func(i, j int, v float64) float64 {
		return levels[rng.Intn(len(levels))]
	}, counts)
	if rng.Intn(3) == 0 {
		i, j := rng.Intn(n), rng.Intn(n)
		for k := 0; k < n; k++ {
			counts.Set(i, k, 0)
			counts.Set(k, j, 0)
		}
	}
	return counts
}

func TestExactEstimatorsRandom(tst *testing.T) {
	const n = 5
	production := []float64{0.202, 0.143, 0.165, 0.204, 0.287}
	settings := []Estimator{
		ExactMinChiSquare{Pseudoprob: 0.1},
		ExactMinChiSquare{Pseudoprob: DefaultPseudoprob},
		MaximumLikelihood{Pseudocount: DefaultPseudocount},
	}
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 150; trial++ {
		var row, col []float64
		if trial%4 == 3 {
			row = production
			col = make([]float64, n)
			for i, k := range rng.Perm(n) {
				col[i] = production[k]
			}
		} else {
			sigma := []float64{0.3, 1, 3}[trial%3]
			row = randomMarginal(rng, n, sigma)
			col = randomMarginal(rng, n, sigma)
		}
		r, _ := normalize(row)
		c, _ := normalize(col)
		counts := randomCounts(rng, n)
		for _, e := range settings {
			p, err := e.Estimate(row, col, counts)
			if err != nil {
				tst.Errorf("trial %d, %s: %v", trial, e.Name(), err)
				continue
			}
			checkMarginals(tst, e.Name(), p, r, c)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if v := p.At(i, j); v < -1e-12 || math.IsNaN(v) || math.IsInf(v, 0) {
						tst.Errorf("trial %d, %s: p[%d,%d]=%v", trial, e.Name(), i, j, v)
					}
				}
			}
		}
	}
}

func TestApproximateIndependent(tst *testing.T) {
	counts := mat.NewDense(3, 3, nil)
	counts.Outer(100, mat.NewVecDense(3, row3), mat.NewVecDense(3, col3))
	lr, lc, _, err := Approximate{}.Duals(row3, col3, counts)
	if err != nil {
		tst.Fatal(err)
	}
	for i := range lr {
		if !appreq(lr[i], 0.5) || !appreq(lc[i], -0.5) {
			tst.Error("Wrong minimum norm duals:", lr, lc)
		}
	}
	p, err := Approximate{}.Estimate(row3, col3, counts)
	if err != nil {
		tst.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !appreq(p.At(i, j), row3[i]*col3[j]) {
				tst.Errorf("p[%d,%d]=%v, expected %v", i, j, p.At(i, j), row3[i]*col3[j])
			}
		}
	}
}

func TestShape(tst *testing.T) {
	for _, e := range []Estimator{Approximate{}, MaximumLikelihood{}, ExactMinChiSquare{}, MinChiSquare{}} {
		if _, err := e.Estimate(row3, col3[:2], table3); !errors.Is(err, ErrShape) {
			tst.Errorf("%s: wrong marginal length was accepted", e.Name())
		}
		if _, err := e.Estimate(row3, col3, mat.NewDense(2, 2, nil)); !errors.Is(err, ErrShape) {
			tst.Errorf("%s: wrong table shape was accepted", e.Name())
		}
		if _, err := e.Estimate([]float64{0, 0, 0}, col3, table3); !errors.Is(err, ErrMarginal) {
			tst.Errorf("%s: zero marginal was accepted", e.Name())
		}
	}
}

func TestByName(tst *testing.T) {
	for _, name := range Names {
		e, err := ByName(name)
		if err != nil {
			tst.Error(err)
			continue
		}
		if e.Name() != name {
			tst.Errorf("ByName(%q) returned %q", name, e.Name())
		}
	}
	if _, err := ByName("simplex"); err == nil {
		tst.Error("Unknown estimator was accepted")
	}
}
