// Package estimate computes joint probability tables of two discrete
// variables from a contingency table of counts under the constraint
// that the table reproduces given row and column marginals.
package estimate

import (
	"errors"
	"fmt"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var log = logging.MustGetLogger("estimate")

var (
	// ErrShape is returned when the marginals and the count table
	// have incompatible shapes.
	ErrShape = errors.New("estimate: shape mismatch")
	// ErrMarginal is returned for marginals which cannot be
	// normalized.
	ErrMarginal = errors.New("estimate: invalid marginal")
	// ErrTuneLimit is returned when pseudoprob tuning does not make
	// the estimate non-negative.
	ErrTuneLimit = errors.New("estimate: pseudoprob tuning limit reached")
)

const (
	// DefaultPseudocount is added to every cell by the
	// correlation model estimators.
	DefaultPseudocount = 0.5
	// DefaultPseudoprob is the weight of the independent table
	// added by the chi-square estimators.
	DefaultPseudoprob = 10.0
	// DefaultMaxTune is the maximal number of pseudoprob
	// increments in tuning mode.
	DefaultMaxTune = 1000
	// TuneFraction is the pseudoprob increment relative to the
	// total count in tuning mode.
	TuneFraction = 0.01
)

// Estimator computes a joint probability table with row sums equal
// to row and column sums equal to col. The marginals are normalized
// before the estimation.
type Estimator interface {
	Name() string
	Estimate(row, col []float64, counts *mat.Dense) (*mat.Dense, error)
}

// ByName returns an estimator with default parameters.
func ByName(name string) (Estimator, error) {
	switch name {
	case "approx":
		return Approximate{Pseudocount: DefaultPseudocount}, nil
	case "ml":
		return MaximumLikelihood{Pseudocount: DefaultPseudocount}, nil
	case "chi2":
		return ExactMinChiSquare{Pseudoprob: DefaultPseudoprob}, nil
	case "chi2-linear":
		return MinChiSquare{Pseudoprob: DefaultPseudoprob, Tune: true, MaxTune: DefaultMaxTune}, nil
	}
	return nil, fmt.Errorf("unknown estimator %q", name)
}

// Names lists estimators known to ByName.
var Names = []string{"approx", "ml", "chi2", "chi2-linear"}

// check validates the shapes and returns normalized copies of the
// marginals.
func check(row, col []float64, counts *mat.Dense) (n int, r, c []float64, err error) {
	n = len(row)
	if counts == nil || n == 0 {
		return 0, nil, nil, fmt.Errorf("%w: no counts", ErrShape)
	}
	cr, cc := counts.Dims()
	if len(col) != n || cr != n || cc != n {
		return 0, nil, nil, fmt.Errorf("%w: marginals %d and %d, counts %dx%d",
			ErrShape, len(row), len(col), cr, cc)
	}
	if r, err = normalize(row); err != nil {
		return 0, nil, nil, err
	}
	if c, err = normalize(col); err != nil {
		return 0, nil, nil, err
	}
	return n, r, c, nil
}

func normalize(m []float64) ([]float64, error) {
	for _, v := range m {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative value %v", ErrMarginal, v)
		}
	}
	s := floats.Sum(m)
	if !(s > 0) {
		return nil, fmt.Errorf("%w: sum is %v", ErrMarginal, s)
	}
	res := make([]float64, len(m))
	floats.ScaleTo(res, 1/s, m)
	return res, nil
}

// frequencies adds pseudocount to every cell and normalizes the
// table.
func frequencies(counts *mat.Dense, pseudocount float64) *mat.Dense {
	n, _ := counts.Dims()
	freq := mat.NewDense(n, n, nil)
	freq.Apply(func(i, j int, v float64) float64 {
		return v + pseudocount
	}, counts)
	freq.Scale(1/mat.Sum(freq), freq)
	return freq
}

// regularized adds pseudoprob times the independent table row*col^T
// and normalizes the table.
func regularized(counts *mat.Dense, r, c []float64, pseudoprob float64) *mat.Dense {
	n, _ := counts.Dims()
	freq := mat.NewDense(n, n, nil)
	freq.Outer(pseudoprob, mat.NewVecDense(n, r), mat.NewVecDense(n, c))
	freq.Add(freq, counts)
	freq.Scale(1/mat.Sum(freq), freq)
	return freq
}

// margins returns the row and column sums of a square table.
func margins(t mat.Matrix) (rs, cs []float64) {
	n, _ := t.Dims()
	rs = make([]float64, n)
	cs = make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := t.At(i, j)
			rs[i] += v
			cs[j] += v
		}
	}
	return
}
