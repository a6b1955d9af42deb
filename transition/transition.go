// Package transition builds the basin transition matrices of
// adjacent residues from dimer basin counts and per-residue basin
// probabilities.
package transition

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/basin"
	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/estimate"
)

var log = logging.MustGetLogger("transition")

// Pseudoprob is the regularization used for the transition
// matrices.
const Pseudoprob = 0.1

// ErrMissingPair is returned when the dimer library lacks a pair.
var ErrMissingPair = errors.New("transition: missing dimer counts")

// Pair is an ordered pair of residues.
type Pair struct {
	First, Second bio.Residue
}

func (p Pair) String() string {
	return p.First.String() + "-" + p.Second.String()
}

// DimerLibrary maps ordered residue pairs to basin count tables.
type DimerLibrary map[Pair]*mat.Dense

// Counts returns the count table of a pair.
func (d DimerLibrary) Counts(first, second bio.Residue) (*mat.Dense, error) {
	c, ok := d[Pair{first, second}]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingPair, Pair{first, second})
	}
	return c, nil
}

// Result holds the matrices of all the adjacent pairs.
type Result struct {
	// Trans are the joint probabilities divided by the product
	// of the marginals.
	Trans []*mat.Dense
	// Prob are the estimated joint probabilities.
	Prob []*mat.Dense
	// Counts are the dimer counts used.
	Counts []*mat.Dense
}

// DefaultEstimator is the estimator used when none is given.
func DefaultEstimator() estimate.Estimator {
	return estimate.ExactMinChiSquare{Pseudoprob: Pseudoprob}
}

// Build computes a transition matrix for every pair of adjacent
// residues of seq. basinProb holds unnormalized basin weights for
// every residue. With a nil library all the matrices are ones and
// only Trans is set. Pairs are estimated in parallel; the first
// error is returned.
func Build(seq bio.Residues, basinProb [][basin.N]float64, dimers DimerLibrary, est estimate.Estimator) (*Result, error) {
	if len(basinProb) != len(seq) {
		return nil, fmt.Errorf("transition: %d residues, %d basin probabilities", len(seq), len(basinProb))
	}
	if len(seq) < 1 {
		return nil, errors.New("transition: empty sequence")
	}
	n := len(seq) - 1
	res := &Result{Trans: make([]*mat.Dense, n)}
	if dimers == nil {
		for i := range res.Trans {
			res.Trans[i] = ones()
		}
		log.Info("No dimer library, using independent transitions")
		return res, nil
	}
	if est == nil {
		est = DefaultEstimator()
	}
	res.Prob = make([]*mat.Dense, n)
	res.Counts = make([]*mat.Dense, n)

	// lookups fail fast before starting the workers
	for i := 0; i < n; i++ {
		c, err := dimers.Counts(seq[i], seq[i+1])
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		res.Counts[i] = c
	}

	errs := make([]error, n)
	tasks := make(chan int, n)
	var wg sync.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Add(1)
		go func() {
			for i := range tasks {
				res.Trans[i], res.Prob[i], errs[i] = pair(basinProb[i][:], basinProb[i+1][:], res.Counts[i], est)
			}
			wg.Done()
		}()
	}
	for i := 0; i < n; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("pair %d (%v): %w", i, Pair{seq[i], seq[i+1]}, err)
		}
	}
	log.Infof("Estimated %d transition matrices using %s", n, est.Name())
	return res, nil
}

// pair estimates the joint table of one pair and the corresponding
// transition matrix.
func pair(p1, p2 []float64, counts *mat.Dense, est estimate.Estimator) (trans, prob *mat.Dense, err error) {
	m1, err := normalized(p1)
	if err != nil {
		return nil, nil, err
	}
	m2, err := normalized(p2)
	if err != nil {
		return nil, nil, err
	}
	prob, err = est.Estimate(m1, m2, counts)
	if err != nil {
		return nil, nil, err
	}
	trans = mat.NewDense(basin.N, basin.N, nil)
	trans.Apply(func(i, j int, v float64) float64 {
		return v / (m1[i] * m2[j])
	}, prob)
	return trans, prob, nil
}

func normalized(p []float64) ([]float64, error) {
	sum := floats.Sum(p)
	if !(sum > 0) {
		return nil, fmt.Errorf("%w: basin weights sum to %v", estimate.ErrMarginal, sum)
	}
	return floats.ScaleTo(make([]float64, len(p)), 1/sum, p), nil
}

func ones() *mat.Dense {
	m := mat.NewDense(basin.N, basin.N, nil)
	for i := 0; i < basin.N; i++ {
		for j := 0; j < basin.N; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}
