package rama

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

const (
	deg = math.Pi / 180
	// nKnot is the number of knots of the map tiled three times
	// along each axis.
	nKnot = 3 * NBin
)

// Knots returns the spline knots along one axis in radians: the bin
// starts shifted by -2pi, 0 and 2pi.
func Knots() []float64 {
	k := make([]float64, nKnot)
	for i := range k {
		k[i] = float64(-540+BinWidth*i) * deg
	}
	return k
}

// Centers returns the bin centers in radians.
func Centers() []float64 {
	c := make([]float64, NBin)
	for i := range c {
		c[i] = -math.Pi + math.Pi/NBin + float64(i)*2*math.Pi/NBin
	}
	return c
}

// cardinal holds the not-a-knot cubic splines through the unit
// vectors on the knots. Any spline on the knots is their linear
// combination with the knot values as coefficients.
var cardinal struct {
	once    sync.Once
	splines []interp.NotAKnotCubic
	err     error
}

func cardinalSplines() ([]interp.NotAKnotCubic, error) {
	cardinal.once.Do(func() {
		knots := Knots()
		ys := make([]float64, nKnot)
		cardinal.splines = make([]interp.NotAKnotCubic, nKnot)
		for k := range cardinal.splines {
			ys[k] = 1
			if err := cardinal.splines[k].Fit(knots, ys); err != nil {
				cardinal.err = fmt.Errorf("rama: fitting cardinal spline %d: %w", k, err)
				return
			}
			ys[k] = 0
		}
		log.Debugf("fitted %d cardinal splines", nKnot)
	})
	return cardinal.splines, cardinal.err
}

// weights returns the matrix of cardinal spline values: element
// (i, k) is the k-th cardinal spline evaluated at xs[i].
func weights(xs []float64) (*mat.Dense, error) {
	splines, err := cardinalSplines()
	if err != nil {
		return nil, err
	}
	w := mat.NewDense(len(xs), nKnot, nil)
	for k := range splines {
		for i, x := range xs {
			w.Set(i, k, splines[k].Predict(x))
		}
	}
	return w, nil
}

// Spline is the bicubic interpolant of a map tiled 3x3, which makes
// it periodic on the central tile up to the boundary conditions at
// the outer knots.
type Spline struct {
	tiled *mat.Dense
}

// NewSpline creates the interpolant of a map.
func NewSpline(m *Map) *Spline {
	t := mat.NewDense(nKnot, nKnot, nil)
	for i := 0; i < nKnot; i++ {
		for j := 0; j < nKnot; j++ {
			t.Set(i, j, m[i%NBin][j%NBin])
		}
	}
	return &Spline{tiled: t}
}

// At evaluates the spline at a single point.
func (s *Spline) At(phi, psi float64) (float64, error) {
	g, err := s.Grid([]float64{phi}, []float64{psi})
	if err != nil {
		return 0, err
	}
	return g.At(0, 0), nil
}

// Grid evaluates the spline at every combination of phis and psis.
// Element (i, j) of the result is the value at (phis[i], psis[j]).
func (s *Spline) Grid(phis, psis []float64) (*mat.Dense, error) {
	wphi, err := weights(phis)
	if err != nil {
		return nil, err
	}
	wpsi := wphi
	if !sameSlice(phis, psis) {
		if wpsi, err = weights(psis); err != nil {
			return nil, err
		}
	}
	var tmp mat.Dense
	tmp.Mul(wphi, s.tiled)
	res := mat.NewDense(len(phis), len(psis), nil)
	res.Mul(&tmp, wpsi.T())
	return res, nil
}

func sameSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
