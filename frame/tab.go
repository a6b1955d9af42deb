// Package frame builds backbone coordinates from torsion angles by
// composing rigid-body transformations.
package frame

import (
	"math"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/mat"
)

var log = logging.MustGetLogger("frame")

// TAB returns the torsion-angle-bond transformation: a 4x4 affine
// matrix rotating the local frame by the torsion phi and the bend
// theta and translating it by the bond length l along the new x
// axis. The bottom row is always (0, 0, 0, 1).
func TAB(phi, theta, l float64) *mat.Dense {
	cp, sp := math.Cos(phi), math.Sin(phi)
	ct, st := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(4, 4, []float64{
		-ct, -st, 0, -l * ct,
		cp * st, -cp * ct, -sp, l * cp * st,
		sp * st, -sp * ct, cp, l * sp * st,
		0, 0, 0, 1,
	})
}

// translation returns the last column of an affine matrix.
func translation(m mat.Matrix) [3]float64 {
	return [3]float64{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
}
