package frame

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when the angle and length arrays do not match.
var ErrShape = errors.New("frame: shape mismatch")

// Frames composes the transformations for the bond transitions
// (torsion[i], bend[i], length[i]) and returns the cumulative frames.
// The first frame is the identity, so len(torsion)+1 frames are
// returned. Transformations are right-multiplied in chain order.
func Frames(torsion, bend, length []float64) ([]*mat.Dense, error) {
	if len(torsion) != len(bend) || len(bend) != len(length) {
		return nil, fmt.Errorf("%w: %d torsions, %d bend angles, %d bond lengths",
			ErrShape, len(torsion), len(bend), len(length))
	}
	frames := make([]*mat.Dense, len(torsion)+1)
	frames[0] = identity()
	for i := range torsion {
		next := mat.NewDense(4, 4, nil)
		next.Mul(frames[i], TAB(torsion[i], bend[i], length[i]))
		frames[i+1] = next
	}
	return frames, nil
}

// Build returns absolute atom positions for a chain with the given
// bond transitions. The first atom is placed at the origin, the
// position of every next atom is the translation of the cumulative
// frame.
func Build(torsion, bend, length []float64) ([][3]float64, error) {
	if len(torsion) != len(bend) || len(bend) != len(length) {
		return nil, fmt.Errorf("%w: %d torsions, %d bend angles, %d bond lengths",
			ErrShape, len(torsion), len(bend), len(length))
	}
	pos := make([][3]float64, len(torsion)+1)
	cur := identity()
	next := mat.NewDense(4, 4, nil)
	for i := range torsion {
		next.Mul(cur, TAB(torsion[i], bend[i], length[i]))
		cur, next = next, cur
		pos[i+1] = translation(cur)
	}
	return pos, nil
}

// FromTorsions builds N, CA and C positions for every residue given
// per-residue (phi, psi, omega) torsions, bend angles and bond
// lengths. Bend angles and lengths are stored per residue in the
// order of the atoms they place: (N, CA, C). The transition placing
// N of residue i+1 uses psi of residue i, CA of residue i+1 uses
// omega of residue i and C of residue i+1 uses phi of residue
// i+1. The first residue has no preceding torsions.
func FromTorsions(rama, angles, lengths [][3]float64) ([][3]float64, error) {
	if len(rama) != len(angles) || len(angles) != len(lengths) {
		return nil, fmt.Errorf("%w: %d torsion, %d angle, %d length triples",
			ErrShape, len(rama), len(angles), len(lengths))
	}
	if len(rama) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrShape)
	}
	nAtom := 3 * len(rama)
	torsion := make([]float64, nAtom)
	bend := make([]float64, nAtom)
	length := make([]float64, nAtom)
	for i := range rama {
		for j := 0; j < 3; j++ {
			bend[3*i+j] = angles[i][j]
			length[3*i+j] = lengths[i][j]
		}
		if i > 0 {
			torsion[3*i] = rama[i-1][1]
			torsion[3*i+1] = rama[i-1][2]
			torsion[3*i+2] = rama[i][0]
		}
	}
	// the first transition would place the first atom, which is
	// kept at the origin instead
	return Build(torsion[1:], bend[1:], length[1:])
}

func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}
