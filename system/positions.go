package system

import (
	"fmt"
	"math/rand"

	"bitbucket.org/Davydov/sysprep/frame"
	"bitbucket.org/Davydov/sysprep/store"
)

// Structure is a table of atom positions.
type Structure [][3]float64

// WritePositions writes the pos array with the shape
// [NAtom, 3, nSystem]. Replicas cycle through the initial
// structures; without them every replica is a random chain centered
// on its middle residue.
func WritePositions(ctx *Context, nSystem int, initial []Structure, rng *rand.Rand) error {
	if nSystem < 1 {
		return fmt.Errorf("system: number of systems should be positive, got %d", nSystem)
	}
	for i, s := range initial {
		if len(s) != ctx.NAtom {
			return fmt.Errorf("system: initial structure %d has %d atoms, expected %d", i, len(s), ctx.NAtom)
		}
	}
	if len(initial) > 0 && len(initial) < nSystem {
		log.Noticef("%d initial structures for %d systems, structures will be recycled", len(initial), nSystem)
	}

	pos := make([]float32, ctx.NAtom*3*nSystem)
	for k := 0; k < nSystem; k++ {
		var s Structure
		if len(initial) > 0 {
			s = initial[k%len(initial)]
		} else {
			var err error
			if s, err = frame.RandomInitial(len(ctx.Seq), rng); err != nil {
				return err
			}
			frame.Center(s)
		}
		for a := range s {
			for d := 0; d < 3; d++ {
				pos[(a*3+d)*nSystem+k] = float32(s[a][d])
			}
		}
	}
	log.Infof("Writing positions of %d systems", nSystem)
	return ctx.Out.WriteFloat32("pos", pos, ctx.NAtom, 3, nSystem)
}

// LoadInitial reads structures from a pos array with the shape
// [NAtom, 3, n].
func LoadInitial(g *store.Group) ([]Structure, error) {
	data, shape, err := g.ReadFloat64("pos")
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 || shape[1] != 3 {
		return nil, fmt.Errorf("system: unexpected initial structures shape %v", shape)
	}
	nAtom, n := shape[0], shape[2]
	res := make([]Structure, n)
	for k := range res {
		res[k] = make(Structure, nAtom)
		for a := 0; a < nAtom; a++ {
			for d := 0; d < 3; d++ {
				res[k][a][d] = data[(a*3+d)*n+k]
			}
		}
	}
	log.Infof("Loaded %d initial structures", n)
	return res, nil
}
