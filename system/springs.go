package system

import (
	"math"

	"bitbucket.org/Davydov/sysprep/store"
)

const deg = math.Pi / 180

// SpringConfig holds the constants of the harmonic backbone springs.
type SpringConfig struct {
	BondLength     float64
	BondStiffness  float64
	AngleStiffness float64
	OmegaStiffness float64
}

// DefaultSpringConfig is used by the command line tool unless
// overridden.
var DefaultSpringConfig = SpringConfig{
	BondLength:     1.4,
	BondStiffness:  48,
	AngleStiffness: 175,
	OmegaStiffness: 30,
}

// equilibrium cosines of the angles centered on CA, C and N
var angleCos = [3]float64{
	math.Cos(109.5 * deg),
	math.Cos(120 * deg),
	math.Cos(120 * deg),
}

// WriteSprings writes the bond, angle and peptide dihedral springs
// into the force group.
func WriteSprings(ctx *Context, cfg SpringConfig) error {
	force, err := ctx.Force()
	if err != nil {
		return err
	}
	if err := writeDistSprings(ctx, force, cfg); err != nil {
		return err
	}
	if err := writeAngleSprings(ctx, force, cfg); err != nil {
		return err
	}
	return writeDihedralSprings(ctx, force, cfg)
}

// writeDistSprings connects every pair of consecutive atoms.
func writeDistSprings(ctx *Context, force *store.Group, cfg SpringConfig) error {
	g, err := force.CreateGroup("dist_spring")
	if err != nil {
		return err
	}
	n := ctx.NAtom - 1
	id := make([]int, 0, 2*n)
	equil := make([]float64, n)
	k := make([]float64, n)
	bonded := make([]bool, n)
	for i := 0; i < n; i++ {
		id = append(id, i, i+1)
		equil[i] = cfg.BondLength
		k[i] = cfg.BondStiffness
		bonded[i] = true
	}
	if err := g.WriteInt("id", id, n, 2); err != nil {
		return err
	}
	if err := g.WriteFloat64("equil_dist", equil); err != nil {
		return err
	}
	if err := g.WriteFloat64("spring_const", k); err != nil {
		return err
	}
	return g.WriteBool("bonded_atoms", bonded)
}

// writeAngleSprings restrains every triple of consecutive atoms. The
// id rows are (first, last, center) and the equilibrium values are
// cosines.
func writeAngleSprings(ctx *Context, force *store.Group, cfg SpringConfig) error {
	g, err := force.CreateGroup("angle_spring")
	if err != nil {
		return err
	}
	n := ctx.NAtom - 2
	if n < 0 {
		n = 0
	}
	id := make([]int, 0, 3*n)
	equil := make([]float64, n)
	k := make([]float64, n)
	for i := 0; i < n; i++ {
		id = append(id, i, i+2, i+1)
		equil[i] = angleCos[i%3]
		k[i] = cfg.AngleStiffness
	}
	if err := g.WriteInt("id", id, n, 3); err != nil {
		return err
	}
	if err := g.WriteFloat64("equil_dist", equil); err != nil {
		return err
	}
	return g.WriteFloat64("spring_const", k)
}

// writeDihedralSprings keeps the CA-C-N-CA omega torsions trans.
func writeDihedralSprings(ctx *Context, force *store.Group, cfg SpringConfig) error {
	g, err := force.CreateGroup("dihedral_spring")
	if err != nil {
		return err
	}
	var id []int
	for i := 1; i < ctx.NAtom-3; i += 3 {
		id = append(id, i, i+1, i+2, i+3)
	}
	n := len(id) / 4
	equil := make([]float64, n)
	k := make([]float64, n)
	for i := range equil {
		equil[i] = 180 * deg
		k[i] = cfg.OmegaStiffness
	}
	if err := g.WriteInt("id", id, n, 4); err != nil {
		return err
	}
	if err := g.WriteFloat64("equil_dist", equil); err != nil {
		return err
	}
	return g.WriteFloat64("spring_const", k)
}
