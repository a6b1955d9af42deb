package system

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/sysprep/bio"
)

// Repulsion is the logistic pair potential between residue centers
//
//	V(r) = Height / (1 + exp((r - Radius) / Width)).
type Repulsion struct {
	Height float64
	Width  float64
	Radius float64
}

// NonbondedConfig controls the tabulated pair potential.
type NonbondedConfig struct {
	// ResidueRadius is the distance at which the repulsion equals
	// one kT.
	ResidueRadius float64
	// MaxR is the distance of the last table bin.
	MaxR float64
	// NBin is the number of table bins.
	NBin int
}

// DefaultNonbondedConfig is used by the command line tool unless
// overridden.
var DefaultNonbondedConfig = NonbondedConfig{
	ResidueRadius: 1.25,
	MaxR:          10,
	NBin:          64,
}

const (
	repulsionHeight = 20
	repulsionWidth  = 0.3
)

// NewRepulsion returns the potential with V(residueRadius) = 1.
func NewRepulsion(residueRadius float64) Repulsion {
	return Repulsion{
		Height: repulsionHeight,
		Width:  repulsionWidth,
		Radius: residueRadius - repulsionWidth*math.Log(repulsionHeight-1),
	}
}

// Potential returns V(r).
func (p Repulsion) Potential(r float64) float64 {
	return p.Height / (1 + math.Exp((r-p.Radius)/p.Width))
}

// Deriv returns dV/dr.
func (p Repulsion) Deriv(r float64) float64 {
	s := 1 / (1 + math.Exp((r-p.Radius)/p.Width))
	return -p.Height * s * (1 - s) / p.Width
}

// WriteNonbonded writes the residue groups and the tabulated pair
// potential. Every residue is a group of its three backbone atoms;
// all residue type pairs share the same repulsion. The table holds
// V'(r)/r at r = i*dx, the first bin repeats the second one.
func WriteNonbonded(ctx *Context, cfg NonbondedConfig) error {
	if cfg.ResidueRadius <= 0 || cfg.MaxR <= 0 || cfg.NBin < 2 {
		return fmt.Errorf("system: bad nonbonded settings %+v", cfg)
	}
	force, err := ctx.Force()
	if err != nil {
		return err
	}

	com, err := force.CreateGroup("group_com")
	if err != nil {
		return err
	}
	n := len(ctx.Seq)
	inds := make([]int, 0, 3*n)
	types := make([]int, n)
	for i, r := range ctx.Seq {
		inds = append(inds, 3*i, 3*i+1, 3*i+2)
		types[i] = int(r)
	}
	if err := com.WriteInt("group_inds", inds, n, 3); err != nil {
		return err
	}
	if err := com.WriteInt("group_type", types); err != nil {
		return err
	}

	pairwise, err := force.CreateGroup("pairwise")
	if err != nil {
		return err
	}
	pot := NewRepulsion(cfg.ResidueRadius)
	dx := cfg.MaxR / float64(cfg.NBin-1)
	row := make([]float32, cfg.NBin)
	for i := 1; i < cfg.NBin; i++ {
		r := dx * float64(i)
		row[i] = float32(pot.Deriv(r) / r)
	}
	row[0] = row[1]
	table := make([]float32, 0, bio.NResidue*bio.NResidue*cfg.NBin)
	for i := 0; i < bio.NResidue*bio.NResidue; i++ {
		table = append(table, row...)
	}
	log.Debugf("nonbonded: radius %v, %d bins of %v", pot.Radius, cfg.NBin, dx)
	if err := pairwise.WriteFloat32("dist_pot_deriv_over_r", table,
		bio.NResidue, bio.NResidue, cfg.NBin); err != nil {
		return err
	}
	return pairwise.SetAttr("dx", dx)
}
