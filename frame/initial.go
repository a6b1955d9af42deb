package frame

import (
	"errors"
	"math"
	"math/rand"
)

const (
	// BondLength is the length of all backbone bonds in the
	// initial structures.
	BondLength = 1.4
	deg        = math.Pi / 180
)

// CanonicalBend holds bend angles of the transitions placing N, CA
// and C: the CA-C-N, C-N-CA and N-CA-C angles.
var CanonicalBend = [3]float64{120 * deg, 120 * deg, 109.5 * deg}

// canonicalGeometry returns per-residue bend angles and bond lengths
// for a chain of n residues.
func canonicalGeometry(n int) (angles, lengths [][3]float64) {
	angles = make([][3]float64, n)
	lengths = make([][3]float64, n)
	for i := 0; i < n; i++ {
		angles[i] = CanonicalBend
		lengths[i] = [3]float64{BondLength, BondLength, BondLength}
	}
	return
}

// RandomInitial creates a chain of n residues with phi and psi drawn
// uniformly from (-pi, pi], trans peptide bonds and canonical bond
// angles and lengths.
func RandomInitial(n int, rng *rand.Rand) ([][3]float64, error) {
	if n < 1 {
		return nil, errors.New("frame: chain should have at least one residue")
	}
	rama := make([][3]float64, n)
	for i := range rama {
		rama[i][0] = math.Pi - 2*math.Pi*rng.Float64()
		rama[i][1] = math.Pi - 2*math.Pi*rng.Float64()
		rama[i][2] = math.Pi
	}
	angles, lengths := canonicalGeometry(n)
	return FromTorsions(rama, angles, lengths)
}

// Extended creates a fully extended chain of n residues: all
// torsions are pi.
func Extended(n int) ([][3]float64, error) {
	if n < 1 {
		return nil, errors.New("frame: chain should have at least one residue")
	}
	rama := make([][3]float64, n)
	for i := range rama {
		rama[i] = [3]float64{math.Pi, math.Pi, math.Pi}
	}
	angles, lengths := canonicalGeometry(n)
	return FromTorsions(rama, angles, lengths)
}

// Center translates the chain in place so that the CA atom of the
// central residue is at the origin. The chain is expected to contain
// N, CA and C atoms for every residue.
func Center(pos [][3]float64) {
	n := len(pos) / 3
	if n == 0 {
		return
	}
	ca := pos[3*(n/2)+1]
	for i := range pos {
		for j := 0; j < 3; j++ {
			pos[i][j] -= ca[j]
		}
	}
	log.Debugf("centered %d atoms on residue %d", len(pos), n/2)
}
