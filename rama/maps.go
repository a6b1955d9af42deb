package rama

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"bitbucket.org/Davydov/sysprep/bio"
)

// Maps returns one map per residue. The first residue uses the
// statistics conditioned on its right neighbor, the last one on its
// left neighbor. Interior residues combine both sides and subtract
// the aggregated right statistics once. Every map is shifted so that
// the sum of exp(-map) over the grid is one.
func Maps(seq bio.Residues, lib *Library) ([]Map, error) {
	n := len(seq)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d residues", ErrShortSequence, n)
	}
	maps := make([]Map, n)

	first, err := lib.Get(seq[0], Right, seq[1])
	if err != nil {
		return nil, err
	}
	maps[0] = *first

	for i := 1; i < n-1; i++ {
		left, err := lib.Get(seq[i], Left, seq[i-1])
		if err != nil {
			return nil, err
		}
		right, err := lib.Get(seq[i], Right, seq[i+1])
		if err != nil {
			return nil, err
		}
		base, err := lib.Get(seq[i], Right, All)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoBaseline, err)
		}
		m := &maps[i]
		for a := range m {
			for b := range m[a] {
				m[a][b] = left[a][b] + right[a][b] - base[a][b]
			}
		}
	}

	last, err := lib.Get(seq[n-1], Left, seq[n-2])
	if err != nil {
		return nil, err
	}
	maps[n-1] = *last

	neg := make([]float64, NBin*NBin)
	for i := range maps {
		normalize(&maps[i], neg)
	}
	log.Debugf("built %d Ramachandran maps", n)
	return maps, nil
}

// normalize adds log(sum(exp(-m))) to every element of m.
func normalize(m *Map, buf []float64) {
	for a := range m {
		for b := range m[a] {
			buf[a*NBin+b] = -m[a][b]
		}
	}
	lse := floats.LogSumExp(buf)
	for a := range m {
		for b := range m[a] {
			m[a][b] += lse
		}
	}
}
