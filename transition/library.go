package transition

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/basin"
	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/store"
)

// Dimer library container layout: string arrays first and second
// with the residue names of every pair and the array counts with the
// shape [npairs, basin.N, basin.N].

// Save writes the library into a group. Pairs are stored in order.
func (d DimerLibrary) Save(g *store.Group) error {
	pairs := make([]Pair, 0, len(d))
	for p := range d {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].First != pairs[j].First {
			return pairs[i].First < pairs[j].First
		}
		return pairs[i].Second < pairs[j].Second
	})
	first := make([]string, len(pairs))
	second := make([]string, len(pairs))
	const block = basin.N * basin.N
	counts := make([]float64, 0, len(pairs)*block)
	for i, p := range pairs {
		c := d[p]
		if r, cc := c.Dims(); r != basin.N || cc != basin.N {
			return fmt.Errorf("transition: %v counts have shape %dx%d", p, r, cc)
		}
		first[i] = p.First.String()
		second[i] = p.Second.String()
		for a := 0; a < basin.N; a++ {
			counts = append(counts, c.RawRowView(a)...)
		}
	}
	if err := g.WriteStrings("first", first); err != nil {
		return err
	}
	if err := g.WriteStrings("second", second); err != nil {
		return err
	}
	return g.WriteFloat64("counts", counts, len(pairs), basin.N, basin.N)
}

// LoadDimers reads a dimer library from a group.
func LoadDimers(g *store.Group) (DimerLibrary, error) {
	first, err := g.ReadStrings("first")
	if err != nil {
		return nil, err
	}
	second, err := g.ReadStrings("second")
	if err != nil {
		return nil, err
	}
	counts, shape, err := g.ReadFloat64("counts")
	if err != nil {
		return nil, err
	}
	n := len(first)
	if len(second) != n || len(shape) != 3 || shape[0] != n || shape[1] != basin.N || shape[2] != basin.N {
		return nil, fmt.Errorf("transition: inconsistent dimer library: %d/%d pairs, counts %v",
			len(first), len(second), shape)
	}
	d := make(DimerLibrary, n)
	const block = basin.N * basin.N
	for i := 0; i < n; i++ {
		r1, err := bio.ParseResidue(first[i])
		if err != nil {
			return nil, err
		}
		r2, err := bio.ParseResidue(second[i])
		if err != nil {
			return nil, err
		}
		c := make([]float64, block)
		copy(c, counts[i*block:])
		d[Pair{r1, r2}] = mat.NewDense(basin.N, basin.N, c)
	}
	log.Infof("Loaded %d dimer count tables", n)
	return d, nil
}
