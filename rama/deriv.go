package rama

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"bitbucket.org/Davydov/sysprep/basin"
)

// Eps is the angle step of the central differences.
const Eps = 1e-8

// Channels of a derivative map element.
const (
	Prob = iota
	DPhi
	DPsi
	NChannel
)

// Site is the derivative map of one residue indexed
// [basin][phi][psi][channel]. The Prob channel holds the basin
// probability, DPhi and DPsi the partial derivatives of the basin
// conditioned negative log-probability.
type Site [basin.N][NBin][NBin][NChannel]float64

// targets returns the evaluation angles: for every bin center c the
// triple (c, c+Eps, c-Eps).
func targets() []float64 {
	c := Centers()
	t := make([]float64, 3*NBin)
	for i, x := range c {
		t[3*i] = x
		t[3*i+1] = x + Eps
		t[3*i+2] = x - Eps
	}
	return t
}

// Derivs computes the derivative maps of the interior residues: the
// result has len(maps)-2 sites and site s corresponds to residue s+1.
// Sites are computed in parallel.
func Derivs(maps []Map, model basin.Model) ([]Site, error) {
	if len(maps) < 3 {
		return nil, fmt.Errorf("%w: %d maps, at least 3 are required", ErrShortSequence, len(maps))
	}
	nSites := len(maps) - 2
	sites := make([]Site, nSites)
	errs := make([]error, nSites)
	t := targets()

	tasks := make(chan int, nSites)
	var wg sync.WaitGroup
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		wg.Add(1)
		go func() {
			for s := range tasks {
				errs[s] = siteDeriv(&sites[s], &maps[s+1], model, t)
			}
			wg.Done()
		}()
	}
	for s := 0; s < nSites; s++ {
		tasks <- s
	}
	close(tasks)
	wg.Wait()

	for s, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("site %d: %w", s, err)
		}
	}
	log.Infof("Computed derivative maps for %d sites", nSites)
	return sites, nil
}

// siteDeriv fills the derivative map of a single residue.
func siteDeriv(site *Site, m *Map, model basin.Model, t []float64) error {
	g, err := NewSpline(m).Grid(t, t)
	if err != nil {
		return err
	}
	// lprob for every basin at the point (t[i], t[j])
	lprob := func(i, j int) (lp [basin.N]float64) {
		s := g.At(i, j)
		cond := model.CondProb(t[i], t[j])
		for b := range lp {
			lp[b] = s - math.Log(cond[b])
		}
		return
	}
	for a := 0; a < NBin; a++ {
		for c := 0; c < NBin; c++ {
			i, j := 3*a, 3*c
			lp := lprob(i, j)
			phiP, phiM := lprob(i+1, j), lprob(i+2, j)
			psiP, psiM := lprob(i, j+1), lprob(i, j+2)
			var sum float64
			for b := 0; b < basin.N; b++ {
				v := &site[b][a][c]
				v[Prob] = math.Exp(-lp[b])
				v[DPhi] = (phiP[b] - phiM[b]) / (2 * Eps)
				v[DPsi] = (psiP[b] - psiM[b]) / (2 * Eps)
				sum += v[Prob]
			}
			for b := 0; b < basin.N; b++ {
				site[b][a][c][Prob] /= sum
			}
		}
	}
	return nil
}

// BasinProb returns the basin weights of every site: the Prob
// channel summed over the grid.
func BasinProb(sites []Site) [][basin.N]float64 {
	res := make([][basin.N]float64, len(sites))
	for s := range sites {
		for b := 0; b < basin.N; b++ {
			for a := 0; a < NBin; a++ {
				for c := 0; c < NBin; c++ {
					res[s][b] += sites[s][b][a][c][Prob]
				}
			}
		}
	}
	return res
}
