package system

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/basin"
	"bitbucket.org/Davydov/sysprep/estimate"
	"bitbucket.org/Davydov/sysprep/rama"
	"bitbucket.org/Davydov/sysprep/transition"
)

// BasinConfig controls the basin model potential.
type BasinConfig struct {
	Sharpness float64
	// Estimator is used for the transition matrices; nil means
	// the exact minimum chi-square estimator.
	Estimator estimate.Estimator
}

// DefaultBasinConfig uses the default basin sharpness.
var DefaultBasinConfig = BasinConfig{Sharpness: basin.DefaultSharpness}

// WriteBasinModel writes the hmm_pot group: the atom ids of every
// interior residue, derivative maps, Ramachandran maps and transition
// matrices of adjacent residues. dimers may be nil, then all the
// transitions are independent.
func WriteBasinModel(ctx *Context, lib *rama.Library, dimers transition.DimerLibrary, cfg BasinConfig) error {
	if len(ctx.Seq) < 3 {
		return fmt.Errorf("%w: basin model needs at least 3 residues, got %d", rama.ErrShortSequence, len(ctx.Seq))
	}
	maps, err := rama.Maps(ctx.Seq, lib)
	if err != nil {
		return err
	}
	model := basin.NewModel(cfg.Sharpness)
	sites, err := rama.Derivs(maps, model)
	if err != nil {
		return err
	}
	inner := ctx.Seq[1 : len(ctx.Seq)-1]
	tr, err := transition.Build(inner, rama.BasinProb(sites), dimers, cfg.Estimator)
	if err != nil {
		return err
	}

	force, err := ctx.Force()
	if err != nil {
		return err
	}
	g, err := force.CreateGroup("hmm_pot")
	if err != nil {
		return err
	}
	nSites := len(sites)

	// C(i-1), N, CA, C, N(i+1) of every interior residue
	id := make([]int, 0, 5*nSites)
	idx := make([]int, nSites)
	for s := 0; s < nSites; s++ {
		first := 3*s + 2
		id = append(id, first, first+1, first+2, first+3, first+4)
		idx[s] = s
	}
	if err := g.WriteInt("id", id, nSites, 5); err != nil {
		return err
	}
	if err := g.WriteInt("idx_to_map", idx); err != nil {
		return err
	}
	if err := g.WriteFloat32("rama_deriv", flattenSites(sites),
		nSites, basin.N, rama.NBin, rama.NBin, rama.NChannel); err != nil {
		return err
	}
	pot := make([]float64, 0, nSites*rama.NBin*rama.NBin)
	for _, m := range maps[1 : len(maps)-1] {
		for a := range m {
			pot = append(pot, m[a][:]...)
		}
	}
	if err := g.WriteFloat64("rama_pot", pot, nSites, rama.NBin, rama.NBin); err != nil {
		return err
	}
	if err := g.WriteFloat32("trans_matrices", flatten32(tr.Trans), len(tr.Trans), basin.N, basin.N); err != nil {
		return err
	}
	if tr.Prob != nil {
		if err := g.WriteFloat64("prob_matrices", flatten(tr.Prob), len(tr.Prob), basin.N, basin.N); err != nil {
			return err
		}
		if err := g.WriteFloat64("count_matrices", flatten(tr.Counts), len(tr.Counts), basin.N, basin.N); err != nil {
			return err
		}
	}
	if err := g.SetAttr("sharpness", cfg.Sharpness); err != nil {
		return err
	}
	log.Infof("Basin model written for %d sites", nSites)
	return nil
}

func flattenSites(sites []rama.Site) []float32 {
	res := make([]float32, 0, len(sites)*basin.N*rama.NBin*rama.NBin*rama.NChannel)
	for s := range sites {
		for b := range sites[s] {
			for i := range sites[s][b] {
				for j := range sites[s][b][i] {
					for _, v := range sites[s][b][i][j] {
						res = append(res, float32(v))
					}
				}
			}
		}
	}
	return res
}

func flatten(ms []*mat.Dense) []float64 {
	res := make([]float64, 0, len(ms)*basin.N*basin.N)
	for _, m := range ms {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				res = append(res, m.At(i, j))
			}
		}
	}
	return res
}

func flatten32(ms []*mat.Dense) []float32 {
	f := flatten(ms)
	res := make([]float32, len(f))
	for i, v := range f {
		res[i] = float32(v)
	}
	return res
}
