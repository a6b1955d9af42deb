package transition

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/sysprep/basin"
	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/estimate"
	"bitbucket.org/Davydov/sysprep/store"
)

const smallDiff = 1e-6

func counts(seed float64) *mat.Dense {
	c := mat.NewDense(basin.N, basin.N, nil)
	for i := 0; i < basin.N; i++ {
		for j := 0; j < basin.N; j++ {
			v := 5 + 3*math.Sin(seed+float64(3*i+j))
			if i == j {
				v += 20
			}
			c.Set(i, j, math.Round(v))
		}
	}
	return c
}

func basinProb(n int) [][basin.N]float64 {
	p := make([][basin.N]float64, n)
	for i := range p {
		for b := range p[i] {
			p[i][b] = 100 + 50*math.Cos(float64(i+2*b))
		}
	}
	return p
}

func testLibrary() DimerLibrary {
	d := make(DimerLibrary)
	for a := bio.Residue(0); a < bio.NResidue; a++ {
		for b := bio.Residue(0); b < bio.NResidue; b++ {
			d[Pair{a, b}] = counts(float64(a) + 0.05*float64(b))
		}
	}
	return d
}

func TestIndependent(tst *testing.T) {
	seq, _ := bio.Translate("MKTAYIAK")
	res, err := Build(seq, basinProb(len(seq)), nil, nil)
	if err != nil {
		tst.Fatal(err)
	}
	if len(res.Trans) != len(seq)-1 {
		tst.Fatal("Wrong number of matrices:", len(res.Trans))
	}
	for _, t := range res.Trans {
		if mat.Min(t) != 1 || mat.Max(t) != 1 {
			tst.Error("Matrix is not all ones")
		}
	}
	if res.Prob != nil || res.Counts != nil {
		tst.Error("Probabilities without a library")
	}
}

func TestBuild(tst *testing.T) {
	seq, _ := bio.Translate("MKTAYIAKQR")
	bp := basinProb(len(seq))
	lib := testLibrary()
	res, err := Build(seq, bp, lib, nil)
	if err != nil {
		tst.Fatal(err)
	}
	for i := range res.Trans {
		m1, _ := normalized(bp[i][:])
		m2, _ := normalized(bp[i+1][:])
		rs := make([]float64, basin.N)
		cs := make([]float64, basin.N)
		for a := 0; a < basin.N; a++ {
			for b := 0; b < basin.N; b++ {
				p := res.Prob[i].At(a, b)
				rs[a] += p
				cs[b] += p
				if math.Abs(res.Trans[i].At(a, b)*m1[a]*m2[b]-p) > 1e-12 {
					tst.Errorf("Pair %d: transition is not the odds ratio at (%d, %d)", i, a, b)
				}
			}
		}
		for a := 0; a < basin.N; a++ {
			if math.Abs(rs[a]-m1[a]) > smallDiff || math.Abs(cs[a]-m2[a]) > smallDiff {
				tst.Errorf("Pair %d: marginals are not reproduced", i)
			}
		}
		if res.Counts[i] != lib[Pair{seq[i], seq[i+1]}] {
			tst.Errorf("Pair %d: wrong counts", i)
		}
	}
}

func TestBuildEstimator(tst *testing.T) {
	seq, _ := bio.Translate("GAV")
	res, err := Build(seq, basinProb(3), testLibrary(), estimate.MinChiSquare{Pseudoprob: 10, Tune: true})
	if err != nil {
		tst.Fatal(err)
	}
	if len(res.Prob) != 2 {
		tst.Error("Wrong number of matrices:", len(res.Prob))
	}
}

func TestMissingPair(tst *testing.T) {
	seq, _ := bio.Translate("GAVW")
	lib := testLibrary()
	delete(lib, Pair{bio.VAL, bio.TRP})
	_, err := Build(seq, basinProb(4), lib, nil)
	if !errors.Is(err, ErrMissingPair) {
		tst.Error("Missing pair was not reported:", err)
	}
	if _, err := Build(seq, basinProb(3), lib, nil); err == nil {
		tst.Error("Wrong number of basin probabilities was accepted")
	}
}

func TestDimerSaveLoad(tst *testing.T) {
	f, err := store.Create(filepath.Join(tst.TempDir(), "dimer.db"))
	if err != nil {
		tst.Fatal(err)
	}
	defer f.Close()
	g, err := f.Root().CreateGroup("dimer")
	if err != nil {
		tst.Fatal(err)
	}
	lib := testLibrary()
	if err := lib.Save(g); err != nil {
		tst.Fatal(err)
	}
	res, err := LoadDimers(g)
	if err != nil {
		tst.Fatal(err)
	}
	if len(res) != len(lib) {
		tst.Fatal("Wrong number of pairs:", len(res))
	}
	for p, c := range lib {
		if !mat.Equal(c, res[p]) {
			tst.Errorf("Counts of %v changed", p)
		}
	}
}
