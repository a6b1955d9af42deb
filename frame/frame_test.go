package frame

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const smallDiff = 1e-9

func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff
}

func dist(a, b [3]float64) float64 {
	return math.Sqrt((a[0]-b[0])*(a[0]-b[0]) + (a[1]-b[1])*(a[1]-b[1]) + (a[2]-b[2])*(a[2]-b[2]))
}

// angle returns the angle at b formed by a, b and c.
func angle(a, b, c [3]float64) float64 {
	var dot float64
	for i := 0; i < 3; i++ {
		dot += (a[i] - b[i]) * (c[i] - b[i])
	}
	return math.Acos(dot / dist(a, b) / dist(c, b))
}

func randomTransitions(rng *rand.Rand, n int) (torsion, bend, length []float64) {
	torsion = make([]float64, n)
	bend = make([]float64, n)
	length = make([]float64, n)
	for i := 0; i < n; i++ {
		torsion[i] = math.Pi - 2*math.Pi*rng.Float64()
		bend[i] = math.Pi * rng.Float64()
		length[i] = 0.5 + 2*rng.Float64()
	}
	return
}

func TestTABBottomRow(tst *testing.T) {
	m := TAB(0.3, 1.9, 1.4)
	for j, v := range []float64{0, 0, 0, 1} {
		if m.At(3, j) != v {
			tst.Errorf("Wrong bottom row element %d: %v", j, m.At(3, j))
		}
	}
	// translation is the bond length along the first rotation column
	for i := 0; i < 3; i++ {
		if !appreq(m.At(i, 3), 1.4*m.At(i, 0)) {
			tst.Errorf("Translation is not along the rotated axis: %v", m.At(i, 3))
		}
	}
}

func TestFramesOrthonormal(tst *testing.T) {
	rng := rand.New(rand.NewSource(1))
	torsion, bend, length := randomTransitions(rng, 60)
	frames, err := Frames(torsion, bend, length)
	if err != nil {
		tst.Fatal(err)
	}
	if len(frames) != 61 {
		tst.Fatal("Wrong number of frames:", len(frames))
	}
	for k, f := range frames {
		r := f.Slice(0, 3, 0, 3)
		var rrt mat.Dense
		rrt.Mul(r, r.T())
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				exp := 0.0
				if i == j {
					exp = 1
				}
				if math.Abs(rrt.At(i, j)-exp) > 1e-9 {
					tst.Errorf("Frame %d: R*R^T[%d,%d]=%v", k, i, j, rrt.At(i, j))
				}
			}
		}
		if d := mat.Det(r); math.Abs(d-1) > 1e-9 {
			tst.Errorf("Frame %d: det=%v", k, d)
		}
		for j, v := range []float64{0, 0, 0, 1} {
			if f.At(3, j) != v {
				tst.Errorf("Frame %d: wrong bottom row %v", k, f.RawRowView(3))
			}
		}
	}
}

func TestBuildMatchesFrames(tst *testing.T) {
	rng := rand.New(rand.NewSource(2))
	torsion, bend, length := randomTransitions(rng, 20)
	frames, _ := Frames(torsion, bend, length)
	pos, err := Build(torsion, bend, length)
	if err != nil {
		tst.Fatal(err)
	}
	if pos[0] != [3]float64{} {
		tst.Error("First atom is not at the origin:", pos[0])
	}
	for i := range pos {
		if dist(pos[i], translation(frames[i])) > smallDiff {
			tst.Errorf("Atom %d position differs from the frame translation", i)
		}
	}
	for i := 1; i < len(pos); i++ {
		if !appreq(dist(pos[i-1], pos[i]), length[i-1]) {
			tst.Errorf("Bond %d length %v, expected %v", i, dist(pos[i-1], pos[i]), length[i-1])
		}
	}
	for i := 1; i+1 < len(pos); i++ {
		if math.Abs(angle(pos[i-1], pos[i], pos[i+1])-bend[i]) > 1e-7 {
			tst.Errorf("Angle at atom %d: %v, expected %v", i, angle(pos[i-1], pos[i], pos[i+1]), bend[i])
		}
	}
}

func TestBuildShape(tst *testing.T) {
	_, err := Build([]float64{1, 2}, []float64{1}, []float64{1, 2})
	if !errors.Is(err, ErrShape) {
		tst.Error("Mismatched shapes were accepted")
	}
	_, err = FromTorsions(make([][3]float64, 3), make([][3]float64, 2), make([][3]float64, 3))
	if !errors.Is(err, ErrShape) {
		tst.Error("Mismatched triples were accepted")
	}
}

func TestExtended(tst *testing.T) {
	n := 8
	pos, err := Extended(n)
	if err != nil {
		tst.Fatal(err)
	}
	if len(pos) != 3*n {
		tst.Fatal("Wrong number of atoms:", len(pos))
	}
	for i, p := range pos {
		if math.Abs(p[2]) > 1e-9 {
			tst.Errorf("Atom %d is out of plane: %v", i, p)
		}
	}
	for i := range pos {
		for j := i + 2; j < len(pos); j++ {
			if d := dist(pos[i], pos[j]); d < 2.2 {
				tst.Errorf("Atoms %d and %d are too close: %v", i, j, d)
			}
		}
	}
	for i := 1; i+1 < len(pos); i++ {
		exp := CanonicalBend[(i+1)%3]
		if a := angle(pos[i-1], pos[i], pos[i+1]); math.Abs(a-exp) > 1e-7 {
			tst.Errorf("Angle at atom %d: %v, expected %v", i, a/deg, exp/deg)
		}
	}
	for j := 2; j < len(pos); j++ {
		if dist(pos[0], pos[j]) <= dist(pos[0], pos[j-2]) {
			tst.Errorf("Chain is not extended at atom %d", j)
		}
	}
	if e2e := dist(pos[0], pos[len(pos)-1]); e2e < 0.7*BondLength*float64(len(pos)-1) {
		tst.Error("Chain is too compact, end-to-end distance:", e2e)
	}
}

func TestRandomInitialDeterministic(tst *testing.T) {
	p1, err := RandomInitial(12, rand.New(rand.NewSource(42)))
	if err != nil {
		tst.Fatal(err)
	}
	p2, _ := RandomInitial(12, rand.New(rand.NewSource(42)))
	for i := range p1 {
		if p1[i] != p2[i] {
			tst.Fatalf("Atom %d differs between runs with the same seed", i)
		}
	}
	for i := 1; i < len(p1); i++ {
		if !appreq(dist(p1[i-1], p1[i]), BondLength) {
			tst.Errorf("Bond %d has length %v", i, dist(p1[i-1], p1[i]))
		}
	}
}

func TestSingleResidue(tst *testing.T) {
	pos, err := RandomInitial(1, rand.New(rand.NewSource(7)))
	if err != nil {
		tst.Fatal(err)
	}
	if len(pos) != 3 {
		tst.Fatal("Wrong number of atoms:", len(pos))
	}
	Center(pos)
	if pos[1] != [3]float64{} {
		tst.Error("CA is not at the origin:", pos[1])
	}
	if !appreq(dist(pos[0], pos[1]), BondLength) || !appreq(dist(pos[1], pos[2]), BondLength) {
		tst.Error("Wrong bond lengths after centering")
	}
	if _, err := RandomInitial(0, rand.New(rand.NewSource(7))); err == nil {
		tst.Error("Empty chain was accepted")
	}
}
