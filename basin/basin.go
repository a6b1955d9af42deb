// Package basin implements the soft five-basin model of the backbone
// (phi, psi) plane. Every basin is a smooth periodic box; the
// conditional probability of a basin at a point is its indicator
// divided by the sum of all indicators.
package basin

import (
	"fmt"
	"math"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("basin")

// Basin is a conformational basin.
type Basin int

// Basins in the order they are stored in the output arrays.
const (
	AlphaR Basin = iota
	Beta
	PPII
	AlphaL
	Gamma
)

// N is the number of basins.
const N = 5

// DefaultSharpness is the sigmoid sharpness used for both angles.
const DefaultSharpness = 2

const deg = math.Pi / 180

var names = [N]string{"alpha_R", "beta", "PPII", "alpha_L", "gamma"}

func (b Basin) String() string {
	if b < 0 || b >= N {
		return fmt.Sprintf("Basin(%d)", int(b))
	}
	return names[b]
}

// Box is a periodic rectangle in the (phi, psi) plane. Bounds are in
// radians. When a lower bound exceeds the upper one, the interval
// wraps through pi.
type Box struct {
	Phi0, Phi1 float64
	Psi0, Psi1 float64

	phiMid, psiMid       float64
	phiSwitch, psiSwitch float64
}

// NewBox creates a box from bounds given in degrees. It panics if an
// interval is empty.
func NewBox(phi0, phi1, psi0, psi1 float64) Box {
	b := Box{Phi0: phi0 * deg, Phi1: phi1 * deg, Psi0: psi0 * deg, Psi1: psi1 * deg}
	b.phiMid, b.phiSwitch = center(b.Phi0, b.Phi1)
	b.psiMid, b.psiSwitch = center(b.Psi0, b.Psi1)
	return b
}

// center returns the middle of a periodic interval and the cosine of
// its half width.
func center(lo, hi float64) (mid, sw float64) {
	if lo > hi {
		hi += 2 * math.Pi
	}
	if !(lo < hi) {
		panic(fmt.Sprintf("basin: empty interval (%v, %v)", lo/deg, hi/deg))
	}
	mid = (lo + hi) / 2
	return mid, math.Cos(hi - mid)
}

// Indicator returns the unnormalized smooth membership of the point
// (phi, psi). aPhi and aPsi control the sigmoid sharpness.
func (b Box) Indicator(phi, psi, aPhi, aPsi float64) float64 {
	dphi := math.Cos(phi - b.phiMid)
	dpsi := math.Cos(psi - b.psiMid)
	return 1 / ((1 + math.Exp(-aPhi*(dphi-b.phiSwitch))) *
		(1 + math.Exp(-aPsi*(dpsi-b.psiSwitch))))
}

// Boxes are the fixed basin definitions.
var Boxes = [N]Box{
	AlphaR: NewBox(-180, 0, -100, 50),
	Beta:   NewBox(-180, -100, 50, -100),
	PPII:   NewBox(-100, 0, 50, -100),
	AlphaL: NewBox(0, 180, -50, 100),
	Gamma:  NewBox(0, 180, 100, -50),
}

// Model holds the sharpness parameters of the basin indicators.
type Model struct {
	APhi, APsi float64
}

// NewModel creates a model with the same sharpness for both angles.
func NewModel(sharpness float64) Model {
	if sharpness <= 0 {
		log.Warningf("non-positive basin sharpness %v", sharpness)
	}
	return Model{APhi: sharpness, APsi: sharpness}
}

// Indicators returns unnormalized indicators of all the basins.
func (m Model) Indicators(phi, psi float64) (ind [N]float64) {
	for i := range Boxes {
		ind[i] = Boxes[i].Indicator(phi, psi, m.APhi, m.APsi)
	}
	return
}

// CondProb returns P(basin | phi, psi) for all the basins. The
// values sum to one.
func (m Model) CondProb(phi, psi float64) (p [N]float64) {
	p = m.Indicators(phi, psi)
	var sum float64
	for _, v := range p {
		sum += v
	}
	for i := range p {
		p[i] /= sum
	}
	return
}
