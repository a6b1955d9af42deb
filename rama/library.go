// Package rama builds per-residue Ramachandran log-density maps from
// neighbor-dependent reference statistics and computes their basin
// resolved probabilities and derivatives.
package rama

import (
	"errors"
	"fmt"
	"math"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/store"
)

var log = logging.MustGetLogger("rama")

const (
	// NBin is the number of bins for each angle.
	NBin = 72
	// BinWidth is the bin width in degrees.
	BinWidth = 360 / NBin
)

// Map is a negative log-density grid indexed [phi][psi]. Bin k
// starts at -180 + 5k degrees.
type Map [NBin][NBin]float64

// Direction is the side of the neighbor a statistics entry is
// conditioned on.
type Direction int

// Directions.
const (
	Left Direction = iota
	Right
)

// NDirection is the number of directions.
const NDirection = 2

var dirNames = [NDirection]string{"left", "right"}

func (d Direction) String() string {
	if d < 0 || d >= NDirection {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return dirNames[d]
}

// ParseDirection converts "left" or "right" into a Direction.
func ParseDirection(s string) (Direction, error) {
	for d, name := range dirNames {
		if name == s {
			return Direction(d), nil
		}
	}
	return -1, fmt.Errorf("unknown direction %q", s)
}

// All is the neighbor index of the statistics aggregated over all
// neighbors.
const All = bio.Residue(bio.NResidue)

// AllName is the name of the aggregate neighbor.
const AllName = "ALL"

var (
	// ErrNoBaseline is returned when the library lacks the
	// aggregated entry of a residue.
	ErrNoBaseline = errors.New("rama: library has no ALL baseline")
	// ErrMissing is returned for a missing library entry.
	ErrMissing = errors.New("rama: missing library entry")
	// ErrShortSequence is returned for sequences with less than
	// two residues.
	ErrShortSequence = errors.New("rama: sequence is too short")
)

// Library stores reference statistics indexed by residue, direction
// and neighbor (a residue or All).
type Library struct {
	maps [bio.NResidue][NDirection][bio.NResidue + 1]*Map
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{}
}

func neighborName(n bio.Residue) string {
	if n == All {
		return AllName
	}
	return n.String()
}

// Set stores an entry.
func (l *Library) Set(res bio.Residue, dir Direction, neighbor bio.Residue, m *Map) {
	l.maps[res][dir][neighbor] = m
}

// Get returns an entry.
func (l *Library) Get(res bio.Residue, dir Direction, neighbor bio.Residue) (*Map, error) {
	if !res.Valid() || dir < 0 || dir >= NDirection || neighbor < 0 || neighbor > All {
		return nil, fmt.Errorf("%w: %v %v %v", ErrMissing, res, dir, neighborName(neighbor))
	}
	m := l.maps[res][dir][neighbor]
	if m == nil {
		return nil, fmt.Errorf("%w: %v %v %v", ErrMissing, res, dir, neighborName(neighbor))
	}
	return m, nil
}

// Validate checks that every residue has the aggregated entries for
// both directions.
func (l *Library) Validate() error {
	for r := bio.Residue(0); r < bio.NResidue; r++ {
		for d := Direction(0); d < NDirection; d++ {
			if l.maps[r][d][All] == nil {
				return fmt.Errorf("%w: %v %v", ErrNoBaseline, r, d)
			}
		}
	}
	return nil
}

// Library container layout: group attributes restype (residue names
// including ALL) and dir, and the array rama with the shape
// [len(restype), len(dir), len(restype), NBin, NBin]. Missing
// entries are filled with NaN.

// Save writes the library into a group.
func (l *Library) Save(g *store.Group) error {
	restype := make([]string, bio.NResidue+1)
	for r := bio.Residue(0); r <= All; r++ {
		restype[r] = neighborName(r)
	}
	nr := len(restype)
	data := make([]float64, nr*NDirection*nr*NBin*NBin)
	const block = NBin * NBin
	for r := 0; r < nr; r++ {
		for d := 0; d < NDirection; d++ {
			for n := 0; n < nr; n++ {
				off := ((r*NDirection+d)*nr + n) * block
				var m *Map
				if r < bio.NResidue {
					m = l.maps[r][d][n]
				}
				for i := 0; i < block; i++ {
					if m == nil {
						data[off+i] = math.NaN()
					} else {
						data[off+i] = m[i/NBin][i%NBin]
					}
				}
			}
		}
	}
	if err := g.WriteFloat64("rama", data, nr, NDirection, nr, NBin, NBin); err != nil {
		return err
	}
	if err := g.SetAttr("restype", restype); err != nil {
		return err
	}
	return g.SetAttr("dir", dirNames[:])
}

// Load reads a library from a group and validates it.
func Load(g *store.Group) (*Library, error) {
	var restype, dirs []string
	if err := g.Attr("restype", &restype); err != nil {
		return nil, err
	}
	if err := g.Attr("dir", &dirs); err != nil {
		return nil, err
	}
	data, shape, err := g.ReadFloat64("rama")
	if err != nil {
		return nil, err
	}
	nr, nd := len(restype), len(dirs)
	if len(shape) != 5 || shape[0] != nr || shape[1] != nd || shape[2] != nr ||
		shape[3] != NBin || shape[4] != NBin {
		return nil, fmt.Errorf("rama: unexpected library shape %v", shape)
	}

	ridx := make([]bio.Residue, nr)
	for i, name := range restype {
		if name == AllName {
			ridx[i] = All
			continue
		}
		if ridx[i], err = bio.ParseResidue(name); err != nil {
			return nil, err
		}
	}
	didx := make([]Direction, nd)
	for i, name := range dirs {
		if didx[i], err = ParseDirection(name); err != nil {
			return nil, err
		}
	}

	l := NewLibrary()
	const block = NBin * NBin
	n := 0
	for r := 0; r < nr; r++ {
		if ridx[r] == All {
			continue
		}
		for d := 0; d < nd; d++ {
		Neighbor:
			for nb := 0; nb < nr; nb++ {
				off := ((r*nd+d)*nr + nb) * block
				m := new(Map)
				for i := 0; i < block; i++ {
					v := data[off+i]
					if math.IsNaN(v) {
						continue Neighbor
					}
					m[i/NBin][i%NBin] = v
				}
				l.Set(ridx[r], didx[d], ridx[nb], m)
				n++
			}
		}
	}
	log.Infof("Loaded %d Ramachandran library entries", n)
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}
