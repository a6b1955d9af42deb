// Package system writes the simulation input: initial structures,
// harmonic springs and the basin model potential of a sequence.
package system

import (
	"errors"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/store"
)

var log = logging.MustGetLogger("system")

// Context is passed to every writer. Out is the input group of the
// output container.
type Context struct {
	Seq   bio.Residues
	NAtom int
	Out   *store.Group
}

// NewContext creates a context for a sequence. Every residue has
// three backbone atoms: N, CA and C.
func NewContext(seq bio.Residues, out *store.Group) (*Context, error) {
	if len(seq) == 0 {
		return nil, errors.New("system: empty sequence")
	}
	return &Context{Seq: seq, NAtom: 3 * len(seq), Out: out}, nil
}

// Force returns the group holding all the potentials.
func (ctx *Context) Force() (*store.Group, error) {
	return ctx.Out.CreateGroup("force")
}

// WriteSequence stores the sequence as three-letter codes.
func WriteSequence(ctx *Context) error {
	return ctx.Out.WriteStrings("sequence", ctx.Seq.ThreeLetter())
}

// WriteArgs stores the program arguments as attributes of the args
// group.
func WriteArgs(ctx *Context, args map[string]interface{}) error {
	g, err := ctx.Out.CreateGroup("args")
	if err != nil {
		return err
	}
	for k, v := range args {
		if err := g.SetAttr(k, v); err != nil {
			return err
		}
	}
	return nil
}
