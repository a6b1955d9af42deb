// mklib converts whitespace-separated text tables into library
// containers used by sysprep.
//
// Ramachandran tables have one entry per line:
//
//	RES DIR NEIGHBOR v1 ... v5184
//
// where DIR is left or right, NEIGHBOR is a residue or ALL and the
// values are the negative log-density grid in [phi][psi] order.
// Dimer tables have one pair per line:
//
//	RES1 RES2 c1 ... c25
//
// with the basin counts in row-major order.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/sysprep/basin"
	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/rama"
	"bitbucket.org/Davydov/sysprep/store"
	"bitbucket.org/Davydov/sysprep/transition"
)

var log = logging.MustGetLogger("mklib")

var (
	app    = kingpin.New("mklib", "library container builder")
	output = app.Flag("output", "output container").Short('o').Required().String()

	ramaCmd   = app.Command("rama", "build a Ramachandran library")
	ramaTable = ramaCmd.Arg("table", "text table").Required().ExistingFile()

	dimerCmd   = app.Command("dimer", "build a dimer basin count library")
	dimerTable = dimerCmd.Arg("table", "text table").Required().ExistingFile()
)

// readFloats converts whitespace-separated fields into float64.
func readFloats(fields []string) ([]float64, error) {
	res := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		res[i] = x
	}
	return res, nil
}

// lines calls fn for the fields of every non-empty line not starting
// with #.
func lines(rd io.Reader, fn func(fields []string) error) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := fn(strings.Fields(line)); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

func parseNeighbor(s string) (bio.Residue, error) {
	if strings.EqualFold(s, rama.AllName) {
		return rama.All, nil
	}
	return bio.ParseResidue(s)
}

// parseRama reads a Ramachandran table.
func parseRama(rd io.Reader) (*rama.Library, error) {
	lib := rama.NewLibrary()
	err := lines(rd, func(fields []string) error {
		if len(fields) != 3+rama.NBin*rama.NBin {
			return fmt.Errorf("%d fields, expected %d", len(fields), 3+rama.NBin*rama.NBin)
		}
		res, err := bio.ParseResidue(fields[0])
		if err != nil {
			return err
		}
		dir, err := rama.ParseDirection(strings.ToLower(fields[1]))
		if err != nil {
			return err
		}
		neighbor, err := parseNeighbor(fields[2])
		if err != nil {
			return err
		}
		v, err := readFloats(fields[3:])
		if err != nil {
			return err
		}
		m := new(rama.Map)
		for a := range m {
			copy(m[a][:], v[a*rama.NBin:])
		}
		lib.Set(res, dir, neighbor, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lib, lib.Validate()
}

// parseDimers reads a dimer count table.
func parseDimers(rd io.Reader) (transition.DimerLibrary, error) {
	lib := make(transition.DimerLibrary)
	err := lines(rd, func(fields []string) error {
		if len(fields) != 2+basin.N*basin.N {
			return fmt.Errorf("%d fields, expected %d", len(fields), 2+basin.N*basin.N)
		}
		first, err := bio.ParseResidue(fields[0])
		if err != nil {
			return err
		}
		second, err := bio.ParseResidue(fields[1])
		if err != nil {
			return err
		}
		v, err := readFloats(fields[2:])
		if err != nil {
			return err
		}
		for _, x := range v {
			if x < 0 {
				return fmt.Errorf("negative count %v", x)
			}
		}
		p := transition.Pair{First: first, Second: second}
		if _, ok := lib[p]; ok {
			log.Warningf("Duplicate pair %v, using the last one", p)
		}
		lib[p] = mat.NewDense(basin.N, basin.N, v)
		return nil
	})
	return lib, err
}

// save writes a library into a new container group.
func save(name string, fn func(g *store.Group) error) {
	f, err := store.Create(*output)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	g, err := f.Root().CreateGroup(name)
	if err != nil {
		log.Fatal(err)
	}
	if err := fn(g); err != nil {
		log.Fatal(err)
	}
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	logging.SetFormatter(logging.MustStringFormatter(`%{message}`))

	switch cmd {
	case ramaCmd.FullCommand():
		f, err := os.Open(*ramaTable)
		if err != nil {
			log.Fatal(err)
		}
		lib, err := parseRama(f)
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
		save("rama", lib.Save)
		log.Noticef("Ramachandran library written to %s", *output)
	case dimerCmd.FullCommand():
		f, err := os.Open(*dimerTable)
		if err != nil {
			log.Fatal(err)
		}
		lib, err := parseDimers(f)
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
		save("dimer", lib.Save)
		log.Noticef("%d dimer pairs written to %s", len(lib), *output)
	}
}
