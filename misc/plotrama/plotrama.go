// plotrama draws the Ramachandran potential of one site of a system
// container as a heat map.
package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/sysprep/rama"
	"bitbucket.org/Davydov/sysprep/store"
)

var log = logging.MustGetLogger("plotrama")

var (
	app    = kingpin.New("plotrama", "Ramachandran potential plotter")
	input  = app.Arg("system", "system container written by sysprep").Required().ExistingFile()
	site   = app.Flag("site", "site number").Default("0").Int()
	output = app.Flag("output", "output image").Short('o').Default("rama.png").String()
	size   = app.Flag("size", "image size in inches").Default("5").Float64()
)

// grid is a single site map; columns are phi bins and rows are psi
// bins.
type grid []float64

func (g grid) Dims() (c, r int)   { return rama.NBin, rama.NBin }
func (g grid) Z(c, r int) float64 { return g[c*rama.NBin+r] }
func (g grid) X(c int) float64    { return float64(-180 + rama.BinWidth*c) }
func (g grid) Y(r int) float64    { return float64(-180 + rama.BinWidth*r) }

// readSite returns the map of a site from a rama_pot array.
func readSite(g *store.Group, s int) (grid, error) {
	pot, shape, err := g.ReadFloat64("rama_pot")
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 || shape[1] != rama.NBin || shape[2] != rama.NBin {
		return nil, fmt.Errorf("unexpected rama_pot shape %v", shape)
	}
	if s < 0 || s >= shape[0] {
		return nil, fmt.Errorf("site %d is out of range [0, %d)", s, shape[0])
	}
	n := rama.NBin * rama.NBin
	return grid(pot[s*n : (s+1)*n]), nil
}

// draw creates the heat map plot.
func draw(g grid, title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "phi"
	p.Y.Label.Text = "psi"
	p.Add(plotter.NewHeatMap(g, palette.Heat(64, 1)))
	p.X.Min, p.X.Max = -180, 180
	p.Y.Min, p.Y.Max = -180, 180
	return p
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	logging.SetFormatter(logging.MustStringFormatter(`%{message}`))

	f, err := store.Open(*input, true)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	g, err := f.Root().Group("input")
	if err == nil {
		g, err = g.Group("force")
	}
	if err == nil {
		g, err = g.Group("hmm_pot")
	}
	if err != nil {
		log.Fatal(err)
	}
	m, err := readSite(g, *site)
	if err != nil {
		log.Fatal(err)
	}
	p := draw(m, fmt.Sprintf("site %d", *site))
	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, *output); err != nil {
		log.Fatal(err)
	}
	log.Noticef("Plot saved to %s", *output)
}
