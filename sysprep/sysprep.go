/*
Sysprep prepares the input of a coarse-grained backbone simulation:
initial structures, harmonic springs and the basin model potential
built from Ramachandran and dimer basin libraries.

The basic usage of sysprep looks like this:

	sysprep --fasta protein.fst --n-system 8 --rama-library rama.db

, this will write system.db with eight replicas and the basin model
with independent transitions. Dimer basin counts are added with:

	sysprep --fasta protein.fst --n-system 8 --rama-library rama.db --dimer-basin-library dimer.db

Libraries are created from text tables with misc/mklib.

To see all the options run:

	sysprep -h
*/
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/google/uuid"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sysprep/bio"
	"bitbucket.org/Davydov/sysprep/estimate"
	"bitbucket.org/Davydov/sysprep/rama"
	"bitbucket.org/Davydov/sysprep/store"
	"bitbucket.org/Davydov/sysprep/system"
	"bitbucket.org/Davydov/sysprep/transition"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = "branch: " + gitbranch + ", revision: " + githash + ", build time: " + buildstamp

// Logger settings.
var log = logging.MustGetLogger("sysprep")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are the loggers controlled by --loglevel.
var modules = []string{"sysprep", "system", "frame", "rama", "estimate", "transition", "optimize", "store"}

// command-line options
var (
	// application
	app = kingpin.New("sysprep", "coarse-grained backbone simulation input preparer").Version(version)

	// input
	fastaFileName = app.Flag("fasta", "protein sequence (FASTA, the first record is used)").Required().ExistingFile()
	nSystem       = app.Flag("n-system", "number of replicas").Required().Int()
	initialF      = app.Flag("initial-structures", "container with initial structures (input/pos)").ExistingFile()
	ramaF         = app.Flag("rama-library", "Ramachandran library container").ExistingFile()
	dimerF        = app.Flag("dimer-basin-library", "dimer basin count library container").ExistingFile()

	// potential parameters
	bondStiffness  = app.Flag("bond-stiffness", "bond spring constant").Default("48").Float64()
	angleStiffness = app.Flag("angle-stiffness", "angle spring constant").Default("175").Float64()
	residueRadius  = app.Flag("residue-radius", "residue radius of the repulsive interaction (1 kT value), 0 disables it").Default("1.25").Float64()
	sharpness      = app.Flag("sharpness", "basin boundary sharpness").Default("2").Float64()
	estimator      = app.Flag("estimator", "transition estimator "+
		"(chi2: exact minimum chi-square, "+
		"chi2-linear: linearized minimum chi-square with tuned pseudoprobability, "+
		"ml: maximum likelihood, "+
		"approx: approximate maximum likelihood"+
		")").Default("chi2").Enum(estimate.Names...)
	pseudoprob = app.Flag("pseudoprob", "pseudoprobability of the chi-square estimators").Default("0.1").Float64()

	// technical
	nThreads = app.Flag("nt", "number of threads to use").Int()
	seed     = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()

	// output
	outF     = app.Flag("output", "output container").Default("system.db").String()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

// readSequence returns the first FASTA record and its residues.
func readSequence(fn string) (bio.Sequence, bio.Residues, error) {
	f, err := os.Open(fn)
	if err != nil {
		return bio.Sequence{}, nil, err
	}
	defer f.Close()
	seqs, err := bio.ParseFasta(f)
	if err != nil {
		return bio.Sequence{}, nil, err
	}
	if len(seqs) == 0 {
		return bio.Sequence{}, nil, errors.New("no sequences in " + fn)
	}
	if len(seqs) > 1 {
		log.Warningf("%d sequences in %s, using the first one", len(seqs), fn)
	}
	res, err := seqs[0].Residues()
	return seqs[0], res, err
}

// readInitial loads initial structures from the input group of a
// container, or from its root.
func readInitial(fn string) ([]system.Structure, error) {
	f, err := store.Open(fn, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g := f.Root()
	if g.Has("input") {
		if g, err = g.Group("input"); err != nil {
			return nil, err
		}
	}
	return system.LoadInitial(g)
}

func readRama(fn string) (*rama.Library, error) {
	f, err := store.Open(fn, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := f.Root().Group("rama")
	if err != nil {
		return nil, err
	}
	return rama.Load(g)
}

func readDimers(fn string) (transition.DimerLibrary, error) {
	f, err := store.Open(fn, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := f.Root().Group("dimer")
	if err != nil {
		return nil, err
	}
	return transition.LoadDimers(g)
}

// options are the settings of a single run.
type options struct {
	fasta      string
	nSystem    int
	initial    string
	rama       string
	dimers     string
	springs    system.SpringConfig
	nonbonded  system.NonbondedConfig
	sharpness  float64
	estimator  string
	pseudoprob float64
	seed       int64
	output     string
}

// flagOptions collects the options from the command line.
func flagOptions() *options {
	springs := system.DefaultSpringConfig
	springs.BondStiffness = *bondStiffness
	springs.AngleStiffness = *angleStiffness
	nonbonded := system.DefaultNonbondedConfig
	nonbonded.ResidueRadius = *residueRadius
	return &options{
		fasta:      *fastaFileName,
		nSystem:    *nSystem,
		initial:    *initialF,
		rama:       *ramaF,
		dimers:     *dimerF,
		springs:    springs,
		nonbonded:  nonbonded,
		sharpness:  *sharpness,
		estimator:  *estimator,
		pseudoprob: *pseudoprob,
		seed:       *seed,
		output:     *outF,
	}
}

// newEstimator returns the named estimator with the pseudoprobability
// of the options.
func (opts *options) newEstimator() (estimate.Estimator, error) {
	est, err := estimate.ByName(opts.estimator)
	if err != nil {
		return nil, err
	}
	switch e := est.(type) {
	case estimate.ExactMinChiSquare:
		e.Pseudoprob = opts.pseudoprob
		est = e
	case estimate.MinChiSquare:
		e.Pseudoprob = opts.pseudoprob
		est = e
	}
	return est, nil
}

// run writes the output container. On error a partially written
// container is removed.
func run(opts *options, rng *rand.Rand) (summary *RunSummary, err error) {
	startTime := time.Now()
	summary = &RunSummary{RunID: uuid.New().String(), NSystem: opts.nSystem, Output: opts.output}
	log.Infof("Run id: %s", summary.RunID)

	rec, seq, err := readSequence(opts.fasta)
	if err != nil {
		return nil, fmt.Errorf("error reading sequence: %w", err)
	}
	log.Infof("Read sequence of %d residues", len(seq))
	log.Debugf("Sequence record:\n%s", rec)
	summary.Sequence = seq.String()
	summary.NResidue = len(seq)

	var initial []system.Structure
	if opts.initial != "" {
		if initial, err = readInitial(opts.initial); err != nil {
			return nil, fmt.Errorf("error reading initial structures: %w", err)
		}
	}

	f, err := store.Create(opts.output)
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %w", err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			log.Debugf("removing %s", opts.output)
			if rerr := os.Remove(opts.output); rerr != nil {
				log.Error("Error removing output file:", rerr)
			}
			summary = nil
		}
	}()
	if err = write(f, seq, initial, opts, rng, summary); err != nil {
		return
	}

	deltaT := time.Since(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()
	return
}

// write fills the input group of the output container.
func write(f *store.File, seq bio.Residues, initial []system.Structure, opts *options, rng *rand.Rand, summary *RunSummary) error {
	input, err := f.Root().CreateGroup("input")
	if err != nil {
		return err
	}
	ctx, err := system.NewContext(seq, input)
	if err != nil {
		return err
	}

	if err := system.WriteSequence(ctx); err != nil {
		return err
	}
	if err := system.WritePositions(ctx, opts.nSystem, initial, rng); err != nil {
		return err
	}
	if err := system.WriteSprings(ctx, opts.springs); err != nil {
		return err
	}

	if opts.rama != "" {
		lib, err := readRama(opts.rama)
		if err != nil {
			return fmt.Errorf("error reading Ramachandran library: %w", err)
		}
		var dimers transition.DimerLibrary
		if opts.dimers != "" {
			if dimers, err = readDimers(opts.dimers); err != nil {
				return fmt.Errorf("error reading dimer library: %w", err)
			}
		}
		est, err := opts.newEstimator()
		if err != nil {
			return err
		}
		log.Infof("Using %s estimator", est.Name())
		cfg := system.BasinConfig{Sharpness: opts.sharpness, Estimator: est}
		if err := system.WriteBasinModel(ctx, lib, dimers, cfg); err != nil {
			return fmt.Errorf("error writing basin model: %w", err)
		}
		summary.Estimator = est.Name()
	} else {
		log.Warning("No Ramachandran library, basin model is not written")
	}

	if opts.nonbonded.ResidueRadius != 0 {
		if err := system.WriteNonbonded(ctx, opts.nonbonded); err != nil {
			return fmt.Errorf("error writing nonbonded potential: %w", err)
		}
	}

	return system.WriteArgs(ctx, map[string]interface{}{
		"fasta":               opts.fasta,
		"n_system":            opts.nSystem,
		"initial_structures":  opts.initial,
		"rama_library":        opts.rama,
		"dimer_basin_library": opts.dimers,
		"bond_stiffness":      opts.springs.BondStiffness,
		"angle_stiffness":     opts.springs.AngleStiffness,
		"residue_radius":      opts.nonbonded.ResidueRadius,
		"sharpness":           opts.sharpness,
		"estimator":           opts.estimator,
		"pseudoprob":          opts.pseudoprob,
		"seed":                opts.seed,
		"output":              opts.output,
		"run_id":              summary.RunID,
	})
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range modules {
		logging.SetLevel(level, m)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)

	runtime.GOMAXPROCS(*nThreads)
	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", effectiveNThreads)

	summary, err := run(flagOptions(), rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal(err)
	}
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = *seed

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
