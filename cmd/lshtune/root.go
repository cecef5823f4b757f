package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lshgo"
	"github.com/hupe1980/lshgo/codec"
)

type paramFlags struct {
	file      string
	points    int
	dim       int
	distance  string
	family    string
	storage   string
	tables    int
	hashBits  int
	rotations int
	threads   int
	seed      uint64
}

func (f *paramFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.file, "params", "", "load parameters from a JSON or YAML file")
	fs.IntVar(&f.points, "points", 10000, "number of points")
	fs.IntVar(&f.dim, "dim", 32, "point dimension")
	fs.StringVar(&f.distance, "distance", "", "distance ("+strings.Join(lshgo.DistanceNames(), ", ")+")")
	fs.StringVar(&f.family, "family", "", "LSH family ("+strings.Join(lshgo.FamilyNames(), ", ")+")")
	fs.StringVar(&f.storage, "storage", "", "bucket storage ("+strings.Join(lshgo.StorageNames(), ", ")+")")
	fs.IntVar(&f.tables, "tables", 0, "number of hash tables (0 keeps the default)")
	fs.IntVar(&f.hashBits, "hash-bits", 0, "bits per table key; recomputes the number of hash functions (0 keeps the default)")
	fs.IntVar(&f.rotations, "rotations", 0, "cross-polytope pseudo-rotations (0 keeps the default)")
	fs.IntVar(&f.threads, "threads", -1, "table construction threads (0 = GOMAXPROCS, -1 keeps the default)")
	fs.Uint64Var(&f.seed, "seed", 0, "hash function seed (0 keeps the default)")
}

// resolve builds the parameter set from the file (if any) and applies the
// flag overrides. Enum names are parsed strictly.
func (f *paramFlags) resolve(cmd *cobra.Command) (lshgo.ParameterSet, error) {
	var (
		ps  lshgo.ParameterSet
		err error
	)
	if f.file != "" {
		ps, err = loadParameterFile(f.file)
	} else {
		ps, err = lshgo.NewParameterSet(f.points, f.dim)
	}
	if err != nil {
		return lshgo.ParameterSet{}, err
	}

	if f.distance != "" {
		d, err := lshgo.ParseDistance(f.distance)
		if err != nil {
			return lshgo.ParameterSet{}, err
		}
		ps = ps.WithDefaults(lshgo.DistanceName(d))
	}
	if f.family != "" {
		fam, err := lshgo.ParseFamily(f.family)
		if err != nil {
			return lshgo.ParameterSet{}, err
		}
		ps = ps.WithFamily(lshgo.FamilyName(fam))
	}
	if f.storage != "" {
		s, err := lshgo.ParseStorage(f.storage)
		if err != nil {
			return lshgo.ParameterSet{}, err
		}
		ps = ps.WithStorage(lshgo.StorageName(s))
	}
	if f.rotations > 0 {
		ps = ps.WithRotations(f.rotations)
	}
	if f.hashBits > 0 {
		if ps, err = ps.WithHashBits(f.hashBits); err != nil {
			return lshgo.ParameterSet{}, err
		}
	}
	if f.tables > 0 {
		ps = ps.WithNumHashTables(f.tables)
	}
	if f.threads >= 0 && cmd.Flags().Changed("threads") {
		ps = ps.WithSetupThreads(f.threads)
	}
	if f.seed != 0 {
		ps = ps.WithSeed(f.seed)
	}
	return ps, nil
}

func loadParameterFile(path string) (lshgo.ParameterSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return lshgo.ParameterSet{}, err
	}
	defer file.Close()

	ps, err := lshgo.LoadParameters(file, codec.ByExtension(path))
	if err != nil {
		return lshgo.ParameterSet{}, fmt.Errorf("load %s: %w", path, err)
	}
	return ps, nil
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "lshtune",
		Short:        "Build and tune multi-probe LSH indexes",
		Long:         `lshtune builds an LSH nearest-neighbor index over synthetic data and finds the smallest probe count that reaches a target precision.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log index and tuning progress to stderr")

	logger := func() *lshgo.Logger {
		if verbose {
			return lshgo.NewTextLogger(slog.LevelDebug)
		}
		return lshgo.NoopLogger()
	}

	root.AddCommand(newParamsCmd(), newTuneCmd(logger))
	return root
}
