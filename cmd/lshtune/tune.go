package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/lshgo"
	"github.com/hupe1980/lshgo/distance"
	"github.com/hupe1980/lshgo/prom"
	"github.com/hupe1980/lshgo/testutil"
)

type tuneFlags struct {
	queries       int
	noise         float32
	dataSeed      int64
	target        float64
	initialProbes int
	maxIterations int
	metrics       bool
}

func newTuneCmd(logger func() *lshgo.Logger) *cobra.Command {
	var (
		pf paramFlags
		tf tuneFlags
	)

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Tune the probe count on synthetic data",
		Long: `Generate Gaussian points, build an index, draw queries near random points,
compute their exact nearest neighbors and search for the smallest probe count
whose precision reaches the target.

Examples:
  lshtune tune --points 20000 --dim 32 --target 0.9
  lshtune tune --params params.yaml --queries 1000 --max-iterations -1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tf.queries <= 0 {
				return fmt.Errorf("--queries must be positive, got %d", tf.queries)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ps, err := pf.resolve(cmd)
			if err != nil {
				return err
			}
			return runTune(ctx, cmd, ps, tf, logger())
		},
	}

	pf.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&tf.queries, "queries", 200, "number of training queries")
	fs.Float32Var(&tf.noise, "noise", 0.5, "standard deviation of the query perturbation")
	fs.Int64Var(&tf.dataSeed, "data-seed", 42, "seed of the synthetic data")
	fs.Float64Var(&tf.target, "target", 0.9, "target probe precision in [0, 1]")
	fs.IntVar(&tf.initialProbes, "initial-probes", 1, "probe count the search starts from")
	fs.IntVar(&tf.maxIterations, "max-iterations", lshgo.DefaultMaxIterations, "cap on doubling steps (negative = unbounded)")
	fs.BoolVar(&tf.metrics, "metrics", false, "print collected metrics")
	return cmd
}

func runTune(ctx context.Context, cmd *cobra.Command, ps lshgo.ParameterSet, tf tuneFlags, logger *lshgo.Logger) error {
	out := cmd.OutOrStdout()
	rng := testutil.NewRNG(tf.dataSeed)

	var points [][]float32
	dist := distance.SquaredL2
	if ps.Distance() == lshgo.NegativeInnerProduct {
		points = rng.UnitVectors(ps.Points(), ps.Dimension())
		dist = distance.NegativeInnerProduct
	} else {
		points = rng.GaussianVectors(ps.Points(), ps.Dimension())
	}

	reg := prometheus.NewRegistry()
	collector, err := prom.NewCollector(reg)
	if err != nil {
		return err
	}

	start := time.Now()
	idx, err := lshgo.New(points, ps, lshgo.WithLogger(logger), lshgo.WithMetricsCollector(collector))
	if err != nil {
		return err
	}
	defer idx.Close()
	fmt.Fprintf(out, "built index: %d points, dimension %d, %d tables in %v\n",
		idx.Size(), idx.Dimension(), ps.NumHashTables(), time.Since(start).Round(time.Millisecond))

	queries := make([][]float32, tf.queries)
	for i := range queries {
		queries[i] = rng.Perturb(points[rng.Intn(len(points))], tf.noise)
	}
	answers := testutil.ExactNearest(queries, points, dist)

	start = time.Now()
	probes, err := lshgo.TuneNumProbes(ctx, idx, queries, answers, tf.target,
		lshgo.WithInitialProbes(tf.initialProbes),
		lshgo.WithMaxIterations(tf.maxIterations),
	)
	if err != nil {
		return err
	}
	precision, err := idx.ProbePrecision(queries, answers, probes)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "probes: %d\nprecision: %.4f\ntuned in: %v\n", probes, precision, time.Since(start).Round(time.Millisecond))

	if tf.metrics {
		return printMetrics(cmd, reg)
	}
	return nil
}

func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s %g\n", mf.GetName(), labels, value)
		}
	}
	return nil
}
