package lshgo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/lshgo/internal/lsh"
)

// DefaultMaxIterations bounds the doubling phase of TuneNumProbes.
const DefaultMaxIterations = 20

type tuneOptions struct {
	initialProbes int
	maxIterations int
}

// TuneOption configures TuneNumProbes.
type TuneOption func(*tuneOptions)

// WithInitialProbes sets the probe count the doubling phase starts from (default 1).
func WithInitialProbes(p int) TuneOption {
	return func(o *tuneOptions) {
		o.initialProbes = p
	}
}

// WithMaxIterations caps the number of measurements of the doubling phase.
// A negative value removes the cap, in which case an unreachable target
// only ends through ctx or once the probe count overflows.
func WithMaxIterations(n int) TuneOption {
	return func(o *tuneOptions) {
		o.maxIterations = n
	}
}

func applyTuneOptions(optFns []TuneOption) tuneOptions {
	o := tuneOptions{
		initialProbes: 1,
		maxIterations: DefaultMaxIterations,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// TuneNumProbes finds the smallest probe count whose probe precision on the
// training queries reaches target. answers[i] is the index of the true
// nearest neighbor of queries[i].
//
// The probe count first doubles from the initial value until the target is
// met, then bisects the last doubling step. The live probe count of idx is
// unchanged when TuneNumProbes returns; install the result with SetNumProbes.
func TuneNumProbes(ctx context.Context, idx *Index, queries [][]float32, answers []int, target float64, optFns ...TuneOption) (int, error) {
	o := applyTuneOptions(optFns)

	if err := idx.validateTraining(queries, answers); err != nil {
		return 0, err
	}
	if math.IsNaN(target) || target < 0 || target > 1 {
		return 0, fmt.Errorf("%w: target precision must be in [0, 1], got %v", ErrValidation, target)
	}
	if o.initialProbes <= 0 {
		return 0, fmt.Errorf("%w: initial probes: got %d", ErrInvalidNumProbes, o.initialProbes)
	}

	start := time.Now()
	tn := &tuner{ctx: ctx, idx: idx, queries: queries, answers: answers, target: target}

	probes, err := idx.withProbeLock(func(t *lsh.Table) (int, error) {
		tn.table = t
		return tn.run(o)
	})

	idx.metrics.RecordTune(probes, tn.evaluations, time.Since(start), err)
	idx.logger.LogTune(ctx, probes, tn.evaluations, time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return probes, nil
}

// ProbePrecision returns the fraction of queries whose answer appears among
// the candidates (duplicates included) retrieved with numProbes probes. The
// live probe count is left unchanged.
func (idx *Index) ProbePrecision(queries [][]float32, answers []int, numProbes int) (float64, error) {
	if err := idx.validateTraining(queries, answers); err != nil {
		return 0, err
	}
	if numProbes <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidNumProbes, numProbes)
	}

	var precision float64
	_, err := idx.withProbeLock(func(t *lsh.Table) (int, error) {
		tn := &tuner{ctx: context.Background(), idx: idx, table: t, queries: queries, answers: answers}
		var err error
		precision, err = tn.measure(numProbes)
		return 0, err
	})
	return precision, err
}

func (idx *Index) validateTraining(queries [][]float32, answers []int) error {
	if len(queries) != len(answers) {
		return fmt.Errorf("%w: got %d queries but %d answers", ErrValidation, len(queries), len(answers))
	}
	if len(queries) == 0 {
		return fmt.Errorf("%w: no training queries", ErrValidation)
	}
	for i, q := range queries {
		if len(q) != idx.dim {
			return dimensionError(ErrValidation, idx.dim, len(q), i)
		}
		if a := answers[i]; a < 0 || a >= idx.n {
			return fmt.Errorf("%w: answer %d of query %d out of range [0, %d)", ErrValidation, a, i, idx.n)
		}
	}
	return nil
}

// withProbeLock runs fn with exclusive use of the live probe count and
// restores it afterwards.
func (idx *Index) withProbeLock(fn func(t *lsh.Table) (int, error)) (int, error) {
	idx.tuneMu.Lock()
	defer idx.tuneMu.Unlock()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return 0, ErrClosed
	}

	t := idx.table
	original := t.NumProbes()
	defer func() {
		_ = t.SetNumProbes(original)
	}()

	return fn(t)
}

type tuner struct {
	ctx     context.Context
	idx     *Index
	table   *lsh.Table
	queries [][]float32
	answers []int
	target  float64

	evaluations int
	buf         []int32
}

func (tn *tuner) run(o tuneOptions) (int, error) {
	hi, err := tn.grow(o)
	if err != nil {
		return 0, err
	}
	return tn.bisect(hi/2, hi)
}

// grow doubles the probe count until the target precision is met.
func (tn *tuner) grow(o tuneOptions) (int, error) {
	probes, last := o.initialProbes, 0
	for remaining := o.maxIterations; remaining != 0; remaining-- {
		last = probes
		precision, err := tn.measure(probes)
		if err != nil {
			return 0, err
		}
		tn.idx.logger.LogTuneStep(tn.ctx, "grow", probes, precision)
		if precision >= tn.target {
			return probes, nil
		}
		if probes > math.MaxInt32/2 {
			return 0, fmt.Errorf("%w: probe count overflow after %d probes reached precision %v", ErrTuning, probes, precision)
		}
		probes *= 2
	}
	return 0, fmt.Errorf("%w: %d iterations, last probe count %d", ErrMaxIterations, o.maxIterations, last)
}

// bisect narrows (lo, hi] to the smallest probe count meeting the target,
// given that hi meets it.
func (tn *tuner) bisect(lo, hi int) (int, error) {
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		precision, err := tn.measure(mid)
		if err != nil {
			return 0, err
		}
		tn.idx.logger.LogTuneStep(tn.ctx, "bisect", mid, precision)
		if precision >= tn.target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

func (tn *tuner) measure(numProbes int) (float64, error) {
	if err := tn.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTuning, err)
	}
	if err := tn.table.SetNumProbes(numProbes); err != nil {
		return 0, translateError(err)
	}
	tn.evaluations++

	matches := 0
	for i, q := range tn.queries {
		var err error
		tn.buf, err = tn.table.CandidatesWithDuplicates(q, tn.buf[:0])
		if err != nil {
			return 0, translateError(err)
		}
		want := int32(tn.answers[i])
		for _, c := range tn.buf {
			if c == want {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(tn.queries)), nil
}
