package lshgo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/lshgo/internal/lsh"
)

const (
	// NoNeighbor is returned by FindNearest when the probing sequence finds no candidate.
	NoNeighbor = -1

	// NoMaxCandidates removes the per-query candidate cap.
	NoMaxCandidates = lsh.NoMaxCandidates
)

// TableStats describes the bucket layout of one hash table.
type TableStats = lsh.StoreStats

// Index is an approximate nearest-neighbor index over a fixed point set.
//
// Queries are safe for concurrent use. SetNumProbes, SetMaxCandidates and
// TuneNumProbes change the live query configuration and must not be
// interleaved with queries on the same Index.
type Index struct {
	params ParameterSet
	points []float32 // owned, row-major
	n      int
	dim    int

	// mu guards table against Close; queries hold it shared.
	mu    sync.RWMutex
	table *lsh.Table

	// tuneMu serializes changes of the query knobs, tuning included.
	tuneMu sync.Mutex

	logger  *Logger
	metrics MetricsCollector
}

// New builds an index over points. Every point must have params.Dimension()
// coordinates. The points are copied; later changes to the caller's slices do
// not affect the index.
func New(points [][]float32, params ParameterSet, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	idx, err := build(points, params, opts)

	opts.metricsCollector.RecordBuild(len(points), time.Since(start), err)
	opts.logger.LogBuild(context.Background(), params, len(points), time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return idx, nil
}

// NewFromMatrix builds an index whose points are the rows of m.
func NewFromMatrix(m mat.Matrix, params ParameterSet, optFns ...Option) (*Index, error) {
	r, c := m.Dims()
	points := make([][]float32, r)
	data := make([]float32, r*c)
	for i := range r {
		row := data[i*c : (i+1)*c]
		for j := range c {
			row[j] = float32(m.At(i, j))
		}
		points[i] = row
	}
	return New(points, params, optFns...)
}

func build(points [][]float32, params ParameterSet, opts options) (*Index, error) {
	dim := params.Dimension()
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, dim)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: point set is empty", ErrConfiguration)
	}

	flat := make([]float32, 0, len(points)*dim)
	for i, p := range points {
		if len(p) != dim {
			return nil, dimensionError(ErrConfiguration, dim, len(p), i)
		}
		flat = append(flat, p...)
	}

	table, err := lsh.Construct(flat, dim, params.p)
	if err != nil {
		return nil, translateError(err)
	}

	return &Index{
		params:  params,
		points:  flat,
		n:       len(points),
		dim:     dim,
		table:   table,
		logger:  opts.logger.WithDimension(dim),
		metrics: opts.metricsCollector,
	}, nil
}

// Size returns the number of indexed points.
func (idx *Index) Size() int { return idx.n }

// Dimension returns the point dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Parameters returns the parameters the index was built with.
func (idx *Index) Parameters() ParameterSet { return idx.params }

// Point returns a copy of the i-th indexed point.
func (idx *Index) Point(i int) ([]float32, error) {
	if i < 0 || i >= idx.n {
		return nil, fmt.Errorf("%w: point %d out of range [0, %d)", ErrValidation, i, idx.n)
	}
	out := make([]float32, idx.dim)
	copy(out, idx.points[i*idx.dim:])
	return out, nil
}

// Stats reports the bucket layout of every hash table.
func (idx *Index) Stats() ([]TableStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return nil, ErrClosed
	}
	return idx.table.Stats(), nil
}

// Close releases the hash tables. Queries after Close fail with ErrClosed;
// a second Close returns ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.table == nil {
		return ErrClosed
	}
	err := idx.table.Close()
	idx.table = nil
	return translateError(err)
}

// NumProbes returns the live number of probes per query.
func (idx *Index) NumProbes() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return 0, ErrClosed
	}
	return idx.table.NumProbes(), nil
}

// SetNumProbes sets the live number of probes per query. The first
// NumHashTables probes visit the home bucket of every table; further probes
// visit neighbouring buckets in order of increasing perturbation score.
func (idx *Index) SetNumProbes(numProbes int) error {
	if numProbes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidNumProbes, numProbes)
	}

	idx.tuneMu.Lock()
	defer idx.tuneMu.Unlock()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return ErrClosed
	}
	return translateError(idx.table.SetNumProbes(numProbes))
}

// MaxCandidates returns the per-query candidate cap, or NoMaxCandidates.
func (idx *Index) MaxCandidates() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return 0, ErrClosed
	}
	return idx.table.MaxCandidates(), nil
}

// SetMaxCandidates caps the number of candidates, duplicates included, a
// query retrieves. NoMaxCandidates removes the cap.
func (idx *Index) SetMaxCandidates(maxCandidates int) error {
	if maxCandidates <= 0 && maxCandidates != NoMaxCandidates {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxCandidates, maxCandidates)
	}

	idx.tuneMu.Lock()
	defer idx.tuneMu.Unlock()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return ErrClosed
	}
	return translateError(idx.table.SetMaxCandidates(maxCandidates))
}

// FindNearest returns the index of the closest candidate to q, or
// NoNeighbor when the probing sequence retrieves no candidate.
func (idx *Index) FindNearest(q []float32) (int, error) {
	res := NoNeighbor
	err := idx.query(OpFindNearest, q, func(t *lsh.Table) (int, error) {
		nn, err := t.FindNearestNeighbor(q)
		if err != nil {
			return 0, err
		}
		res = int(nn)
		if nn < 0 {
			return 0, nil
		}
		return 1, nil
	})
	if err != nil {
		return NoNeighbor, err
	}
	return res, nil
}

// FindKNearest returns up to k distinct candidates closest to q, ordered by
// ascending distance.
func (idx *Index) FindKNearest(q []float32, k int) ([]int, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	var res []int
	err := idx.query(OpFindKNearest, q, func(t *lsh.Table) (int, error) {
		ids, err := t.FindKNearestNeighbors(q, k, nil)
		res = toInts(ids)
		return len(res), err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FindWithinRadius returns every candidate whose distance to q is strictly
// less than radius, in retrieval order.
func (idx *Index) FindWithinRadius(q []float32, radius float32) ([]int, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrNegativeRadius, radius)
	}

	var res []int
	err := idx.query(OpFindWithinRadius, q, func(t *lsh.Table) (int, error) {
		ids, err := t.FindNearNeighbors(q, radius, nil)
		res = toInts(ids)
		return len(res), err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Candidates returns the raw result of the probing sequence of q. A point
// stored in several probed buckets appears once per bucket.
func (idx *Index) Candidates(q []float32) ([]int, error) {
	var res []int
	err := idx.query(OpCandidates, q, func(t *lsh.Table) (int, error) {
		ids, err := t.CandidatesWithDuplicates(q, nil)
		res = toInts(ids)
		return len(res), err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UniqueCandidates returns the distinct points of the probing sequence of q
// in order of first retrieval.
func (idx *Index) UniqueCandidates(q []float32) ([]int, error) {
	var res []int
	err := idx.query(OpUniqueCandidates, q, func(t *lsh.Table) (int, error) {
		ids, err := t.UniqueCandidates(q, nil)
		res = toInts(ids)
		return len(res), err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// query validates q, runs fn against the live table and records the outcome.
func (idx *Index) query(op QueryOp, q []float32, fn func(t *lsh.Table) (int, error)) error {
	start := time.Now()

	results, err := idx.runQuery(q, fn)

	idx.metrics.RecordQuery(op, results, time.Since(start), err)
	idx.logger.LogQuery(context.Background(), op, results, err)
	return err
}

func (idx *Index) runQuery(q []float32, fn func(t *lsh.Table) (int, error)) (int, error) {
	if len(q) != idx.dim {
		return 0, dimensionError(ErrValidation, idx.dim, len(q), -1)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.table == nil {
		return 0, ErrClosed
	}
	n, err := fn(idx.table)
	return n, translateError(err)
}

func toInts(ids []int32) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
