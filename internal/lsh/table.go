package lsh

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lshgo/distance"
	"github.com/hupe1980/lshgo/internal/pool"
	"github.com/hupe1980/lshgo/internal/queue"
)

// Table is a static multi-probe LSH nearest-neighbor table.
//
// The point set is fixed at construction. Queries may run concurrently;
// SetNumProbes, SetMaxCandidates and Close must not race with queries.
type Table struct {
	params  Parameters
	points  []float32 // n*dim, row-major, owned by the caller and never written
	n       int
	dim     int
	dist    distance.Func
	hashers []hasher
	stores  []bucketStore

	numProbes     atomic.Int64
	maxCandidates atomic.Int64
	closed        atomic.Bool

	probers sync.Pool
}

// Construct builds a table over the row-major points (len(points) = n*dim).
// The slice is referenced, not copied, and must not be modified afterwards.
func Construct(points []float32, dim int, p Parameters) (*Table, error) {
	if dim <= 0 {
		return nil, &ErrInvalidParameter{Name: "dimension", Value: dim, Reason: "must be positive"}
	}
	if len(points) == 0 {
		return nil, ErrEmptyPointSet
	}
	if len(points)%dim != 0 {
		return nil, fmt.Errorf("lsh: point buffer of length %d is not a multiple of dimension %d", len(points), dim)
	}
	if err := p.Validate(dim); err != nil {
		return nil, err
	}

	metric := distance.MetricEuclideanSquared
	if p.Distance == NegativeInnerProduct {
		metric = distance.MetricNegativeInnerProduct
	}
	dist, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	t := &Table{
		params:  p,
		points:  points,
		n:       len(points) / dim,
		dim:     dim,
		dist:    dist,
		hashers: make([]hasher, p.L),
		stores:  make([]bucketStore, p.L),
	}

	threads := p.NumSetupThreads
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(threads)
	for ti := range p.L {
		g.Go(func() error {
			h := newHasher(&t.params, ti)
			scratch := make([]float32, h.scratchSize())
			keys := make([]uint64, t.n)
			for i := range t.n {
				keys[i], _ = h.hash(t.point(int32(i)), scratch, false, nil)
			}
			t.hashers[ti] = h
			t.stores[ti] = newBucketStore(p.Storage, keys, p.keyBits())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scratchSize := t.hashers[0].scratchSize()
	t.probers.New = func() any {
		return newProber(p.L, scratchSize)
	}
	t.numProbes.Store(int64(p.L))
	t.maxCandidates.Store(NoMaxCandidates)
	return t, nil
}

func (t *Table) point(i int32) []float32 {
	off := int(i) * t.dim
	return t.points[off : off+t.dim]
}

// Parameters returns the construction parameters.
func (t *Table) Parameters() Parameters { return t.params }

// Size returns the number of points.
func (t *Table) Size() int { return t.n }

// Dimension returns the point dimension.
func (t *Table) Dimension() int { return t.dim }

// NumProbes returns the number of probes used per query.
func (t *Table) NumProbes() int { return int(t.numProbes.Load()) }

// SetNumProbes sets the number of probes used per query. The count is
// global across tables: the first L probes visit the base bucket of each table.
func (t *Table) SetNumProbes(numProbes int) error {
	if numProbes < 1 {
		return ErrInvalidNumProbes
	}
	t.numProbes.Store(int64(numProbes))
	return nil
}

// MaxCandidates returns the per-query cap on retrieved candidates,
// or NoMaxCandidates.
func (t *Table) MaxCandidates() int { return int(t.maxCandidates.Load()) }

// SetMaxCandidates caps the number of candidates (with duplicates) a query
// retrieves. NoMaxCandidates removes the cap.
func (t *Table) SetMaxCandidates(maxCandidates int) error {
	if maxCandidates < 1 && maxCandidates != NoMaxCandidates {
		return ErrInvalidMaxCandidates
	}
	t.maxCandidates.Store(int64(maxCandidates))
	return nil
}

// Stats returns the bucket layout of every hash table.
func (t *Table) Stats() []StoreStats {
	out := make([]StoreStats, 0, len(t.stores))
	for _, s := range t.stores {
		if s != nil {
			out = append(out, s.stats())
		}
	}
	return out
}

// Close releases the hash tables. A second Close returns ErrTableClosed.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return ErrTableClosed
	}
	t.hashers = nil
	t.stores = nil
	return nil
}

// collect appends the candidates of one probing sequence to dst, honoring the
// candidate cap. With unique set, points already seen are skipped.
func (t *Table) collect(q []float32, dst []int32, unique bool, qc *pool.QueryContext) []int32 {
	limit := int(t.maxCandidates.Load())
	raw := 0
	t.probeSequence(q, int(t.numProbes.Load()), func(ti int, key uint64) bool {
		for _, idx := range t.stores[ti].bucket(key) {
			if limit != NoMaxCandidates && raw >= limit {
				return false
			}
			raw++
			if unique && qc.MarkVisited(idx) {
				continue
			}
			dst = append(dst, idx)
		}
		return limit == NoMaxCandidates || raw < limit
	})
	return dst
}

// CandidatesWithDuplicates appends to dst every point found in the probing
// sequence of q. A point hashed into several probed buckets appears several times.
func (t *Table) CandidatesWithDuplicates(q []float32, dst []int32) ([]int32, error) {
	if t.closed.Load() {
		return dst, ErrTableClosed
	}
	return t.collect(q, dst, false, nil), nil
}

// UniqueCandidates appends to dst the distinct points of the probing
// sequence of q, in order of first retrieval.
func (t *Table) UniqueCandidates(q []float32, dst []int32) ([]int32, error) {
	if t.closed.Load() {
		return dst, ErrTableClosed
	}
	qc := pool.Get()
	defer pool.Put(qc)
	qc.EnsureCapacity(t.n)
	return t.collect(q, dst, true, qc), nil
}

// FindNearestNeighbor returns the closest candidate to q, or -1 when the
// probing sequence finds no candidate.
func (t *Table) FindNearestNeighbor(q []float32) (int32, error) {
	if t.closed.Load() {
		return -1, ErrTableClosed
	}
	qc := pool.Get()
	defer pool.Put(qc)
	qc.EnsureCapacity(t.n)

	qc.Candidates = t.collect(q, qc.Candidates, true, qc)

	best := int32(-1)
	var bestDist float32
	for _, idx := range qc.Candidates {
		d := t.dist(q, t.point(idx))
		if best < 0 || d < bestDist {
			best, bestDist = idx, d
		}
	}
	return best, nil
}

// FindKNearestNeighbors appends to dst up to k candidates closest to q,
// ordered by ascending distance, ties by index.
func (t *Table) FindKNearestNeighbors(q []float32, k int, dst []int32) ([]int32, error) {
	if t.closed.Load() {
		return dst, ErrTableClosed
	}
	qc := pool.Get()
	defer pool.Put(qc)
	qc.EnsureCapacity(t.n)

	qc.Candidates = t.collect(q, qc.Candidates, true, qc)

	for _, idx := range qc.Candidates {
		it := queue.Item{Node: idx, Distance: t.dist(q, t.point(idx))}
		if qc.Result.Len() < k {
			qc.Result.Push(it)
			continue
		}
		if top, _ := qc.Result.Top(); queue.Closer(it, top) {
			qc.Result.ReplaceTop(it)
		}
	}

	items := qc.Result.Items()
	slices.SortFunc(items, queue.Compare)
	for _, it := range items {
		dst = append(dst, it.Node)
	}
	return dst, nil
}

// FindNearNeighbors appends to dst every candidate whose distance to q is
// strictly below threshold.
func (t *Table) FindNearNeighbors(q []float32, threshold float32, dst []int32) ([]int32, error) {
	if t.closed.Load() {
		return dst, ErrTableClosed
	}
	qc := pool.Get()
	defer pool.Put(qc)
	qc.EnsureCapacity(t.n)

	qc.Candidates = t.collect(q, qc.Candidates, true, qc)

	for _, idx := range qc.Candidates {
		if t.dist(q, t.point(idx)) < threshold {
			dst = append(dst, idx)
		}
	}
	return dst, nil
}
