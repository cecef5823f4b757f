// Package pool provides pooled per-query scratch space so that LSH queries do
// not allocate their visited set and result heap on every call.
package pool

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/lshgo/internal/queue"
)

const (
	// DefaultMaxNodes is the default initial capacity of the visited bitset.
	DefaultMaxNodes = 1 << 16

	// DefaultResultCapacity is the default capacity of the result heap.
	DefaultResultCapacity = 64

	// DefaultCandidateCapacity is the default capacity of the candidate buffer.
	DefaultCandidateCapacity = 1024
)

// QueryContext contains reusable buffers for one LSH query.
type QueryContext struct {
	Visited    *bitset.BitSet
	Result     *queue.Heap[queue.Item]
	Candidates []int32

	maxNodes uint
}

var queryContextPool = sync.Pool{
	New: func() any {
		return &QueryContext{
			Visited:    bitset.New(DefaultMaxNodes),
			Result:     queue.NewMax(DefaultResultCapacity),
			Candidates: make([]int32, 0, DefaultCandidateCapacity),
			maxNodes:   DefaultMaxNodes,
		}
	},
}

// Get retrieves a reset QueryContext from the pool.
func Get() *QueryContext {
	qc := queryContextPool.Get().(*QueryContext)
	qc.Reset()
	return qc
}

// Put returns a QueryContext to the pool. Oversized buffers are dropped.
func Put(qc *QueryContext) {
	if qc.maxNodes > DefaultMaxNodes*64 {
		qc.Visited = bitset.New(DefaultMaxNodes)
		qc.maxNodes = DefaultMaxNodes
	}
	if cap(qc.Candidates) > DefaultCandidateCapacity*64 {
		qc.Candidates = make([]int32, 0, DefaultCandidateCapacity)
	}
	queryContextPool.Put(qc)
}

// Reset clears the QueryContext for reuse.
func (qc *QueryContext) Reset() {
	qc.Visited.ClearAll()
	qc.Result.Reset()
	qc.Candidates = qc.Candidates[:0]
}

// EnsureCapacity grows the visited bitset so it can track n points.
func (qc *QueryContext) EnsureCapacity(n int) {
	if n <= 0 || uint(n) <= qc.maxNodes {
		return
	}
	size := max(uint(n), qc.maxNodes*2)
	qc.Visited = bitset.New(size)
	qc.maxNodes = size
}

// MarkVisited marks a point as visited.
// Returns true if the point was already visited, false otherwise.
func (qc *QueryContext) MarkVisited(id int32) bool {
	u := uint(id)
	if u >= qc.maxNodes {
		qc.EnsureCapacity(int(id) + 1)
	}
	if qc.Visited.Test(u) {
		return true
	}
	qc.Visited.Set(u)
	return false
}
