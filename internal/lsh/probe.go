package lsh

import (
	"cmp"
	"slices"

	"github.com/hupe1980/lshgo/internal/queue"
)

// probeEntry is a pending probe of one table: the base key with the
// perturbations at the indices in set applied. A nil set is the base probe.
type probeEntry struct {
	score float32
	table int32
	seq   uint32
	set   []int32
}

func probeLess(a, b probeEntry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.seq < b.seq
}

// prober holds the per-query state of a multi-probe sequence.
type prober struct {
	keys    []uint64
	perts   [][]perturbation
	heap    *queue.Heap[probeEntry]
	scratch []float32
	seq     uint32
}

func newProber(tables, scratchSize int) *prober {
	return &prober{
		keys:    make([]uint64, tables),
		perts:   make([][]perturbation, tables),
		heap:    queue.New(2*tables, probeLess),
		scratch: make([]float32, scratchSize),
	}
}

func (p *prober) push(score float32, table int32, set []int32) {
	p.heap.Push(probeEntry{score: score, table: table, seq: p.seq, set: set})
	p.seq++
}

// probeSequence hashes q in every table and calls visit with the first
// numProbes (table, key) pairs in ascending perturbation score, stopping
// early when visit returns false. The first min(numProbes, L) probes are
// the unperturbed buckets of tables 0..L-1, so the sequence for p probes is
// always a prefix of the sequence for p+1.
func (t *Table) probeSequence(q []float32, numProbes int, visit func(table int, key uint64) bool) {
	pr := t.probers.Get().(*prober)
	defer t.probers.Put(pr)

	multi := numProbes > len(t.hashers)
	for ti, h := range t.hashers {
		key, perts := h.hash(q, pr.scratch, multi, pr.perts[ti][:0])
		if multi {
			slices.SortFunc(perts, func(a, b perturbation) int {
				return cmp.Compare(a.cost, b.cost)
			})
		}
		pr.keys[ti] = key
		pr.perts[ti] = perts
	}

	if !multi {
		for ti := range numProbes {
			if !visit(ti, pr.keys[ti]) {
				return
			}
		}
		return
	}

	pr.heap.Reset()
	pr.seq = 0
	for ti := range t.hashers {
		pr.push(0, int32(ti), nil)
	}

	for emitted := 0; emitted < numProbes; {
		e, ok := pr.heap.Pop()
		if !ok {
			return
		}
		perts := pr.perts[e.table]

		if e.set == nil {
			emitted++
			if !visit(int(e.table), pr.keys[e.table]) {
				return
			}
			if len(perts) > 0 {
				pr.push(perts[0].cost, e.table, []int32{0})
			}
			continue
		}

		key, bad := applyPerturbations(pr.keys[e.table], perts, e.set)
		if bad < 0 {
			emitted++
			if !visit(int(e.table), key) {
				return
			}
		}

		last := e.set[len(e.set)-1]
		next := last + 1
		if int(next) >= len(perts) {
			continue
		}

		// Every descendant keeps e.set[:len-1] as prefix, and expanded sets
		// keep all of e.set, so invalid prefixes are pruned.
		if bad < 0 || bad == len(e.set)-1 {
			shifted := slices.Clone(e.set)
			shifted[len(shifted)-1] = next
			pr.push(e.score-perts[last].cost+perts[next].cost, e.table, shifted)
		}
		if bad < 0 {
			expanded := append(slices.Clone(e.set), next)
			pr.push(e.score+perts[next].cost, e.table, expanded)
		}
	}
}

// applyPerturbations returns the key with the perturbations in set applied
// and -1, or the position of the first element that perturbs a hash function
// already perturbed earlier in set. Such sets do not describe a bucket.
func applyPerturbations(key uint64, perts []perturbation, set []int32) (uint64, int) {
	for i, a := range set {
		for _, b := range set[:i] {
			if perts[a].coord == perts[b].coord {
				return 0, i
			}
		}
		key ^= perts[a].xor
	}
	return key, -1
}
