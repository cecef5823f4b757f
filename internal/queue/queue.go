// Package queue provides the binary heaps used during candidate ranking and
// multi-probe sequence generation.
package queue

import "cmp"

// Item is a point index paired with its distance to the query.
type Item struct {
	Node     int32   // Node is the point index.
	Distance float32 // Distance is the priority of the item in the queue.
}

// Heap is a value-based binary heap ordered by less.
type Heap[T any] struct {
	less  func(a, b T) bool
	items []T
}

// New creates a heap whose top element is the one that sorts first under less.
func New[T any](capacity int, less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		less:  less,
		items: make([]T, 0, capacity),
	}
}

// Compare orders items by distance, ties by node.
func Compare(a, b Item) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.Node, b.Node)
}

// Closer reports whether a orders before b under Compare.
func Closer(a, b Item) bool { return Compare(a, b) < 0 }

// NewMin creates a heap of Items with the smallest distance on top.
func NewMin(capacity int) *Heap[Item] {
	return New(capacity, func(a, b Item) bool { return a.Distance < b.Distance })
}

// NewMax creates a heap of Items with the largest distance on top, ties
// broken towards the larger node. It is the bounded result set of a
// k-nearest-neighbor query.
func NewMax(capacity int) *Heap[Item] {
	return New(capacity, func(a, b Item) bool { return Compare(a, b) > 0 })
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int { return len(h.items) }

// Top returns the top element of the heap.
func (h *Heap[T]) Top() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (h *Heap[T]) Push(item T) {
	h.items = append(h.items, item)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the top element while maintaining the heap invariant.
func (h *Heap[T]) Pop() (T, bool) {
	var zero T
	n := len(h.items)
	if n == 0 {
		return zero, false
	}
	root := h.items[0]
	last := h.items[n-1]
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root, true
}

// ReplaceTop overwrites the top element and restores the heap invariant.
// It is a no-op on an empty heap.
func (h *Heap[T]) ReplaceTop(item T) {
	if len(h.items) == 0 {
		return
	}
	h.items[0] = item
	h.siftDown(0)
}

// Items returns the backing slice in heap order. It is only valid until the
// next mutation.
func (h *Heap[T]) Items() []T { return h.items }

// Reset clears the heap for reuse.
func (h *Heap[T]) Reset() {
	var zero T
	for i := range h.items {
		h.items[i] = zero
	}
	h.items = h.items[:0]
}

func (h *Heap[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(h.items[i], h.items[p]) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *Heap[T]) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(h.items[r], h.items[l]) {
			best = r
		}
		if !h.less(h.items[best], h.items[i]) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
