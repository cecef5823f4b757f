package lsh

import (
	"cmp"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// bucketStore maps a table key to the indices of the points hashed to it.
// Stores are immutable after construction.
type bucketStore interface {
	bucket(key uint64) []int32
	stats() StoreStats
}

// StoreStats describes the bucket layout of one hash table.
type StoreStats struct {
	Buckets       int // non-empty buckets
	LargestBucket int
}

// newBucketStore builds a store of the given kind from the key of every point.
func newBucketStore(kind StorageHashTable, keys []uint64, keyBits int) bucketStore {
	switch kind {
	case FlatHashTable:
		return newFlatStore(keys, keyBits)
	case BitPackedFlatHashTable:
		return newBitPackedStore(keys)
	case LinearProbingHashTable:
		return newLinearProbingStore(keys)
	default:
		return newMapStore(keys)
	}
}

// sortedByKey returns the point indices ordered by key, ties by index.
func sortedByKey(keys []uint64) []int32 {
	order := make([]int32, len(keys))
	for i := range order {
		order[i] = int32(i)
	}
	slices.SortStableFunc(order, func(a, b int32) int {
		return cmp.Compare(keys[a], keys[b])
	})
	return order
}

// groupStats computes stats over runs of equal keys in sorted order.
func groupStats(keys []uint64, order []int32) StoreStats {
	var s StoreStats
	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && keys[order[end]] == keys[order[start]] {
			end++
		}
		s.Buckets++
		s.LargestBucket = max(s.LargestBucket, end-start)
		start = end
	}
	return s
}

// mapStore is backed by a Go map.
type mapStore struct {
	buckets map[uint64][]int32
	st      StoreStats
}

func newMapStore(keys []uint64) *mapStore {
	m := &mapStore{buckets: make(map[uint64][]int32)}
	for i, k := range keys {
		m.buckets[k] = append(m.buckets[k], int32(i))
	}
	m.st.Buckets = len(m.buckets)
	for _, b := range m.buckets {
		m.st.LargestBucket = max(m.st.LargestBucket, len(b))
	}
	return m
}

func (m *mapStore) bucket(key uint64) []int32 { return m.buckets[key] }

func (m *mapStore) stats() StoreStats { return m.st }

// flatStore keeps all indices sorted by key plus an offset per possible key.
type flatStore struct {
	offsets []uint32 // len 2^keyBits + 1
	items   []int32
	st      StoreStats
}

func newFlatStore(keys []uint64, keyBits int) *flatStore {
	numBuckets := uint64(1) << uint(keyBits)
	offsets := make([]uint32, numBuckets+1)
	for _, k := range keys {
		offsets[k+1]++
	}
	for i := uint64(1); i <= numBuckets; i++ {
		offsets[i] += offsets[i-1]
	}

	items := make([]int32, len(keys))
	fill := slices.Clone(offsets[:numBuckets])
	for i, k := range keys {
		items[fill[k]] = int32(i)
		fill[k]++
	}

	f := &flatStore{offsets: offsets, items: items}
	for b := range numBuckets {
		if size := int(offsets[b+1] - offsets[b]); size > 0 {
			f.st.Buckets++
			f.st.LargestBucket = max(f.st.LargestBucket, size)
		}
	}
	return f
}

func (f *flatStore) bucket(key uint64) []int32 {
	if key >= uint64(len(f.offsets)-1) {
		return nil
	}
	return f.items[f.offsets[key]:f.offsets[key+1]]
}

func (f *flatStore) stats() StoreStats { return f.st }

// bitPackedStore only stores offsets of non-empty buckets. The set of
// non-empty keys is a compressed bitmap whose rank locates the offset.
type bitPackedStore struct {
	present *roaring.Bitmap
	offsets []uint32 // len(non-empty)+1
	items   []int32
	st      StoreStats
}

func newBitPackedStore(keys []uint64) *bitPackedStore {
	order := sortedByKey(keys)
	s := &bitPackedStore{
		present: roaring.New(),
		items:   order,
		offsets: make([]uint32, 0, 64),
		st:      groupStats(keys, order),
	}
	for i, idx := range order {
		if i == 0 || keys[idx] != keys[order[i-1]] {
			s.present.Add(uint32(keys[idx]))
			s.offsets = append(s.offsets, uint32(i))
		}
	}
	s.offsets = append(s.offsets, uint32(len(order)))
	s.present.RunOptimize()
	return s
}

func (s *bitPackedStore) bucket(key uint64) []int32 {
	if key > math.MaxUint32 || !s.present.Contains(uint32(key)) {
		return nil
	}
	r := s.present.Rank(uint32(key)) - 1
	return s.items[s.offsets[r]:s.offsets[r+1]]
}

func (s *bitPackedStore) stats() StoreStats { return s.st }

// linearProbingStore is an open-addressing table over the distinct keys.
type linearProbingStore struct {
	slots []lpSlot
	mask  uint64
	items []int32
	st    StoreStats
}

type lpSlot struct {
	key        uint64
	start, end uint32
	used       bool
}

func newLinearProbingStore(keys []uint64) *linearProbingStore {
	order := sortedByKey(keys)
	st := groupStats(keys, order)

	size := uint64(nextPowerOfTwo(2 * max(st.Buckets, 1)))
	s := &linearProbingStore{
		slots: make([]lpSlot, size),
		mask:  size - 1,
		items: order,
		st:    st,
	}
	for start := 0; start < len(order); {
		key := keys[order[start]]
		end := start + 1
		for end < len(order) && keys[order[end]] == key {
			end++
		}
		pos := mix64(key) & s.mask
		for s.slots[pos].used {
			pos = (pos + 1) & s.mask
		}
		s.slots[pos] = lpSlot{key: key, start: uint32(start), end: uint32(end), used: true}
		start = end
	}
	return s
}

func (s *linearProbingStore) bucket(key uint64) []int32 {
	pos := mix64(key) & s.mask
	for s.slots[pos].used {
		if s.slots[pos].key == key {
			return s.items[s.slots[pos].start:s.slots[pos].end]
		}
		pos = (pos + 1) & s.mask
	}
	return nil
}

func (s *linearProbingStore) stats() StoreStats { return s.st }

// mix64 is the splitmix64 finaliser.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
