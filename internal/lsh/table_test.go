package lsh

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(n, dim int, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed))
	points := make([]float32, n*dim)
	for i := range points {
		points[i] = float32(rng.NormFloat64())
	}
	return points
}

func newTestTable(t *testing.T, n, dim int, mutate func(p *Parameters)) (*Table, []float32) {
	t.Helper()
	points := randomPoints(n, dim, 7)
	p, err := DefaultParameters(n, dim, EuclideanSquared, true)
	require.NoError(t, err)
	if mutate != nil {
		mutate(&p)
	}
	table, err := Construct(points, dim, p)
	require.NoError(t, err)
	return table, points
}

func TestConstruct_Errors(t *testing.T) {
	p, err := DefaultParameters(10, 4, EuclideanSquared, true)
	require.NoError(t, err)

	_, err = Construct(nil, 4, p)
	assert.ErrorIs(t, err, ErrEmptyPointSet)

	_, err = Construct(make([]float32, 7), 4, p)
	assert.Error(t, err)

	_, err = Construct(make([]float32, 8), 0, p)
	assert.Error(t, err)

	_, err = Construct(make([]float32, 9), 3, p)
	var perr *ErrInvalidParameter
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "dimension", perr.Name)
}

func TestTable_SelfMatch(t *testing.T) {
	families := []struct {
		name   string
		mutate func(p *Parameters)
	}{
		{"CrossPolytope", nil},
		{"Hyperplane", func(p *Parameters) {
			p.Family = Hyperplane
			p.K = 8
		}},
		{"FeatureHashing", func(p *Parameters) {
			p.FeatureHashingDimension = 8
			_ = ComputeNumberOfHashFunctions(8, p)
		}},
	}

	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			table, points := newTestTable(t, 1000, 10, f.mutate)
			for _, i := range []int32{0, 17, 500, 999} {
				q := points[int(i)*10 : int(i+1)*10]
				nn, err := table.FindNearestNeighbor(q)
				require.NoError(t, err)
				assert.Equal(t, i, nn)
			}
		})
	}
}

func TestTable_StorageKindsAgree(t *testing.T) {
	kinds := []StorageHashTable{FlatHashTable, BitPackedFlatHashTable, STLHashTable, LinearProbingHashTable}

	var reference [][]int32
	for _, kind := range kinds {
		table, points := newTestTable(t, 500, 16, func(p *Parameters) { p.Storage = kind })
		require.NoError(t, table.SetNumProbes(40))

		var got [][]int32
		for i := range 20 {
			c, err := table.CandidatesWithDuplicates(points[i*16:(i+1)*16], nil)
			require.NoError(t, err)
			got = append(got, c)
		}

		stats := table.Stats()
		require.Len(t, stats, DefaultNumTables)
		for _, s := range stats {
			assert.Positive(t, s.Buckets)
			assert.Positive(t, s.LargestBucket)
		}

		if reference == nil {
			reference = got
			continue
		}
		assert.Equal(t, reference, got, "storage %s", kind)
	}
}

func TestTable_CandidatesSuperset(t *testing.T) {
	table, points := newTestTable(t, 800, 12, nil)
	require.NoError(t, table.SetNumProbes(25))

	for i := range 10 {
		q := points[i*12 : (i+1)*12]
		dup, err := table.CandidatesWithDuplicates(q, nil)
		require.NoError(t, err)
		uniq, err := table.UniqueCandidates(q, nil)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(uniq), len(dup))
		counts := make(map[int32]int)
		for _, c := range dup {
			counts[c]++
		}
		seen := make(map[int32]bool)
		for _, c := range uniq {
			assert.False(t, seen[c], "duplicate %d in unique candidates", c)
			seen[c] = true
			assert.Positive(t, counts[c])
		}
		assert.Len(t, seen, len(counts))
	}
}

func TestTable_ProbeSequenceIsPrefix(t *testing.T) {
	table, points := newTestTable(t, 600, 8, nil)
	q := points[:8]

	var prev []int32
	for _, probes := range []int{1, 3, 10, 11, 20, 64, 200} {
		require.NoError(t, table.SetNumProbes(probes))
		c, err := table.CandidatesWithDuplicates(q, nil)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(c), len(prev))
		assert.Equal(t, prev, c[:len(prev)], "probes=%d", probes)
		prev = c
	}
}

func TestTable_ProbeSequenceOrder(t *testing.T) {
	table, points := newTestTable(t, 300, 8, func(p *Parameters) {
		p.Family = Hyperplane
		p.K = 6
		p.L = 3
		p.Storage = STLHashTable
	})

	var tables []int
	var keys []uint64
	table.probeSequence(points[:8], 3+3*64, func(ti int, key uint64) bool {
		tables = append(tables, ti)
		keys = append(keys, key)
		return true
	})

	// Every table has 2^6 distinct buckets; the first three probes are the
	// unperturbed bucket of each table.
	require.Len(t, tables, 3*64)
	assert.Equal(t, []int{0, 1, 2}, tables[:3])
	for ti := range 3 {
		var perTable []uint64
		for i, tt := range tables {
			if tt == ti {
				perTable = append(perTable, keys[i])
			}
		}
		slices.Sort(perTable)
		assert.Len(t, slices.Compact(perTable), 64)
	}
}

func TestTable_KNearestAndRadius(t *testing.T) {
	table, points := newTestTable(t, 1000, 10, nil)
	require.NoError(t, table.SetNumProbes(100))
	q := points[30:40]

	knn, err := table.FindKNearestNeighbors(q, 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, knn)
	assert.LessOrEqual(t, len(knn), 5)
	assert.Equal(t, int32(3), knn[0])
	for i := 1; i < len(knn); i++ {
		assert.LessOrEqual(t, table.dist(q, table.point(knn[i-1])), table.dist(q, table.point(knn[i])))
	}

	near, err := table.FindNearNeighbors(q, 1e-6, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{3}, near)

	none, err := table.FindNearNeighbors(q, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTable_MaxCandidates(t *testing.T) {
	table, points := newTestTable(t, 1000, 10, nil)
	require.NoError(t, table.SetNumProbes(200))
	q := points[:10]

	all, err := table.CandidatesWithDuplicates(q, nil)
	require.NoError(t, err)
	require.Greater(t, len(all), 5)

	require.NoError(t, table.SetMaxCandidates(5))
	assert.Equal(t, 5, table.MaxCandidates())
	capped, err := table.CandidatesWithDuplicates(q, nil)
	require.NoError(t, err)
	assert.Equal(t, all[:5], capped)

	require.NoError(t, table.SetMaxCandidates(NoMaxCandidates))
	uncapped, err := table.CandidatesWithDuplicates(q, nil)
	require.NoError(t, err)
	assert.Equal(t, all, uncapped)

	assert.ErrorIs(t, table.SetMaxCandidates(0), ErrInvalidMaxCandidates)
	assert.ErrorIs(t, table.SetNumProbes(0), ErrInvalidNumProbes)
	assert.Equal(t, 200, table.NumProbes())
}

func TestTable_Close(t *testing.T) {
	table, points := newTestTable(t, 100, 4, nil)
	require.NoError(t, table.Close())
	assert.ErrorIs(t, table.Close(), ErrTableClosed)

	_, err := table.FindNearestNeighbor(points[:4])
	assert.ErrorIs(t, err, ErrTableClosed)
	_, err = table.UniqueCandidates(points[:4], nil)
	assert.ErrorIs(t, err, ErrTableClosed)
	assert.Empty(t, table.Stats())
}

func TestFHT(t *testing.T) {
	x := []float32{1, 0, 0, 0}
	fht(x)
	assert.Equal(t, []float32{1, 1, 1, 1}, x)

	y := []float32{1, 2, 3, 4}
	fht(y)
	assert.Equal(t, []float32{10, -2, -4, 0}, y)
}

func TestTable_ProbeSequenceExhausts(t *testing.T) {
	// n=1000, d=10: one 16-dimensional and one 4-dimensional cross-polytope
	// per key, so 32*8 buckets per table.
	table, points := newTestTable(t, 1000, 10, nil)
	const buckets = 32 * 8

	perTable := make(map[int][]uint64)
	table.probeSequence(points[:10], math.MaxInt32, func(ti int, key uint64) bool {
		perTable[ti] = append(perTable[ti], key)
		return true
	})

	require.Len(t, perTable, DefaultNumTables)
	for ti, keys := range perTable {
		assert.Len(t, keys, buckets, "table %d", ti)
		slices.Sort(keys)
		assert.Len(t, slices.Compact(keys), buckets, "table %d", ti)
	}

	require.NoError(t, table.SetNumProbes(math.MaxInt32))
	dup, err := table.CandidatesWithDuplicates(points[:10], nil)
	require.NoError(t, err)
	assert.Len(t, dup, 1000*DefaultNumTables)
}

func TestTable_KNearestLargeK(t *testing.T) {
	table, points := newTestTable(t, 200, 8, nil)
	q := points[:8]

	uniq, err := table.UniqueCandidates(q, nil)
	require.NoError(t, err)

	for _, k := range []int{201, math.MaxInt} {
		knn, err := table.FindKNearestNeighbors(q, k, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, uniq, knn, "k=%d", k)
		assert.Equal(t, int32(0), knn[0])
	}
}

func TestTable_KNearestTiesByIndex(t *testing.T) {
	const n, dim = 40, 4
	points := make([]float32, n*dim)
	for i := range n {
		// rows 10..39 are copies of row 10; rows 0..9 are far away
		if i < 10 {
			points[i*dim] = 100 + float32(i)
		} else {
			points[i*dim] = 1
		}
	}
	p, err := DefaultParameters(n, dim, EuclideanSquared, true)
	require.NoError(t, err)
	table, err := Construct(points, dim, p)
	require.NoError(t, err)

	knn, err := table.FindKNearestNeighbors(points[10*dim:11*dim], 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 11, 12, 13, 14}, knn)
}
