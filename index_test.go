package lshgo

import (
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lshgo/testutil"
)

func newTestIndex(t *testing.T, points [][]float32, mutate func(ParameterSet) ParameterSet, opts ...Option) *Index {
	t.Helper()

	ps, err := NewParameterSet(len(points), len(points[0]))
	require.NoError(t, err)
	if mutate != nil {
		ps = mutate(ps)
	}

	idx, err := New(points, ps, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndex(t *testing.T) {
	points := testutil.NewRNG(4711).GaussianVectors(1000, 10)
	idx := newTestIndex(t, points, nil)

	t.Run("Accessors", func(t *testing.T) {
		assert.Equal(t, 1000, idx.Size())
		assert.Equal(t, 10, idx.Dimension())
		assert.Equal(t, 10, idx.Parameters().NumHashTables())

		p, err := idx.Point(3)
		require.NoError(t, err)
		assert.Equal(t, points[3], p)

		_, err = idx.Point(1000)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("SelfMatch", func(t *testing.T) {
		for _, i := range []int{0, 1, 2, 123, 999} {
			nn, err := idx.FindNearest(points[i])
			require.NoError(t, err)
			assert.Equal(t, i, nn)
		}
	})

	t.Run("FindKNearest", func(t *testing.T) {
		q := points[42]

		res, err := idx.FindKNearest(q, 5)
		require.NoError(t, err)
		require.NotEmpty(t, res)
		assert.LessOrEqual(t, len(res), 5)
		assert.Equal(t, 42, res[0])

		last := float32(-1)
		for _, id := range res {
			d := sqDist(q, points[id])
			assert.GreaterOrEqual(t, d, last-1e-4)
			last = d
		}

		_, err = idx.FindKNearest(q, 0)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrInvalidK)

		unique, err := idx.UniqueCandidates(q)
		require.NoError(t, err)
		for _, k := range []int{idx.Size() + 1, 1 << 30, math.MaxInt} {
			res, err := idx.FindKNearest(q, k)
			require.NoError(t, err, "k=%d", k)
			assert.LessOrEqual(t, len(res), idx.Size())
			assert.Len(t, res, len(unique))
			assert.ElementsMatch(t, unique, res)
			assert.Equal(t, 42, res[0])
		}
	})

	t.Run("FindWithinRadius", func(t *testing.T) {
		q := points[7]

		none, err := idx.FindWithinRadius(q, 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		unique, err := idx.UniqueCandidates(q)
		require.NoError(t, err)
		all, err := idx.FindWithinRadius(q, 1e9)
		require.NoError(t, err)
		assert.ElementsMatch(t, unique, all)

		_, err = idx.FindWithinRadius(q, -1)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrNegativeRadius)
	})

	t.Run("CandidatesSuperset", func(t *testing.T) {
		for _, i := range []int{5, 50, 500} {
			cands, err := idx.Candidates(points[i])
			require.NoError(t, err)
			unique, err := idx.UniqueCandidates(points[i])
			require.NoError(t, err)

			counts := make(map[int]int)
			for _, c := range cands {
				counts[c]++
			}
			for _, u := range unique {
				assert.Positive(t, counts[u])
			}
			assert.Len(t, counts, len(unique))

			sorted := slices.Clone(unique)
			slices.Sort(sorted)
			assert.Len(t, slices.Compact(sorted), len(unique))

			// a stored point lands in its home bucket of every table
			assert.Equal(t, idx.Parameters().NumHashTables(), counts[i])
		}
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		q := make([]float32, 9)

		_, err := idx.FindNearest(q)
		assert.ErrorIs(t, err, ErrValidation)

		var dm *ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 10, dm.Expected)
		assert.Equal(t, 9, dm.Actual)
		assert.Equal(t, -1, dm.Row)

		_, err = idx.FindKNearest(q, 3)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = idx.FindWithinRadius(q, 1)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = idx.Candidates(q)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = idx.UniqueCandidates(q)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := idx.Stats()
		require.NoError(t, err)
		require.Len(t, stats, 10)
		for _, s := range stats {
			assert.Positive(t, s.Buckets)
			assert.GreaterOrEqual(t, s.LargestBucket, 1)
		}
	})
}

func sqDist(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func TestNewErrors(t *testing.T) {
	points := testutil.NewRNG(1).GaussianVectors(50, 4)
	ps, err := NewParameterSet(50, 4)
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		_, err := New(nil, ps)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		wrong, err := NewParameterSet(50, 5)
		require.NoError(t, err)

		_, err = New(points, wrong)
		assert.ErrorIs(t, err, ErrConfiguration)

		var dm *ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 5, dm.Expected)
		assert.Equal(t, 4, dm.Actual)
		assert.Equal(t, 0, dm.Row)
	})

	t.Run("RaggedRows", func(t *testing.T) {
		ragged := slices.Clone(points)
		ragged[17] = ragged[17][:3]

		_, err := New(ragged, ps)
		var dm *ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 17, dm.Row)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("EngineRejects", func(t *testing.T) {
		for name, bad := range map[string]ParameterSet{
			"tables":   ps.WithNumHashTables(0),
			"k":        ps.WithNumHashFunctions(0),
			"distance": ps.WithDistance("bogus"),
			"family":   ps.WithFamily("bogus"),
			"storage":  ps.WithStorage("bogus"),
			"rotation": ps.WithRotations(0),
			"threads":  ps.WithSetupThreads(-1),
		} {
			_, err := New(points, bad)
			assert.ErrorIs(t, err, ErrConfiguration, name)
		}
	})

	t.Run("ZeroParameterSet", func(t *testing.T) {
		_, err := New(points, ParameterSet{})
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestIndexCopiesPoints(t *testing.T) {
	points := testutil.NewRNG(2).GaussianVectors(200, 8)
	original := slices.Clone(points[10])
	idx := newTestIndex(t, points, nil)

	for j := range points[10] {
		points[10][j] = 1000
	}

	nn, err := idx.FindNearest(original)
	require.NoError(t, err)
	assert.Equal(t, 10, nn)

	p, err := idx.Point(10)
	require.NoError(t, err)
	assert.Equal(t, original, p)
}

func TestIndexConfigurations(t *testing.T) {
	rng := testutil.NewRNG(99)
	points := rng.GaussianVectors(500, 12)
	unit := rng.UnitVectors(500, 12)

	cases := []struct {
		name   string
		points [][]float32
		mutate func(ParameterSet) ParameterSet
	}{
		{"Flat", points, func(ps ParameterSet) ParameterSet { return ps.WithStorage("flat_hash_table") }},
		{"STL", points, func(ps ParameterSet) ParameterSet { return ps.WithStorage("stl_hash_table") }},
		{"LinearProbing", points, func(ps ParameterSet) ParameterSet { return ps.WithStorage("linear_probing_hash_table") }},
		{"Hyperplane", points, func(ps ParameterSet) ParameterSet {
			hp, _ := ps.WithFamily("hyperplane").WithHashBits(10)
			return hp
		}},
		{"TwoRotations", points, func(ps ParameterSet) ParameterSet { return ps.WithRotations(2).WithSetupThreads(2) }},
		{"FeatureHashing", points, func(ps ParameterSet) ParameterSet {
			fh, _ := ps.WithFeatureHashingDimension(8).WithHashBits(8)
			return fh
		}},
		{"NegativeInnerProduct", unit, func(ps ParameterSet) ParameterSet { return ps.WithDefaults("negative_inner_product") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := newTestIndex(t, tc.points, tc.mutate)
			for _, i := range []int{0, 99, 250, 499} {
				nn, err := idx.FindNearest(tc.points[i])
				require.NoError(t, err)
				assert.Equal(t, i, nn)
			}
		})
	}
}

func TestNewFromMatrix(t *testing.T) {
	points := testutil.NewRNG(3).GaussianVectors(300, 6)
	ps, err := NewParameterSet(300, 6)
	require.NoError(t, err)

	idx, err := NewFromMatrix(testutil.Dense(points), ps)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 300, idx.Size())
	nn, err := idx.FindNearest(points[77])
	require.NoError(t, err)
	assert.Equal(t, 77, nn)
}

func TestKnobs(t *testing.T) {
	points := testutil.NewRNG(5).GaussianVectors(1000, 10)
	idx := newTestIndex(t, points, nil)

	t.Run("NumProbes", func(t *testing.T) {
		p, err := idx.NumProbes()
		require.NoError(t, err)
		assert.Equal(t, 10, p)

		require.NoError(t, idx.SetNumProbes(25))
		p, err = idx.NumProbes()
		require.NoError(t, err)
		assert.Equal(t, 25, p)

		err = idx.SetNumProbes(0)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrInvalidNumProbes)

		require.NoError(t, idx.SetNumProbes(10))
	})

	t.Run("MoreProbesMoreCandidates", func(t *testing.T) {
		q := testutil.NewRNG(6).GaussianVectors(1, 10)[0]

		require.NoError(t, idx.SetNumProbes(10))
		few, err := idx.Candidates(q)
		require.NoError(t, err)

		require.NoError(t, idx.SetNumProbes(100))
		many, err := idx.Candidates(q)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(many), len(few))
		assert.Equal(t, few, many[:len(few)])

		require.NoError(t, idx.SetNumProbes(10))
	})

	t.Run("ExhaustiveProbes", func(t *testing.T) {
		// n=1000, d=10 keys carry 32*8 buckets per table; once every bucket
		// is probed the sequence ends and every point is a candidate.
		require.NoError(t, idx.SetNumProbes(math.MaxInt32))
		defer func() { require.NoError(t, idx.SetNumProbes(10)) }()

		for _, i := range []int{0, 500, 999} {
			cands, err := idx.Candidates(points[i])
			require.NoError(t, err)
			assert.Len(t, cands, idx.Size()*idx.Parameters().NumHashTables())

			unique, err := idx.UniqueCandidates(points[i])
			require.NoError(t, err)
			assert.Len(t, unique, idx.Size())

			nn, err := idx.FindNearest(points[i])
			require.NoError(t, err)
			assert.Equal(t, i, nn)
		}
	})

	t.Run("MaxCandidates", func(t *testing.T) {
		m, err := idx.MaxCandidates()
		require.NoError(t, err)
		assert.Equal(t, NoMaxCandidates, m)

		require.NoError(t, idx.SetMaxCandidates(5))
		cands, err := idx.Candidates(points[1])
		require.NoError(t, err)
		assert.LessOrEqual(t, len(cands), 5)

		assert.ErrorIs(t, idx.SetMaxCandidates(0), ErrValidation)
		assert.ErrorIs(t, idx.SetMaxCandidates(-2), ErrInvalidMaxCandidates)

		require.NoError(t, idx.SetMaxCandidates(NoMaxCandidates))
		cands, err = idx.Candidates(points[1])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(cands), 10)
	})
}

func TestClose(t *testing.T) {
	points := testutil.NewRNG(8).GaussianVectors(100, 4)
	ps, err := NewParameterSet(100, 4)
	require.NoError(t, err)

	idx, err := New(points, ps)
	require.NoError(t, err)

	require.NoError(t, idx.Close())
	assert.ErrorIs(t, idx.Close(), ErrClosed)

	_, err = idx.FindNearest(points[0])
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Candidates(points[0])
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.NumProbes()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.SetNumProbes(3), ErrClosed)
	_, err = idx.Stats()
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, 100, idx.Size())
}

func TestConcurrentQueries(t *testing.T) {
	points := testutil.NewRNG(11).GaussianVectors(1000, 10)
	idx := newTestIndex(t, points, nil)
	require.NoError(t, idx.SetNumProbes(40))

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < 1000; i += 8 {
				nn, err := idx.FindNearest(points[i])
				assert.NoError(t, err)
				assert.Equal(t, i, nn)

				_, err = idx.FindKNearest(points[i], 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestIndexMetrics(t *testing.T) {
	points := testutil.NewRNG(12).GaussianVectors(100, 4)
	metrics := &BasicMetricsCollector{}
	idx := newTestIndex(t, points, nil, WithMetricsCollector(metrics), WithLogger(nil))

	_, err := idx.FindNearest(points[0])
	require.NoError(t, err)
	_, err = idx.FindKNearest(points[0], 3)
	require.NoError(t, err)
	_, err = idx.FindNearest([]float32{1})
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(100), stats.BuildPoints)
	assert.Equal(t, int64(3), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.GreaterOrEqual(t, stats.QueryResults, int64(2))

	_, err = New(nil, idx.Parameters(), WithMetricsCollector(metrics))
	require.Error(t, err)
	assert.Equal(t, int64(1), metrics.GetStats().BuildErrors)
}
