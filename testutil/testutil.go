package testutil

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/lshgo/distance"
)

// SearchResult represents a search result.
type SearchResult struct {
	ID       int
	Distance float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64())
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	data := make([]float32, num*dimensions)
	r.FillUniform(data)
	return rows(data, num, dimensions)
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	data := make([]float32, num*dimensions)
	r.FillGaussian(data)
	return rows(data, num, dimensions)
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Gaussian draws make the direction uniform.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		distance.NormalizeL2InPlace(vec)
	}
	return vectors
}

// ClusteredVectors generates vectors clustered around random unit centroids.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := rows(data, num, dim)
	for i, vec := range vectors {
		centroid := centroids[i%clusters]
		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
	}
	return vectors
}

// Perturb returns a copy of vec with Gaussian noise of the given scale added.
func (r *RNG) Perturb(vec []float32, scale float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, len(vec))
	for j, v := range vec {
		out[j] = v + float32(r.rand.NormFloat64())*scale
	}
	return out
}

func rows(data []float32, num, dim int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range num {
		vectors[i] = data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return vectors
}

// ExactTopK returns the k points closest to query by brute force, ordered by
// ascending distance then index.
func ExactTopK(query []float32, points [][]float32, k int, dist distance.Func) []SearchResult {
	all := make([]SearchResult, len(points))
	for i, p := range points {
		all[i] = SearchResult{ID: i, Distance: dist(query, p)}
	}
	slices.SortFunc(all, func(a, b SearchResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return all[:min(k, len(all))]
}

// ExactNearest returns, for every query, the index of its exact nearest point.
func ExactNearest(queries, points [][]float32, dist distance.Func) []int {
	answers := make([]int, len(queries))
	for qi, q := range queries {
		best := -1
		var bestDist float32
		for i, p := range points {
			if d := dist(q, p); best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		answers[qi] = best
	}
	return answers
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth []SearchResult, approximate []int) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[int]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, id := range approximate {
		if _, ok := truthSet[id]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// Dense copies vectors into a row-major gonum matrix.
func Dense(vectors [][]float32) *mat.Dense {
	if len(vectors) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(vectors), len(vectors[0]), nil)
	for i, vec := range vectors {
		for j, v := range vec {
			m.Set(i, j, float64(v))
		}
	}
	return m
}
