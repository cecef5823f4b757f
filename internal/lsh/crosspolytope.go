package lsh

import (
	"math/rand/v2"

	"github.com/viterin/vek/vek32"
)

// crossPolytopeHasher hashes a point to the closest signed basis vector after
// NumRotations pseudo-random rotations (random sign flips followed by a fast
// Hadamard transform). Each of the k functions owns one key field; the last
// function only looks at the first lastDim rotated coordinates.
type crossPolytopeHasher struct {
	k         int
	dim       int
	rotDim    int
	lastDim   int
	fieldBits int
	rotations int
	signs     []float32 // k*rotations*rotDim

	// feature hashing, only when the input is folded into a smaller space
	fhIndex []int32
	fhSign  []float32
}

func newCrossPolytopeHasher(p *Parameters, src rand.Source) *crossPolytopeHasher {
	rotDim := p.rotationDimension()
	h := &crossPolytopeHasher{
		k:         p.K,
		dim:       p.Dimension,
		rotDim:    rotDim,
		lastDim:   p.LastCPDimension,
		fieldBits: cpFieldBits(rotDim),
		rotations: p.NumRotations,
		signs:     make([]float32, p.K*p.NumRotations*rotDim),
	}

	rng := rand.New(src)
	for i := range h.signs {
		if rng.IntN(2) == 0 {
			h.signs[i] = 1
		} else {
			h.signs[i] = -1
		}
	}

	if p.FeatureHashingDimension > 0 {
		h.fhIndex = make([]int32, p.Dimension)
		h.fhSign = make([]float32, p.Dimension)
		for j := range p.Dimension {
			h.fhIndex[j] = int32(rng.IntN(p.FeatureHashingDimension))
			if rng.IntN(2) == 0 {
				h.fhSign[j] = 1
			} else {
				h.fhSign[j] = -1
			}
		}
	}
	return h
}

func (h *crossPolytopeHasher) hash(v []float32, scratch []float32, probe bool, perts []perturbation) (uint64, []perturbation) {
	x := scratch[:h.rotDim]
	y := scratch[h.rotDim : 2*h.rotDim]

	clear(x)
	if h.fhIndex != nil {
		for j, val := range v {
			x[h.fhIndex[j]] += h.fhSign[j] * val
		}
	} else {
		copy(x, v)
	}

	var key uint64
	for i := range h.k {
		copy(y, x)
		for r := range h.rotations {
			off := (i*h.rotations + r) * h.rotDim
			vek32.Mul_Inplace(y, h.signs[off:off+h.rotDim])
			fht(y)
		}

		dim := h.rotDim
		if i == h.k-1 {
			dim = h.lastDim
		}

		best, bestAbs := 0, abs32(y[0])
		for j := 1; j < dim; j++ {
			if a := abs32(y[j]); a > bestAbs {
				best, bestAbs = j, a
			}
		}
		val := best
		if y[best] < 0 {
			val = best + dim
		}

		shift := uint(i * h.fieldBits)
		key |= uint64(val) << shift

		if !probe {
			continue
		}
		for j := range dim {
			for _, alt := range [2]int{j, j + dim} {
				if alt == val {
					continue
				}
				proj := y[j]
				if alt >= dim {
					proj = -proj
				}
				diff := bestAbs - proj
				perts = append(perts, perturbation{
					cost:  diff * diff,
					coord: int32(i),
					xor:   uint64(val^alt) << shift,
				})
			}
		}
	}
	return key, perts
}

func (h *crossPolytopeHasher) scratchSize() int { return 2 * h.rotDim }

// fht applies an unnormalised fast Hadamard transform in place.
// len(x) must be a power of two.
func fht(x []float32) {
	n := len(x)
	for step := 1; step < n; step <<= 1 {
		for i := 0; i < n; i += step << 1 {
			for j := i; j < i+step; j++ {
				a, b := x[j], x[j+step]
				x[j], x[j+step] = a+b, a-b
			}
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
