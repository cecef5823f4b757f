package lsh

import (
	"math/rand/v2"

	"github.com/viterin/vek/vek32"
)

// hyperplaneHasher hashes a point to the sign pattern of k random Gaussian
// projections. Flipping bit i costs the squared projection onto plane i.
type hyperplaneHasher struct {
	k      int
	dim    int
	planes []float32 // k*dim, row-major
}

func newHyperplaneHasher(p *Parameters, src rand.Source) *hyperplaneHasher {
	n := gaussian(src)
	planes := make([]float32, p.K*p.Dimension)
	for i := range planes {
		planes[i] = float32(n.Rand())
	}
	return &hyperplaneHasher{
		k:      p.K,
		dim:    p.Dimension,
		planes: planes,
	}
}

func (h *hyperplaneHasher) hash(v []float32, _ []float32, probe bool, perts []perturbation) (uint64, []perturbation) {
	var key uint64
	for i := range h.k {
		dot := vek32.Dot(h.planes[i*h.dim:(i+1)*h.dim], v)
		if dot > 0 {
			key |= 1 << uint(i)
		}
		if probe {
			perts = append(perts, perturbation{
				cost:  dot * dot,
				coord: int32(i),
				xor:   1 << uint(i),
			})
		}
	}
	return key, perts
}

func (h *hyperplaneHasher) scratchSize() int { return 0 }
