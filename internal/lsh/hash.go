package lsh

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// perturbation is an alternative value for one hash function of a table key.
// Applying it XORs xor into the key; perturbations of distinct coordinates
// compose because they touch disjoint key bits.
type perturbation struct {
	cost  float32
	coord int32
	xor   uint64
}

// hasher maps a point to a table key.
type hasher interface {
	// hash returns the key of v. When probe is true it also appends every
	// single-coordinate perturbation of the key to perts.
	hash(v []float32, scratch []float32, probe bool, perts []perturbation) (uint64, []perturbation)

	// scratchSize is the length of the float buffer hash needs.
	scratchSize() int
}

// newHasher creates the hash functions of table number table.
func newHasher(p *Parameters, table int) hasher {
	src := rand.NewPCG(p.Seed, uint64(table)+1)
	switch p.Family {
	case Hyperplane:
		return newHyperplaneHasher(p, src)
	default:
		return newCrossPolytopeHasher(p, src)
	}
}

// gaussian returns a standard normal sampler driven by src.
func gaussian(src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: 0, Sigma: 1, Src: src}
}
