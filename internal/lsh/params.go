package lsh

import (
	"fmt"
	"math/bits"
)

// DistanceFunction identifies the distance a table ranks candidates by.
type DistanceFunction int

const (
	DistanceUnknown DistanceFunction = iota
	NegativeInnerProduct
	EuclideanSquared
)

func (d DistanceFunction) String() string {
	switch d {
	case NegativeInnerProduct:
		return "NegativeInnerProduct"
	case EuclideanSquared:
		return "EuclideanSquared"
	default:
		return "Unknown"
	}
}

// Family identifies the locality-sensitive hash family.
type Family int

const (
	FamilyUnknown Family = iota
	Hyperplane
	CrossPolytope
)

func (f Family) String() string {
	switch f {
	case Hyperplane:
		return "Hyperplane"
	case CrossPolytope:
		return "CrossPolytope"
	default:
		return "Unknown"
	}
}

// StorageHashTable identifies the bucket storage backing each hash table.
type StorageHashTable int

const (
	StorageUnknown StorageHashTable = iota
	FlatHashTable
	BitPackedFlatHashTable
	STLHashTable
	LinearProbingHashTable
)

func (s StorageHashTable) String() string {
	switch s {
	case FlatHashTable:
		return "FlatHashTable"
	case BitPackedFlatHashTable:
		return "BitPackedFlatHashTable"
	case STLHashTable:
		return "STLHashTable"
	case LinearProbingHashTable:
		return "LinearProbingHashTable"
	default:
		return "Unknown"
	}
}

const (
	// DefaultSeed is the seed used when none is configured.
	DefaultSeed uint64 = 409556018

	// DefaultNumTables is the number of hash tables chosen by DefaultParameters.
	DefaultNumTables = 10

	// NoMaxCandidates disables the per-query candidate cap.
	NoMaxCandidates = -1

	// maxFlatBits bounds the key width of flat storage (2^bits offsets are allocated).
	maxFlatBits = 24

	// maxBitPackedBits bounds the key width of bit-packed storage (32-bit bitmap keys).
	maxBitPackedBits = 32
)

// Parameters are the construction parameters of a Table.
type Parameters struct {
	Dimension               int
	K                       int
	L                       int
	Distance                DistanceFunction
	Family                  Family
	Storage                 StorageHashTable
	NumRotations            int
	Seed                    uint64
	NumSetupThreads         int
	LastCPDimension         int
	FeatureHashingDimension int
}

// DefaultParameters computes parameters for a data set of n points in d
// dimensions. Dense data uses a single pseudo-rotation, sparse data two.
func DefaultParameters(n, d int, distance DistanceFunction, dense bool) (Parameters, error) {
	p := Parameters{
		Dimension:               d,
		L:                       DefaultNumTables,
		Distance:                distance,
		Family:                  CrossPolytope,
		Storage:                 BitPackedFlatHashTable,
		NumRotations:            2,
		Seed:                    DefaultSeed,
		NumSetupThreads:         0,
		LastCPDimension:         -1,
		FeatureHashingDimension: -1,
		K:                       -1,
	}
	if dense {
		p.NumRotations = 1
	}

	numBits := 1
	for int64(1)<<(numBits+2) <= int64(n) {
		numBits++
	}

	if err := ComputeNumberOfHashFunctions(numBits, &p); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// ComputeNumberOfHashFunctions sets K (and LastCPDimension for cross-polytope)
// so that a table key carries numBits bits.
func ComputeNumberOfHashFunctions(numBits int, p *Parameters) error {
	if numBits <= 0 {
		return &ErrInvalidParameter{Name: "hash bits", Value: numBits, Reason: "must be positive"}
	}
	if p.Dimension <= 0 {
		return &ErrInvalidParameter{Name: "dimension", Value: p.Dimension, Reason: "must be positive"}
	}

	switch p.Family {
	case Hyperplane:
		p.K = numBits
	case CrossPolytope:
		cpDim := p.rotationDimension()
		bitsPerCP := bits.TrailingZeros(uint(cpDim)) + 1

		p.K = numBits / bitsPerCP
		if rem := numBits % bitsPerCP; rem > 0 {
			p.K++
			p.LastCPDimension = 1 << (rem - 1)
		} else {
			p.LastCPDimension = cpDim
		}
	default:
		return &ErrInvalidParameter{Name: "family", Value: int(p.Family), Reason: "unknown LSH family"}
	}
	return nil
}

// rotationDimension is the power of two the cross-polytope hash rotates in.
func (p *Parameters) rotationDimension() int {
	if p.FeatureHashingDimension > 0 {
		return nextPowerOfTwo(p.FeatureHashingDimension)
	}
	return nextPowerOfTwo(p.Dimension)
}

// keyBits returns the width of a table key for the configured family.
func (p *Parameters) keyBits() int {
	switch p.Family {
	case Hyperplane:
		return p.K
	case CrossPolytope:
		full := cpFieldBits(p.rotationDimension())
		return (p.K-1)*full + cpFieldBits(p.LastCPDimension)
	default:
		return 0
	}
}

// Validate checks the parameters against a data set of dimension dim.
func (p *Parameters) Validate(dim int) error {
	if p.Dimension <= 0 {
		return &ErrInvalidParameter{Name: "dimension", Value: p.Dimension, Reason: "must be positive"}
	}
	if p.Dimension != dim {
		return &ErrInvalidParameter{Name: "dimension", Value: p.Dimension, Reason: fmt.Sprintf("data has dimension %d", dim)}
	}
	if p.K < 1 {
		return &ErrInvalidParameter{Name: "k", Value: p.K, Reason: "number of hash functions must be at least 1"}
	}
	if p.L < 1 {
		return &ErrInvalidParameter{Name: "l", Value: p.L, Reason: "number of hash tables must be at least 1"}
	}
	if p.Distance != NegativeInnerProduct && p.Distance != EuclideanSquared {
		return &ErrInvalidParameter{Name: "distance", Value: int(p.Distance), Reason: "distance function must be set"}
	}
	if p.NumSetupThreads < 0 {
		return &ErrInvalidParameter{Name: "threads", Value: p.NumSetupThreads, Reason: "must not be negative"}
	}

	switch p.Family {
	case Hyperplane:
		if p.K > 64 {
			return &ErrInvalidParameter{Name: "k", Value: p.K, Reason: "hyperplane keys hold at most 64 bits"}
		}
	case CrossPolytope:
		if p.NumRotations < 1 {
			return &ErrInvalidParameter{Name: "rotations", Value: p.NumRotations, Reason: "cross-polytope needs at least one rotation"}
		}
		cpDim := p.rotationDimension()
		if p.LastCPDimension < 1 || p.LastCPDimension > cpDim {
			return &ErrInvalidParameter{
				Name:   "last_cp_dimension",
				Value:  p.LastCPDimension,
				Reason: fmt.Sprintf("must be in [1, %d]", cpDim),
			}
		}
		if b := p.keyBits(); b > 64 {
			return &ErrInvalidParameter{Name: "k", Value: p.K, Reason: fmt.Sprintf("key needs %d bits, at most 64 supported", b)}
		}
	default:
		return &ErrInvalidParameter{Name: "family", Value: int(p.Family), Reason: "LSH family must be set"}
	}

	switch p.Storage {
	case FlatHashTable:
		if b := p.keyBits(); b > maxFlatBits {
			return &ErrInvalidParameter{
				Name:   "storage",
				Value:  int(p.Storage),
				Reason: fmt.Sprintf("flat storage supports at most %d key bits, got %d", maxFlatBits, b),
			}
		}
	case BitPackedFlatHashTable:
		if b := p.keyBits(); b > maxBitPackedBits {
			return &ErrInvalidParameter{
				Name:   "storage",
				Value:  int(p.Storage),
				Reason: fmt.Sprintf("bit-packed storage supports at most %d key bits, got %d", maxBitPackedBits, b),
			}
		}
	case STLHashTable, LinearProbingHashTable:
	default:
		return &ErrInvalidParameter{Name: "storage", Value: int(p.Storage), Reason: "storage hash table must be set"}
	}
	return nil
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

// cpFieldBits is the number of key bits one cross-polytope hash over dim
// coordinates occupies (2*dim vertices).
func cpFieldBits(dim int) int {
	return bits.Len(uint(2*dim - 1))
}
