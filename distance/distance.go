// Package distance provides the distance kernels used to rank LSH candidates.
// Kernels are backed by github.com/viterin/vek, which dispatches to SIMD
// implementations when the CPU supports them.
package distance

import (
	"fmt"
	"slices"

	"github.com/viterin/vek/vek32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	d := vek32.Distance(a, b)
	return d * d
}

// NegativeInnerProduct returns -<a, b>, so that smaller values mean more similar.
func NegativeInnerProduct(a, b []float32) float32 {
	return -Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := vek32.Norm(v)
	if norm == 0 {
		return false
	}
	vek32.MulNumber_Inplace(v, 1/norm)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricEuclideanSquared Metric = iota
	MetricNegativeInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricEuclideanSquared:
		return "EuclideanSquared"
	case MetricNegativeInnerProduct:
		return "NegativeInnerProduct"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclideanSquared:
		return SquaredL2, nil
	case MetricNegativeInnerProduct:
		return NegativeInnerProduct, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
