// Package distance provides vector distance calculations with SIMD acceleration.
//
// # Supported Metrics
//
//   - MetricEuclideanSquared: squared Euclidean distance (default)
//   - MetricNegativeInnerProduct: negated dot product, for angular data
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Dot(a, b)
//	ok := distance.NormalizeL2InPlace(vec)
package distance
