// Package testutil provides testing utilities for lshgo.
//
// This package is intended for use in tests, examples and the lshtune
// command. It provides helpers for generating random vectors, computing
// exact nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	points := rng.GaussianVectors(1000, 10)
//	queries := rng.UnitVectors(100, 10)
//
// # Exact Search (Ground Truth)
//
//	answers := testutil.ExactNearest(queries, points, distance.SquaredL2)
//	top := testutil.ExactTopK(query, points, k, distance.SquaredL2)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(top, approx)
package testutil
