// Package lshgo provides approximate nearest-neighbor search over a fixed
// point set with multi-probe locality-sensitive hashing.
//
// # Quick Start
//
//	ps, _ := lshgo.NewParameterSet(len(points), dim)
//	idx, _ := lshgo.New(points, ps)
//	defer idx.Close()
//
//	nn, _ := idx.FindNearest(query)
//	top, _ := idx.FindKNearest(query, 10)
//
// # Parameters
//
// A ParameterSet starts from engine defaults computed from the number of
// points and the dimension (cross-polytope hashing, ten tables, bit-packed
// bucket storage) and is adjusted with With* methods, each returning a
// modified copy:
//
//	ps = ps.WithDefaults("negative_inner_product").
//	    WithFamily("hyperplane").
//	    WithNumHashTables(20)
//
// Unknown names select the Unknown variant, which index construction
// rejects. ParseDistance, ParseFamily and ParseStorage fail fast instead.
// Parameter sets round-trip through AsMap/ParameterSetFromMap, JSON and YAML.
//
// # Probes
//
// Every query visits NumProbes buckets across all tables: first the home
// bucket of each table, then neighbouring buckets in order of increasing
// perturbation score. More probes retrieve more candidates, raising recall
// and latency. TuneNumProbes picks the smallest probe count that reaches a
// target precision on labeled training queries:
//
//	p, _ := lshgo.TuneNumProbes(ctx, idx, queries, answers, 0.9)
//	_ = idx.SetNumProbes(p)
//
// # Concurrency
//
// Queries may run concurrently. Changing the probe count or candidate cap,
// and tuning, must not overlap with queries on the same Index.
package lshgo
