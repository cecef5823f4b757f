package lshgo

import (
	"sync/atomic"
	"time"
)

// QueryOp names an index query for metrics and logs.
type QueryOp string

const (
	OpFindNearest      QueryOp = "find_nearest"
	OpFindKNearest     QueryOp = "find_k_nearest"
	OpFindWithinRadius QueryOp = "find_within_radius"
	OpCandidates       QueryOp = "candidates"
	OpUniqueCandidates QueryOp = "unique_candidates"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the prom
// subpackage provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each index construction.
	// points is the size of the point set, err is nil if successful.
	RecordBuild(points int, duration time.Duration, err error)

	// RecordQuery is called after each query.
	// results is the number of indices returned.
	RecordQuery(op QueryOp, results int, duration time.Duration, err error)

	// RecordTune is called after each probe tuning run.
	// evaluations is the number of precision measurements performed.
	RecordTune(probes, evaluations int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordQuery(QueryOp, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTune(int, int, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildPoints     atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryResults    atomic.Int64
	QueryTotalNanos atomic.Int64
	TuneCount       atomic.Int64
	TuneErrors      atomic.Int64
	TuneEvaluations atomic.Int64
	LastTunedProbes atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(points int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildPoints.Add(int64(points))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ QueryOp, results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(results))
}

// RecordTune implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTune(probes, evaluations int, _ time.Duration, err error) {
	b.TuneCount.Add(1)
	b.TuneEvaluations.Add(int64(evaluations))
	if err != nil {
		b.TuneErrors.Add(1)
		return
	}
	b.LastTunedProbes.Store(int64(probes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildPoints:     b.BuildPoints.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryResults:    b.QueryResults.Load(),
		QueryAvgNanos:   b.getAvgQueryNanos(),
		TuneCount:       b.TuneCount.Load(),
		TuneErrors:      b.TuneErrors.Load(),
		TuneEvaluations: b.TuneEvaluations.Load(),
		LastTunedProbes: b.LastTunedProbes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildPoints     int64
	QueryCount      int64
	QueryErrors     int64
	QueryResults    int64
	QueryAvgNanos   int64
	TuneCount       int64
	TuneErrors      int64
	TuneEvaluations int64
	LastTunedProbes int64
}
