// Package prom exports lshgo metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, _ := prom.NewCollector(reg)
//	idx, _ := lshgo.New(points, ps, lshgo.WithMetricsCollector(c))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/lshgo"
)

const namespace = "lshgo"

// Collector implements lshgo.MetricsCollector on top of Prometheus metrics.
type Collector struct {
	opLatency  *prometheus.HistogramVec
	ops        *prometheus.CounterVec
	results    *prometheus.HistogramVec
	points     prometheus.Gauge
	tunedProbe prometheus.Gauge
	tuneEvals  prometheus.Counter
}

var _ lshgo.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg
// (prometheus.DefaultRegisterer if nil).
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total index operations",
		}, []string{"op", "status"}),
		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of indices returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"op"}),
		points: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_points",
			Help:      "Number of points of the most recently built index",
		}),
		tunedProbe: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tuned_probes",
			Help:      "Probe count selected by the most recent successful tuning",
		}),
		tuneEvals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tune_evaluations_total",
			Help:      "Total probe precision measurements performed while tuning",
		}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.ops, c.results, c.points, c.tunedProbe, c.tuneEvals} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordBuild implements lshgo.MetricsCollector.
func (c *Collector) RecordBuild(points int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.points.Set(float64(points))
	}
}

// RecordQuery implements lshgo.MetricsCollector.
func (c *Collector) RecordQuery(op lshgo.QueryOp, results int, d time.Duration, err error) {
	c.observe(string(op), d, err)
	if err == nil {
		c.results.WithLabelValues(string(op)).Observe(float64(results))
	}
}

// RecordTune implements lshgo.MetricsCollector.
func (c *Collector) RecordTune(probes, evaluations int, d time.Duration, err error) {
	c.observe("tune", d, err)
	c.tuneEvals.Add(float64(evaluations))
	if err == nil {
		c.tunedProbe.Set(float64(probes))
	}
}
