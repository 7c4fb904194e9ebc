package modver

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "modver"

var (
	refreshCycles = mustRegisterCounterVec("refresher", "cycles_total",
		"Configuration poll cycles by result.", "result")
	snapshotModules = mustRegisterGauge("refresher", "snapshot_modules",
		"Number of modules in the current fallback snapshot.")
	evaluationBatches = mustRegisterCounterVec("evaluator", "batches_total",
		"Batch evaluation calls by result.", "result")
	resolveSeconds = mustRegisterHistogramVec("evaluator", "resolve_seconds",
		"Latency of a full module version resolution.", prometheus.DefBuckets, "result")
	resolvedModules = mustRegisterCounterVec("evaluator", "modules_total",
		"Resolved modules by source.", "source")
	feedRecords = mustRegisterCounterVec("metadata", "records_total",
		"Change-feed records applied to the metadata cache.", "phase")
	flagEvaluations = mustRegisterCounterVec("flag", "evaluations_total",
		"Single flag evaluations by reason.", "reason")
)

func mustRegisterCounterVec(component, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
	prometheus.MustRegister(m)
	return m
}

func mustRegisterGauge(component, name, help string) prometheus.Gauge {
	m := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	})
	prometheus.MustRegister(m)
	return m
}

func mustRegisterHistogramVec(component, name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
	m := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelNames)
	prometheus.MustRegister(m)
	return m
}
