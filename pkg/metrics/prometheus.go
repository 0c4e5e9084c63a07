package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	builds     *prometheus.CounterVec
	tableRows  prometheus.Gauge
	tableCols  prometheus.Gauge
	fallbacks  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	cacheTotal *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_table_builds_total",
				Help: "Completed table builds by winning provider",
			},
			[]string{"source"},
		),
		tableRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "econdash_table_rows",
			Help: "Rows in the published table",
		}),
		tableCols: f.NewGauge(prometheus.GaugeOpts{
			Name: "econdash_table_columns",
			Help: "Columns in the published table",
		}),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_provider_fallbacks_total",
				Help: "Provider failures that caused a fallback",
			},
			[]string{"provider"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_query_cache_total",
				Help: "Query cache lookups",
			},
			[]string{"op", "result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "econdash_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBuild(source string, rows, columns int, seconds float64) {
	r.builds.WithLabelValues(source).Inc()
	r.tableRows.Set(float64(rows))
	r.tableCols.Set(float64(columns))
	r.latency.WithLabelValues("build").Observe(seconds)
}

func (r *Recorder) RecordFallback(provider string) {
	r.fallbacks.WithLabelValues(provider).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordQuery(op string, seconds float64) {
	r.latency.WithLabelValues("query_" + op).Observe(seconds)
}

func (r *Recorder) RecordCache(op string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(op, result).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordBuild(string, int, int, float64) {}
func (Nop) RecordFallback(string)                 {}
func (Nop) RecordError(string)                    {}
func (Nop) RecordQuery(string, float64)           {}
func (Nop) RecordCache(string, bool)              {}
func (Nop) RecordLatency(string, float64)         {}
