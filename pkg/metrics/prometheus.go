package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsUpserted   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	illConditioned *prometheus.CounterVec
	fitDuration    prometheus.Histogram
	btDuration     prometheus.Histogram
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsUpserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngxquant_bars_upserted_total",
				Help: "Total number of daily bars written to the store",
			},
			[]string{"table"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngxquant_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		illConditioned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngxquant_ill_conditioned_windows_total",
				Help: "Regression windows skipped as ill-conditioned",
			},
			[]string{"ticker"},
		),
		fitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngxquant_fit_duration_seconds",
				Help:    "Duration of rolling regression fits",
				Buckets: prometheus.DefBuckets,
			},
		),
		btDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngxquant_backtest_duration_seconds",
				Help:    "Duration of walk-forward backtest runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ngxquant_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBarsUpserted records rows written to a store table.
func (r *Recorder) RecordBarsUpserted(table string, n int) {
	r.barsUpserted.WithLabelValues(table).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFitDuration records one rolling-fit pass.
func (r *Recorder) RecordFitDuration(seconds float64) {
	r.fitDuration.Observe(seconds)
}

// RecordIllConditioned records a skipped regression window.
func (r *Recorder) RecordIllConditioned(ticker string) {
	r.illConditioned.WithLabelValues(ticker).Inc()
}

// RecordBacktestDuration records one backtest run.
func (r *Recorder) RecordBacktestDuration(seconds float64) {
	r.btDuration.Observe(seconds)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
