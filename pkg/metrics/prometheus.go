package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksEmitted *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	activeFeeds  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_ticks_emitted_total",
				Help: "Total number of ticks emitted, by source and symbol",
			},
			[]string{"source", "symbol"},
		),
		anomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_anomalies_total",
				Help: "Total number of generated market anomalies",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketsim_last_price",
				Help: "Last generated price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsim_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		activeFeeds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketsim_active_feeds",
				Help: "Number of live feeds in the factory registry",
			},
		),
	}
}

// RecordTickEmitted records one emitted tick.
func (r *Recorder) RecordTickEmitted(source, symbol string) {
	r.ticksEmitted.WithLabelValues(source, symbol).Inc()
}

// RecordAnomaly records a generated anomaly.
func (r *Recorder) RecordAnomaly(anomalyType string) {
	r.anomalies.WithLabelValues(anomalyType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetActiveFeeds sets the live feed count.
func (r *Recorder) SetActiveFeeds(n int) {
	r.activeFeeds.Set(float64(n))
}
