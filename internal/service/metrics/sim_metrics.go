package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FeedAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketsim",
			Subsystem: "feed_api",
			Name:      "latency_seconds",
			Help:      "Latency of feed API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FeedAPIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketsim",
			Subsystem: "feed_api",
			Name:      "errors_total",
			Help:      "Errors by feed API endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(FeedAPILatency, FeedAPIErrors)
	})
}
