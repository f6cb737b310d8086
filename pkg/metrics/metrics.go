package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CrawlsTotal      *prometheus.CounterVec
	CrawlDuration    *prometheus.HistogramVec
	JobsDispatched   *prometheus.CounterVec
	RetailersSkipped *prometheus.CounterVec
	RecordsExtracted *prometheus.CounterVec
	JobsInQueue      prometheus.Gauge
	DeadLetters      prometheus.Counter
)

// Init registers all collectors. Call once at startup before any increment.
func Init() {
	CrawlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawls_total",
			Help: "Total number of crawl job executions.",
		},
		[]string{"retailer", "status"}, // status: success, failure
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Duration of crawl job executions.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"retailer"},
	)

	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dispatched_total",
			Help: "Total number of crawl jobs emitted by the dispatcher.",
		},
		[]string{"retailer", "queue"},
	)

	RetailersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retailers_skipped_total",
			Help: "Retailers skipped during dispatch, by reason.",
		},
		[]string{"reason"},
	)

	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_extracted_total",
			Help: "Canonical records produced by extractors.",
		},
		[]string{"retailer", "kind", "strategy"},
	)

	JobsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_in_queue",
			Help: "Current number of jobs waiting in the crawl queue.",
		},
	)

	DeadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letters_total",
			Help: "Failed job executions written to the dead-letter store.",
		},
	)
}
