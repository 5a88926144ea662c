// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PageLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_page_loads_total",
			Help: "Page loads labeled by site, backend and outcome.",
		},
		[]string{"site", "backend", "result"},
	)
	PageLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_page_load_duration_seconds",
			Help:    "Duration of page loads in seconds, waits and scrolling included.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"site", "backend"},
	)
	RecordsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_records_extracted_total",
			Help: "Product records extracted, labeled by the strategy that produced them.",
		},
		[]string{"site", "strategy"},
	)
	VerificationBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_verification_blocks_total",
			Help: "Verification walls seen, labeled by block classification.",
		},
		[]string{"site", "kind"},
	)
	TermsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_terms_processed_total",
			Help: "Search terms processed, labeled by status.",
		},
		[]string{"site", "status"},
	)
	ReviewsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_reviews_fetched_total",
			Help: "Reviews fetched, labeled by source (api or html).",
		},
		[]string{"site", "source"},
	)
	SinkWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_sink_write_duration_seconds",
			Help:    "Duration of output writes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(PageLoads)
	prometheus.MustRegister(PageLoadDuration)
	prometheus.MustRegister(RecordsExtracted)
	prometheus.MustRegister(VerificationBlocks)
	prometheus.MustRegister(TermsProcessed)
	prometheus.MustRegister(ReviewsFetched)
	prometheus.MustRegister(SinkWriteDuration)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
