package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedns_queries_total",
			Help: "Total number of received queries by question type",
		},
		[]string{"qtype"},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cachedns_cache_hits_total",
			Help: "Total number of queries answered from the record store",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cachedns_cache_misses_total",
			Help: "Total number of queries forwarded upstream",
		},
	)

	DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedns_dropped_total",
			Help: "Total number of dropped datagrams by reason",
		},
		[]string{"reason"},
	)

	UpstreamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cachedns_upstream_errors_total",
			Help: "Total number of failed upstream exchanges",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cachedns_cache_entries",
			Help: "Number of entries held across all record tables",
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		DroppedTotal,
		UpstreamErrorsTotal,
		CacheEntries,
	)
}

// QTypeLabel folds question types into the label set served from cache.
func QTypeLabel(qtype uint16) string {
	switch qtype {
	case 1:
		return "a"
	case 12:
		return "ptr"
	default:
		return "other"
	}
}

// Serve exposes /metrics on addr. Runs until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
