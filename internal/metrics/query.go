package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query engine Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"op", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	FacetCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "facet_cache_total",
			Help:      "Facet cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	FacetRecountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "facet_recount_total",
			Help:      "Exact recounts issued for facet values above their threshold",
		},
		[]string{"set", "facet"},
	)

	ScrollSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "scroll_sessions_total",
			Help:      "Scroll cursors opened for pages beyond the native result window",
		},
		[]string{"outcome"}, // "ok" / "error"
	)

	QueryRegistrationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "query_registration_errors_total",
			Help:      "Descriptors rejected at registration",
		},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query engine metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(FacetCacheTotal)
	prometheus.MustRegister(FacetRecountTotal)
	prometheus.MustRegister(ScrollSessionsTotal)
	prometheus.MustRegister(QueryRegistrationErrors)
	queryMetricsRegistered = true
}
