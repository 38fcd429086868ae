package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Route parameters that name a query or facet set.
var targetParams = []string{"name", "set"}

// targetOther labels requests that name an unregistered query or facet set.
const targetOther = "other"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds by route and query or facet set",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "target", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and query or facet set",
		},
		[]string{"method", "route", "target", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
}

// KnownTargets reports whether name is a registered query or facet set.
type KnownTargets func(name string) bool

// Middleware records HTTP request duration and count per route.
// Requests to /queries/{name} and /facets/{set} are also labelled with the
// target name when known reports it as registered, otherwise with "other".
func Middleware(known KnownTargets) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)

			route, target := "", ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
				target = routeTarget(rctx, known)
			}
			route = normalizeRoute(route)

			httpRequestDuration.WithLabelValues(r.Method, route, target, status).Observe(duration)
			httpRequestsTotal.WithLabelValues(r.Method, route, target, status).Inc()
		})
	}
}

// routeTarget returns the bounded target label for the matched route.
func routeTarget(rctx *chi.Context, known KnownTargets) string {
	for _, key := range targetParams {
		v := rctx.URLParam(key)
		if v == "" {
			continue
		}
		if known != nil && known(v) {
			return v
		}
		return targetOther
	}
	return ""
}

// normalizeRoute maps unmatched requests to a single label.
func normalizeRoute(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
