// Package metrics exposes Prometheus counters for the HTTP surface and
// the realtime hub.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runclub_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runclub_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "runclub_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "runclub_websocket_connections",
		Help: "Currently open realtime connections.",
	})

	websocketDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "runclub_websocket_slow_drops_total",
		Help: "Connections dropped because their send buffer filled.",
	})
)

// Middleware records per-request counters and latency, labelled by the chi
// route pattern rather than the raw path so /api/photos/{id} is one series
// instead of one per photo.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			if ww.Status() >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route, status).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ConnectionOpened / ConnectionClosed track the realtime connection gauge.
func ConnectionOpened() { websocketConnections.Inc() }
func ConnectionClosed() { websocketConnections.Dec() }

// SlowConsumerDropped counts connections dropped for not keeping up.
func SlowConsumerDropped() { websocketDropsTotal.Inc() }

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
