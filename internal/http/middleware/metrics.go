// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Metrics() records per-route request counts, latencies, in-flight requests
// and response sizes under the restaurant_http namespace. Route labels use the
// registered Gin pattern (e.g. /api/v1/tables/:code); anything that did not
// match a route is folded into a single "unmatched" label so scanners cannot
// blow up cardinality.
//
// Websocket upgrades on the change stream are long lived. They are counted in
// restaurant_http_stream_sessions_total and kept out of the latency and size
// histograms.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "restaurant"
	metricsSubsystem = "http"

	// UnmatchedRoute labels requests that hit no registered route.
	UnmatchedRoute = "unmatched"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	// Menu lists are small JSON documents; the xlsx export is the outlier.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "response_size_bytes",
			Help:      "HTTP response body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "route"},
	)

	streamSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "stream_sessions_total",
			Help:      "Websocket upgrade attempts on the change stream by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, streamSessions)
}

// routeLabel returns the registered route pattern or UnmatchedRoute.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return UnmatchedRoute
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		upgrade := c.IsWebsocket()
		if !upgrade {
			httpInflight.Inc()
			defer httpInflight.Dec()
		}
		start := time.Now()

		c.Next()

		method := c.Request.Method
		route := routeLabel(c)
		status := strconv.Itoa(c.Writer.Status())
		httpReqs.WithLabelValues(method, route, status).Inc()

		if upgrade {
			streamSessions.WithLabelValues(status).Inc()
			return
		}
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
