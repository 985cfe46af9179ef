// Package middleware – Metrics
//
// Metrics instruments the admin API with Prometheus. The path label is the
// registered Gin route, so ids in URLs never become labels; unmatched
// requests are folded into a single "unmatched" path. These series stay
// outside observability.MetricPrefix so /stats only shows household data.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests that hit no route.
const unmatchedPath = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests to the admin API.",
	}, []string{"method", "path", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of admin API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Current number of in-flight admin API requests.",
	})

	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Size of admin API responses in bytes.",
		Buckets: prometheus.ExponentialBuckets(128, 4, 8), // 128B..2MiB
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedPath
}

// Metrics records count, latency, in-flight requests and response size.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		method, path := c.Request.Method, routeLabel(c)
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
