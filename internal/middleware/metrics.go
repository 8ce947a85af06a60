package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloodbank_http_in_flight_requests",
		Help: "Requests currently being served",
	})
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_http_requests_total",
		Help: "Requests served, by action and status code",
	}, []string{"method", "action", "code"})
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodbank_http_request_duration_seconds",
		Help:    "Request latency by action",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "action"})
)

// Metrics records request counts and latency. Unknown actions are folded
// into one label value.
func Metrics(known func(action string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()
		c.Next()

		action := c.Query("action")
		if action == "" {
			action = c.FullPath()
		} else if known != nil && !known(action) {
			action = "unknown"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, action, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, action).Observe(time.Since(start).Seconds())
	}
}
