package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request count and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"path":   routeLabel(c),
			"status": strconv.Itoa(c.Writer.Status()),
		}
		metrics.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.With(labels).Inc()
	}
}

// routeLabel keeps the label set bounded: raw URLs never become label values.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	if c.Writer.Status() == http.StatusSeeOther {
		return "redirected"
	}
	return "unmatched"
}
